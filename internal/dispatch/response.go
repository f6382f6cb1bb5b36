package dispatch

import (
	"encoding/json"
	"strings"
)

// StatusUnreachable is the private out-of-band status code denoting that the
// downstream could not be reached. It never collides with a real transport
// status and must not be interpreted as one by response consumers.
const StatusUnreachable = 900

// noConnectionBody is the fixed issue list attached to unreachable responses.
const noConnectionBody = `{"issues":[{"severity":"error","message":"No HTTP connection"}]}`

// Envelope is the single outbound response message produced per
// successfully-parsed request.
type Envelope struct {
	RequestID  string          `json:"request_id"`
	StatusCode int             `json:"status_code"`
	StatusBody json.RawMessage `json:"status_body"`
}

// Compose maps a dispatch outcome and the originating request id into the
// outbound envelope. Total function: completed exchanges carry the
// downstream's code and its body when that body is non-empty, well-formed
// JSON; anything else degrades silently to an empty object. Unreachable
// outcomes carry the 900 sentinel and the fixed issue body.
func Compose(requestID string, outcome Outcome) Envelope {
	if outcome.Unreachable {
		return Envelope{
			RequestID:  requestID,
			StatusCode: StatusUnreachable,
			StatusBody: json.RawMessage(noConnectionBody),
		}
	}

	body := strings.TrimSpace(outcome.Body)
	if body == "" || !json.Valid([]byte(body)) {
		body = "{}"
	}

	return Envelope{
		RequestID:  requestID,
		StatusCode: outcome.StatusCode,
		StatusBody: json.RawMessage(body),
	}
}
