package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is the sentinel for every local decode failure: bad structure,
// missing required field, unrecognised enum literal. It is never surfaced to
// the bus; callers log and skip the message.
var ErrMalformed = errors.New("malformed request")

// Request is the identity/payload pair extracted from one inbound message.
// The consent judgement is decoded once at parse time and carried along so no
// later stage re-parses the content. Immutable after construction.
type Request struct {
	// RequestID is the externally supplied correlation key, copied verbatim
	// into the outbound response.
	RequestID string
	// Content is the embedded domain payload, preserved byte for byte for
	// forwarding.
	Content json.RawMessage
	// Consent is the judgement extracted from Content.
	Consent ConsentRecord
}

// ParseRequest decodes a raw message body into a Request. Field names are
// matched exactly: the correlation id is accepted under "request_id" or
// "requestId" and no case-folded spelling of either. When both keys are
// present "request_id" wins deterministically, which diverges from positional
// first-key-wins ordering; producers must not rely on key order. The content
// field must be present and must itself decode into a valid ConsentRecord.
// Deterministic, no side effects.
func ParseRequest(raw []byte) (*Request, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: message body is empty", ErrMalformed)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: decode message: %v", ErrMalformed, err)
	}

	id, err := correlationID(fields)
	if err != nil {
		return nil, err
	}

	content, ok := fields["content"]
	if !ok || len(content) == 0 || string(content) == "null" {
		return nil, fmt.Errorf("%w: content is missing", ErrMalformed)
	}

	consent, err := ExtractConsent(content)
	if err != nil {
		return nil, err
	}

	return &Request{
		RequestID: id,
		Content:   content,
		Consent:   consent,
	}, nil
}

func correlationID(fields map[string]json.RawMessage) (string, error) {
	for _, key := range []string{"request_id", "requestId"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var id string
		if err := json.Unmarshal(raw, &id); err != nil {
			return "", fmt.Errorf("%w: %s must be a string", ErrMalformed, key)
		}
		if id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: request id is missing", ErrMalformed)
}

// CanDispatch reports whether the raw message would be accepted by
// ParseRequest, consent validation included. Parse success alone is not
// sufficient for dispatch eligibility; the embedded payload must also yield a
// well-formed ConsentRecord.
func CanDispatch(raw []byte) bool {
	_, err := ParseRequest(raw)
	return err == nil
}
