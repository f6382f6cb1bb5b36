// Package dispatch carries the consent-gated decision logic: selecting the
// single downstream operation for a parsed request and composing the
// correlated response envelope from its outcome.
package dispatch

import (
	"context"
	"errors"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/consent-relay/internal/envelope"
	"github.com/example/consent-relay/internal/registry"
)

// Operation names the downstream call a request was routed to.
type Operation string

const (
	// OpSubmit is the full-payload upsert used for active consent.
	OpSubmit Operation = "submit"
	// OpDelete is the removal by patient id used for rejected consent.
	OpDelete Operation = "delete"
)

// Outcome is the result of the one downstream call made for a request.
// Unreachable means the exchange could not complete at the transport level;
// the specific cause is logged here and intentionally not carried further.
type Outcome struct {
	Unreachable bool
	StatusCode  int
	Body        string
}

// Router invokes the downstream registry according to the consent judgement.
type Router struct {
	client registry.Client
	logger zerolog.Logger
}

// NewRouter constructs a Router around the supplied registry client.
func NewRouter(client registry.Client, logger zerolog.Logger) (*Router, error) {
	if client == nil {
		return nil, errors.New("dispatch router: registry client is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &Router{client: client, logger: logger}, nil
}

// Route invokes exactly one downstream operation for the request: a submit of
// the full payload when consent is active, otherwise a delete keyed by the
// patient id. Any downstream response that completes the HTTP exchange,
// 4xx/5xx included, is a reachable outcome; status-code semantics belong to
// the downstream system. Transport failures collapse to Unreachable.
func (r *Router) Route(ctx context.Context, req *envelope.Request) (Operation, Outcome) {
	var (
		op     Operation
		result *registry.Result
		err    error
	)

	if req.Consent.Active() {
		op = OpSubmit
		result, err = r.client.Submit(ctx, req.Content)
	} else {
		op = OpDelete
		result, err = r.client.Delete(ctx, req.Consent.PatientID)
	}

	if err != nil {
		r.logger.Warn().
			Str("request_id", req.RequestID).
			Str("operation", string(op)).
			Err(err).
			Msg("dispatch router: downstream unreachable")
		return op, Outcome{Unreachable: true}
	}

	return op, Outcome{StatusCode: result.StatusCode, Body: result.Body}
}
