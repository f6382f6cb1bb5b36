package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/consent-relay/internal/dispatch"
	"github.com/example/consent-relay/internal/envelope"
	"github.com/example/consent-relay/internal/registry"
)

type clientStub struct {
	mu sync.Mutex

	submitCalls   int
	deleteCalls   int
	lastContent   []byte
	lastPatientID string

	result *registry.Result
	err    error
}

func (c *clientStub) Submit(_ context.Context, content []byte) (*registry.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitCalls++
	c.lastContent = append([]byte(nil), content...)
	return c.result, c.err
}

func (c *clientStub) Delete(_ context.Context, patientID string) (*registry.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleteCalls++
	c.lastPatientID = patientID
	return c.result, c.err
}

func mustParse(t *testing.T, raw string) *envelope.Request {
	t.Helper()
	req, err := envelope.ParseRequest([]byte(raw))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return req
}

func TestRouteActiveConsentSubmitsOnce(t *testing.T) {
	client := &clientStub{result: &registry.Result{StatusCode: 200, Body: "{}"}}
	router, err := dispatch.NewRouter(client, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}

	req := mustParse(t, `{"requestId":"r1","content":{"consent":{"patient":"p1","status":"active"}}}`)
	op, outcome := router.Route(context.Background(), req)

	if op != dispatch.OpSubmit {
		t.Fatalf("unexpected operation: %q", op)
	}
	if client.submitCalls != 1 || client.deleteCalls != 0 {
		t.Fatalf("expected exactly one submit, got submit=%d delete=%d", client.submitCalls, client.deleteCalls)
	}
	if string(client.lastContent) != `{"consent":{"patient":"p1","status":"active"}}` {
		t.Fatalf("content not forwarded verbatim: %s", client.lastContent)
	}
	if outcome.Unreachable || outcome.StatusCode != 200 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRouteRejectedConsentDeletesByPatient(t *testing.T) {
	client := &clientStub{result: &registry.Result{StatusCode: 204}}
	router, err := dispatch.NewRouter(client, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected router error: %v", err)
	}

	req := mustParse(t, `{"requestId":"r2","content":{"consent":{"patient":"p2","status":"rejected"}}}`)
	op, outcome := router.Route(context.Background(), req)

	if op != dispatch.OpDelete {
		t.Fatalf("unexpected operation: %q", op)
	}
	if client.deleteCalls != 1 || client.submitCalls != 0 {
		t.Fatalf("expected exactly one delete, got submit=%d delete=%d", client.submitCalls, client.deleteCalls)
	}
	if client.lastPatientID != "p2" {
		t.Fatalf("unexpected patient id: %q", client.lastPatientID)
	}
	if outcome.Unreachable || outcome.StatusCode != 204 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
}

func TestRouteErrorStatusIsStillReachable(t *testing.T) {
	client := &clientStub{result: &registry.Result{StatusCode: 422, Body: `{"issues":[]}`}}
	router, _ := dispatch.NewRouter(client, zerolog.Nop())

	req := mustParse(t, `{"requestId":"r3","content":{"consent":{"patient":"p3","status":"active"}}}`)
	_, outcome := router.Route(context.Background(), req)

	if outcome.Unreachable {
		t.Fatal("completed 4xx exchange must not be unreachable")
	}
	if outcome.StatusCode != 422 {
		t.Fatalf("unexpected status code: %d", outcome.StatusCode)
	}
}

func TestRouteTransportFailureIsUnreachable(t *testing.T) {
	client := &clientStub{err: errors.New("dial tcp: connection refused")}
	router, _ := dispatch.NewRouter(client, zerolog.Nop())

	req := mustParse(t, `{"requestId":"r4","content":{"consent":{"patient":"p4","status":"active"}}}`)
	_, outcome := router.Route(context.Background(), req)

	if !outcome.Unreachable {
		t.Fatal("transport failure must map to unreachable")
	}
	if outcome.StatusCode != 0 || outcome.Body != "" {
		t.Fatalf("unreachable outcome must carry no status details: %+v", outcome)
	}
}

func TestNewRouterRequiresClient(t *testing.T) {
	if _, err := dispatch.NewRouter(nil, zerolog.Nop()); err == nil {
		t.Fatal("expected error for nil client")
	}
}
