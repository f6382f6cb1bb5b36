// Package registry talks to the downstream REST system of record. Every
// completed HTTP exchange yields a Result regardless of status class; only
// transport-level failures (timeout, refused connection, DNS) are returned as
// errors.
package registry

import "context"

// Result captures the downstream's answer to a completed exchange.
type Result struct {
	StatusCode int
	Body       string
}

// Client is the downstream collaborator consumed by the dispatch router.
// Both operations are idempotent on the downstream side and must observe a
// bounded timeout.
type Client interface {
	// Submit upserts a full record; the content is forwarded byte for byte.
	Submit(ctx context.Context, content []byte) (*Result, error)
	// Delete removes the record identified by the subject's patient id.
	Delete(ctx context.Context, patientID string) (*Result, error)
}
