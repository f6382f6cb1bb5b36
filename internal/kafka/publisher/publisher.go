// Package publisher is the best-effort side channel the pipeline hands its
// composed responses to. At most one publish attempt is made per message; a
// failure is reported to the caller for logging and never retried.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"

	"github.com/rs/zerolog"

	"github.com/example/consent-relay/internal/dispatch"
)

var errProducerNotInitialised = errors.New("kafka publisher: producer not initialised")

// SyncProducer captures the subset of producer behaviour required by the
// response publisher.
type SyncProducer interface {
	PublishSync(topic string, key []byte, headers map[string][]byte, payload []byte) error
}

// ErrProducerNotInitialised exposes the sentinel error for callers and tests.
func ErrProducerNotInitialised() error {
	return errProducerNotInitialised
}

// ResponsePublisher emits composed response envelopes to the response topic
// using the shared producer. The outbound transport key is the inbound
// message's own key, passed through unchanged.
type ResponsePublisher struct {
	producer SyncProducer
	topic    string
	logger   zerolog.Logger
}

// NewResponsePublisher constructs a ResponsePublisher instance.
func NewResponsePublisher(prod SyncProducer, topic string, logger zerolog.Logger) *ResponsePublisher {
	if prod == nil {
		return nil
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	return &ResponsePublisher{
		producer: prod,
		topic:    topic,
		logger:   logger,
	}
}

// Publish writes the envelope to the response topic keyed by the supplied
// correlation key.
func (p *ResponsePublisher) Publish(_ context.Context, key []byte, env dispatch.Envelope) error {
	if p == nil || p.producer == nil {
		return errProducerNotInitialised
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka publisher: marshal response envelope: %w", err)
	}

	headers := map[string][]byte{
		"content-type": []byte("application/json"),
	}

	if err := p.producer.PublishSync(p.topic, cloneBytes(key), headers, payload); err != nil {
		return fmt.Errorf("kafka publisher: publish response envelope: %w", err)
	}
	return nil
}

func cloneBytes(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
