package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"
)

type consumerGroupStub struct {
	errs      chan error
	closeOnce sync.Once
}

func newConsumerGroupStub() *consumerGroupStub {
	return &consumerGroupStub{errs: make(chan error)}
}

func (s *consumerGroupStub) Consume(ctx context.Context, _ []string, _ sarama.ConsumerGroupHandler) error {
	<-ctx.Done()
	return sarama.ErrClosedConsumerGroup
}

func (s *consumerGroupStub) Errors() <-chan error { return s.errs }

func (s *consumerGroupStub) Close() error {
	s.closeOnce.Do(func() { close(s.errs) })
	return nil
}

func (s *consumerGroupStub) Pause(map[string][]int32)  {}
func (s *consumerGroupStub) Resume(map[string][]int32) {}
func (s *consumerGroupStub) PauseAll()                 {}
func (s *consumerGroupStub) ResumeAll()                {}

func newStubbedConsumer(group sarama.ConsumerGroup) *Consumer {
	c := &Consumer{
		logger:       zerolog.Nop(),
		group:        group,
		groupID:      "relay-group",
		errorsDoneCh: make(chan struct{}),
	}
	go c.consumeErrors()
	return c
}

func TestConsumeValidation(t *testing.T) {
	c := newStubbedConsumer(newConsumerGroupStub())
	defer c.Close()

	if err := c.Consume(context.Background(), nil, func(context.Context, *Record) error { return nil }); err == nil {
		t.Fatal("expected error for empty topic list")
	}
	if err := c.Consume(context.Background(), []string{"etl-processor"}, nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestCloseDuringConsume(t *testing.T) {
	c := newStubbedConsumer(newConsumerGroupStub())

	done := make(chan error, 1)
	go func() {
		done <- c.Consume(context.Background(), []string{"etl-processor"}, func(context.Context, *Record) error { return nil })
	}()

	// Wait until Consume has installed its cancel func so Close exercises the
	// shared field from a second goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for {
		c.mu.RLock()
		installed := c.cancel != nil
		c.mu.RUnlock()
		if installed {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for consume loop to start")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("consume must return cleanly on close, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for consume loop to stop")
	}
}

func TestCommitValidation(t *testing.T) {
	c := newStubbedConsumer(newConsumerGroupStub())
	defer c.Close()

	if err := c.Commit(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil record")
	}
	if err := c.Commit(context.Background(), &Record{}); err == nil {
		t.Fatal("expected error for record without session data")
	}
}
