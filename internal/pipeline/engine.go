// Package pipeline drives the consent-gated dispatch of one inbound message:
// parse, route the single downstream call, compose the correlated response,
// publish it best-effort and commit the record. The pipeline is stateless and
// reentrant; distinct messages may be processed concurrently, bounded only by
// the configured concurrency.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/example/consent-relay/internal/dispatch"
	"github.com/example/consent-relay/internal/envelope"
)

// Config contains the runtime settings the engine relies on.
type Config struct {
	MsgMaxBytes       int
	WorkerConcurrency int
}

// Record represents a Kafka message delivered to the pipeline. It is a
// minimal abstraction that keeps the engine decoupled from the concrete
// consumer implementation while still exposing the data the engine requires.
type Record struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Headers   map[string][]byte

	commitFn func(context.Context) error
}

// Commit invokes the commit function bound to the record, if any.
func (r *Record) Commit(ctx context.Context) error {
	if r == nil || r.commitFn == nil {
		return nil
	}
	return r.commitFn(ctx)
}

func (r *Record) setCommitFn(fn func(context.Context) error) {
	r.commitFn = fn
}

// Clone returns a deep copy of the record so it can be safely shared with
// asynchronous goroutines without risking data races.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	clone := *r
	clone.Key = cloneBytes(r.Key)
	clone.Value = cloneBytes(r.Value)
	if len(r.Headers) > 0 {
		clone.Headers = cloneHeaders(r.Headers)
	}

	return &clone
}

// ResponsePublisher hands the composed envelope to the outbound side channel.
// At most one publish attempt is made per message.
type ResponsePublisher interface {
	Publish(ctx context.Context, key []byte, env dispatch.Envelope) error
}

// Committer is the abstraction for committing Kafka offsets after processing.
type Committer interface {
	Commit(ctx context.Context, record *Record) error
}

// CommitFunc adapts a plain function to the Committer interface.
type CommitFunc func(ctx context.Context, record *Record) error

// Commit implements Committer.
func (f CommitFunc) Commit(ctx context.Context, record *Record) error {
	return f(ctx, record)
}

// Result is the terminal verdict for one inbound message. A parsed message is
// always Dispatched with exactly one composed envelope; a message that fails
// to parse is skipped with no response emitted.
type Result struct {
	Dispatched bool
	Reason     string
	Operation  dispatch.Operation
	Envelope   *dispatch.Envelope
}

// Dependencies collects the runtime collaborators required by the engine.
type Dependencies struct {
	Router    *dispatch.Router
	Publisher ResponsePublisher
	Committer Committer
	Metrics   *Metrics
	Logger    zerolog.Logger
	Now       func() time.Time
}

// Engine sequences the pipeline stages for inbound records and bounds their
// concurrency. It holds no state between messages.
type Engine struct {
	cfg       Config
	router    *dispatch.Router
	publisher ResponsePublisher
	committer Committer
	metrics   *Metrics
	logger    zerolog.Logger

	semaphore *semaphore.Weighted

	now func() time.Time
}

// NewEngine constructs a pipeline engine using the supplied configuration and
// collaborators. The configuration and dependencies are validated to prevent
// misconfiguration at startup.
func NewEngine(cfg Config, deps Dependencies) (*Engine, error) {
	if cfg.WorkerConcurrency < 1 {
		return nil, errors.New("pipeline: worker concurrency must be >= 1")
	}
	if cfg.MsgMaxBytes < 0 {
		return nil, errors.New("pipeline: msg max bytes cannot be negative")
	}
	if deps.Router == nil {
		return nil, errors.New("pipeline: router dependency is required")
	}
	if deps.Publisher == nil {
		return nil, errors.New("pipeline: response publisher dependency is required")
	}
	if deps.Committer == nil {
		return nil, errors.New("pipeline: committer dependency is required")
	}

	logger := deps.Logger
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	logger = logger.With().Str("component", "pipeline_engine").Logger()

	nowFunc := deps.Now
	if nowFunc == nil {
		nowFunc = time.Now
	}

	return &Engine{
		cfg:       cfg,
		router:    deps.Router,
		publisher: deps.Publisher,
		committer: deps.Committer,
		metrics:   deps.Metrics,
		logger:    logger,
		semaphore: semaphore.NewWeighted(int64(cfg.WorkerConcurrency)),
		now:       nowFunc,
	}, nil
}

// HandleRecord triggers asynchronous processing of the record, bounded by the
// concurrency semaphore. Records for distinct messages may be in flight at
// the same time; within one record the stages run strictly in sequence.
func (e *Engine) HandleRecord(ctx context.Context, record *Record) {
	if record == nil {
		return
	}

	if err := e.semaphore.Acquire(ctx, 1); err != nil {
		e.logger.Error().
			Str("topic", record.Topic).
			Int64("offset", record.Offset).
			Err(err).
			Msg("pipeline: failed to acquire concurrency semaphore")
		return
	}

	recCopy := record.Clone()

	go func() {
		defer e.semaphore.Release(1)
		e.Handle(ctx, recCopy)
	}()
}

// Handle processes one record start to finish and returns its terminal
// verdict. Parse failures are logged, counted and committed with no response;
// parsed requests always produce exactly one response envelope, downstream
// reachable or not.
func (e *Engine) Handle(ctx context.Context, record *Record) Result {
	if record == nil {
		return Result{Reason: "record is nil"}
	}

	logger := e.logger.With().
		Str("trace_id", uuid.NewString()).
		Str("topic", record.Topic).
		Int32("partition", record.Partition).
		Int64("offset", record.Offset).
		Logger()

	if e.cfg.MsgMaxBytes > 0 && len(record.Value) > e.cfg.MsgMaxBytes {
		reason := fmt.Sprintf("payload exceeds maximum size: got %d bytes, limit %d bytes", len(record.Value), e.cfg.MsgMaxBytes)
		logger.Warn().
			Int("size", len(record.Value)).
			Int("limit", e.cfg.MsgMaxBytes).
			Msg("pipeline: record skipped, payload exceeds size limit")
		e.metrics.observeParseFailure()
		e.commitRecord(ctx, record, logger)
		return Result{Reason: reason}
	}

	req, err := envelope.ParseRequest(record.Value)
	if err != nil {
		logger.Warn().Err(err).Msg("pipeline: record skipped, cannot parse request")
		e.metrics.observeParseFailure()
		e.commitRecord(ctx, record, logger)
		return Result{Reason: err.Error()}
	}

	logger = logger.With().Str("request_id", req.RequestID).Logger()

	start := e.now()
	op, outcome := e.router.Route(ctx, req)
	duration := e.now().Sub(start)

	env := dispatch.Compose(req.RequestID, outcome)

	result := "completed"
	if outcome.Unreachable {
		result = "unreachable"
	}
	e.metrics.observeDispatched(string(op), result)

	logger.Info().
		Str("operation", string(op)).
		Str("result", result).
		Int("status_code", env.StatusCode).
		Dur("duration", duration).
		Msg("pipeline: request dispatched")

	if err := e.publisher.Publish(ctx, record.Key, env); err != nil {
		// Best-effort side channel: the verdict stays Dispatched.
		logger.Warn().Err(err).Msg("pipeline: response not published")
		e.metrics.observePublishFailure()
	}

	e.commitRecord(ctx, record, logger)

	return Result{
		Dispatched: true,
		Operation:  op,
		Envelope:   &env,
	}
}

func (e *Engine) commitRecord(ctx context.Context, record *Record, logger zerolog.Logger) {
	if err := e.committer.Commit(ctx, record); err != nil {
		logger.Error().Err(err).Msg("pipeline: failed to commit record offset")
	}
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	clone := make([]byte, len(b))
	copy(clone, b)
	return clone
}

func cloneHeaders(headers map[string][]byte) map[string][]byte {
	if len(headers) == 0 {
		return nil
	}
	clone := make(map[string][]byte, len(headers))
	for k, v := range headers {
		clone[k] = cloneBytes(v)
	}
	return clone
}
