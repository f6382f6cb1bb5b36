package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/example/consent-relay/internal/config"
	"github.com/example/consent-relay/internal/dispatch"
	"github.com/example/consent-relay/internal/kafka/consumer"
	"github.com/example/consent-relay/internal/kafka/producer"
	kafkapublisher "github.com/example/consent-relay/internal/kafka/publisher"
	"github.com/example/consent-relay/internal/logger"
	"github.com/example/consent-relay/internal/pipeline"
	"github.com/example/consent-relay/internal/registry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fail("config load", err)
	}

	baseLogger, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		fail("logger init", err)
	}
	log := baseLogger.With().Str("service", "relay-worker").Logger()

	prod, err := producer.New(cfg.Kafka.Brokers, log.With().Str("component", "producer").Logger(),
		producer.WithPublishTimeout(time.Duration(cfg.Kafka.PublishTimeoutSeconds)*time.Second))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka producer")
	}
	defer func() {
		if err := prod.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka producer")
		}
	}()

	cons, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.GroupID, log.With().Str("component", "consumer").Logger(), cfg.Worker.CommitOnSuccessOnly)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create kafka consumer")
	}
	defer func() {
		if err := cons.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close kafka consumer")
		}
	}()

	responsePublisher := kafkapublisher.NewResponsePublisher(prod, cfg.Topics.Response, log.With().Str("component", "response-publisher").Logger())
	if responsePublisher == nil {
		log.Fatal().Msg("failed to create response publisher")
	}

	registryClient, err := registry.New(cfg.Registry, log.With().Str("component", "registry-client").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise registry client")
	}

	router, err := dispatch.NewRouter(registryClient, log.With().Str("component", "dispatch-router").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise dispatch router")
	}

	promReg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(promReg)

	engine, err := pipeline.NewEngine(pipeline.Config{
		MsgMaxBytes:       cfg.Worker.MsgMaxBytes,
		WorkerConcurrency: cfg.Worker.Concurrency,
	}, pipeline.Dependencies{
		Router:    router,
		Publisher: responsePublisher,
		Committer: pipeline.CommitFunc(func(ctx context.Context, record *pipeline.Record) error {
			return record.Commit(ctx)
		}),
		Metrics: metrics,
		Logger:  log.With().Str("component", "pipeline-engine").Logger(),
		Now:     time.Now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise pipeline engine")
	}

	go serveOps(cfg.Ops.Addr, promReg, cons, prod, log)

	topics := []string{cfg.Topics.Request}
	handler := pipeline.KafkaHandler(engine, cons)

	errCh := make(chan error, 1)
	go func() {
		if err := cons.Consume(ctx, topics, handler); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("request_topic", cfg.Topics.Request).
		Str("response_topic", cfg.Topics.Response).
		Str("registry_uri", cfg.Registry.BaseURI).
		Msg("relay worker started")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("consumer terminated with error")
		}
	}
}

type readiness interface {
	IsReady() bool
}

func serveOps(addr string, reg *prometheus.Registry, cons, prod readiness, log zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if cons.IsReady() && prod.IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
	})

	log.Info().Str("addr", addr).Msg("ops listener started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("ops listener terminated")
	}
}

func fail(stage string, err error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Fatal().Err(err).Str("stage", stage).Msg("relay worker init failed")
}
