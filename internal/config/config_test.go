package config

import (
	"strings"
	"testing"
)

func clearRelayEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV", "LOG_LEVEL",
		"KAFKA_BOOTSTRAP_SERVERS", "APP_KAFKA_TOPIC", "APP_KAFKA_RESPONSE_TOPIC",
		"APP_KAFKA_GROUP_ID", "PUBLISH_TIMEOUT_SECONDS",
		"APP_REST_URI", "REQUEST_TIMEOUT_SECONDS",
		"WORKER_CONCURRENCY", "MSG_MAX_BYTES", "COMMIT_ON_SUCCESS_ONLY",
		"OPS_ADDR",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("APP_REST_URI", "http://registry:9000/bwhc")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Kafka.Brokers; len(got) != 1 || got[0] != "kafka:9092" {
		t.Fatalf("unexpected default brokers: %v", got)
	}
	if cfg.Topics.Request != "etl-processor" {
		t.Fatalf("unexpected default request topic: %q", cfg.Topics.Request)
	}
	if cfg.Topics.Response != "etl-processor_response" {
		t.Fatalf("response topic not derived from request topic: %q", cfg.Topics.Response)
	}
	if cfg.Kafka.GroupID != "etl-processor_group" {
		t.Fatalf("group id not derived from request topic: %q", cfg.Kafka.GroupID)
	}
	if cfg.Registry.TimeoutSeconds != 5 {
		t.Fatalf("unexpected default registry timeout: %d", cfg.Registry.TimeoutSeconds)
	}
	if cfg.Kafka.PublishTimeoutSeconds != 1 {
		t.Fatalf("unexpected default publish timeout: %d", cfg.Kafka.PublishTimeoutSeconds)
	}
	if cfg.Worker.Concurrency != 10 {
		t.Fatalf("unexpected default concurrency: %d", cfg.Worker.Concurrency)
	}
	if !cfg.Worker.CommitOnSuccessOnly {
		t.Fatal("expected commit-on-success to default to true")
	}
}

func TestLoadDerivedNamesFollowTopicOverride(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("APP_REST_URI", "http://registry:9000")
	t.Setenv("APP_KAFKA_TOPIC", "clinical-events")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Topics.Response != "clinical-events_response" {
		t.Fatalf("unexpected derived response topic: %q", cfg.Topics.Response)
	}
	if cfg.Kafka.GroupID != "clinical-events_group" {
		t.Fatalf("unexpected derived group id: %q", cfg.Kafka.GroupID)
	}
}

func TestLoadExplicitOverrides(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("APP_REST_URI", "http://registry:9000")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "b1:9092, b2:9092")
	t.Setenv("APP_KAFKA_RESPONSE_TOPIC", "acks")
	t.Setenv("APP_KAFKA_GROUP_ID", "relay")
	t.Setenv("WORKER_CONCURRENCY", "3")
	t.Setenv("COMMIT_ON_SUCCESS_ONLY", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if cfg.Topics.Response != "acks" {
		t.Fatalf("unexpected response topic: %q", cfg.Topics.Response)
	}
	if cfg.Kafka.GroupID != "relay" {
		t.Fatalf("unexpected group id: %q", cfg.Kafka.GroupID)
	}
	if cfg.Worker.Concurrency != 3 {
		t.Fatalf("unexpected concurrency: %d", cfg.Worker.Concurrency)
	}
	if cfg.Worker.CommitOnSuccessOnly {
		t.Fatal("expected commit-on-success override to false")
	}
}

func TestLoadMissingRegistryURI(t *testing.T) {
	clearRelayEnv(t)

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when APP_REST_URI is absent")
	}
	if !strings.Contains(err.Error(), "APP_REST_URI") {
		t.Fatalf("error should name the missing variable: %v", err)
	}
}

func TestLoadInvalidInteger(t *testing.T) {
	clearRelayEnv(t)
	t.Setenv("APP_REST_URI", "http://registry:9000")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-integer timeout")
	}
}
