package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config captures all runtime configuration for the consent relay. Values are
// read once at startup and handed to constructors by reference; per-message
// logic never performs ambient environment lookups.
type Config struct {
	App      AppConfig
	Kafka    KafkaConfig
	Topics   TopicConfig
	Registry RegistryConfig
	Worker   WorkerConfig
	Ops      OpsConfig
}

// AppConfig contains generic application level settings.
type AppConfig struct {
	Env      string
	LogLevel string
}

// KafkaConfig defines broker information and publish tuning.
type KafkaConfig struct {
	Brokers               []string
	GroupID               string
	PublishTimeoutSeconds int
}

// TopicConfig names the inbound request topic and the response topic the
// acknowledgements are published to. The response topic defaults to the
// request topic plus a fixed suffix.
type TopicConfig struct {
	Request  string
	Response string
}

// RegistryConfig addresses the downstream REST registry.
type RegistryConfig struct {
	BaseURI        string
	TimeoutSeconds int
}

// WorkerConfig controls pipeline concurrency and inbound size limits.
type WorkerConfig struct {
	Concurrency         int
	MsgMaxBytes         int
	CommitOnSuccessOnly bool
}

// OpsConfig configures the operational HTTP listener (health, metrics).
type OpsConfig struct {
	Addr string
}

// Load reads environment variables, applies defaults, validates required
// values and returns a populated Config instance. The downstream base URI is
// the only hard requirement; everything else has a usable default.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ldr := &envLoader{}

	cfg := &Config{}
	cfg.App.Env = ldr.getString("APP_ENV", "development", false)
	cfg.App.LogLevel = ldr.getString("LOG_LEVEL", "info", false)

	cfg.Kafka.Brokers = ldr.getStringSlice("KAFKA_BOOTSTRAP_SERVERS", "kafka:9092", false)
	cfg.Topics.Request = ldr.getString("APP_KAFKA_TOPIC", "etl-processor", false)
	cfg.Topics.Response = ldr.getString("APP_KAFKA_RESPONSE_TOPIC", cfg.Topics.Request+"_response", false)
	cfg.Kafka.GroupID = ldr.getString("APP_KAFKA_GROUP_ID", cfg.Topics.Request+"_group", false)
	cfg.Kafka.PublishTimeoutSeconds = ldr.getInt("PUBLISH_TIMEOUT_SECONDS", 1, false)

	cfg.Registry.BaseURI = ldr.getString("APP_REST_URI", "", true)
	cfg.Registry.TimeoutSeconds = ldr.getInt("REQUEST_TIMEOUT_SECONDS", 5, false)

	cfg.Worker.Concurrency = ldr.getInt("WORKER_CONCURRENCY", 10, false)
	cfg.Worker.MsgMaxBytes = ldr.getInt("MSG_MAX_BYTES", 1_000_000, false)
	cfg.Worker.CommitOnSuccessOnly = ldr.getBool("COMMIT_ON_SUCCESS_ONLY", true, false)

	cfg.Ops.Addr = ldr.getString("OPS_ADDR", ":9090", false)

	if err := ldr.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

type envLoader struct {
	errs []string
}

func (l *envLoader) validate() error {
	if len(l.errs) == 0 {
		return nil
	}
	return fmt.Errorf("config validation failed: %s", strings.Join(l.errs, "; "))
}

func (l *envLoader) getString(key, def string, required bool) string {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		return val
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getInt(key string, def int, required bool) int {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		i, err := strconv.Atoi(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid integer", key))
			return def
		}
		return i
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getBool(key string, def bool, required bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.TrimSpace(val)
		if val == "" {
			if required {
				l.addError(fmt.Sprintf("%s is required", key))
			}
			return def
		}
		parsed, err := strconv.ParseBool(val)
		if err != nil {
			l.addError(fmt.Sprintf("%s must be a valid boolean", key))
			return def
		}
		return parsed
	}
	if required {
		l.addError(fmt.Sprintf("%s is required", key))
	}
	return def
}

func (l *envLoader) getStringSlice(key, def string, required bool) []string {
	raw := l.getString(key, def, required)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if required && len(out) == 0 {
		l.addError(fmt.Sprintf("%s must contain at least one entry", key))
	}
	return out
}

func (l *envLoader) addError(err string) {
	l.errs = append(l.errs, err)
}
