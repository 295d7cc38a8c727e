// Package config provides application configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port        string `env:"PORT"         envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_URL"`
	DBPath      string `env:"DB_PATH"      envDefault:"./data/relay.db"`
	DatabaseURL string `env:"DATABASE_URL"` // Postgres when set, SQLite otherwise
	RedisURL    string `env:"REDIS_URL"`    // in-memory cache when empty

	Kafka     KafkaConfig
	Title     TitleConfig
	SSE       SSEConfig
	Auth      AuthConfig
	Telemetry TelemetryConfig
	Timeout   TimeoutConfig
	Retry     RetryConfig
}

// KafkaConfig configures the broker connection and topic names.
type KafkaConfig struct {
	Brokers     []string `env:"KAFKA_BROKERS"              envDefault:"localhost:9092" envSeparator:","`
	GroupID     string   `env:"KAFKA_GROUP_ID"             envDefault:"backend-msk"`
	Producer    string   `env:"KAFKA_PRODUCER"             envDefault:"gateway"`
	RawTopic    string   `env:"KAFKA_TOPIC_RAW"            envDefault:"chat.raw.request.v1"`
	FilterTopic string   `env:"KAFKA_TOPIC_FILTER_RESULT"  envDefault:"chat.filter.result.v1"`
	DeltaTopic  string   `env:"KAFKA_TOPIC_ANSWER_DELTA"   envDefault:"chat.llm.answer.delta.v1"`
	DoneTopic   string   `env:"KAFKA_TOPIC_ANSWER_DONE"    envDefault:"chat.llm.answer.done.v1"`
	ErrorTopic  string   `env:"KAFKA_TOPIC_ERROR"          envDefault:"chat.error.v1"`
}

// TitleConfig controls background room title generation.
type TitleConfig struct {
	Workers   int           `env:"TITLE_WORKERS"    envDefault:"4"`
	QueueSize int           `env:"TITLE_QUEUE_SIZE" envDefault:"200"`
	Timeout   time.Duration `env:"TITLE_TIMEOUT"    envDefault:"3s"`
	GuardTTL  time.Duration `env:"TITLE_GUARD_TTL"  envDefault:"30s"`
	APIURL    string        `env:"TITLE_API_URL"`
	APIPath   string        `env:"TITLE_API_PATH"   envDefault:"/v1/chat/completions"`
	APIKey    string        `env:"TITLE_API_KEY"`
	Model     string        `env:"TITLE_MODEL"      envDefault:"gpt-4o-mini"`
	GRPCAddr  string        `env:"TITLE_GRPC_ADDR"`
}

// SSEConfig controls push stream behaviour.
type SSEConfig struct {
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"25s"`
	RetryDelay        time.Duration `env:"SSE_RETRY_DELAY"        envDefault:"5s"`
	BufferSize        int           `env:"SSE_BUFFER_SIZE"        envDefault:"64"`
	SendTimeout       time.Duration `env:"SSE_SEND_TIMEOUT"       envDefault:"2s"`
}

// AuthConfig configures bearer token verification.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`
}

// TelemetryConfig configures OpenTelemetry tracing. Tracing is opt-in.
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED"      envDefault:"true"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"aice-relay"`
}

// TimeoutConfig groups request-scoped timeouts.
type TimeoutConfig struct {
	HealthCheck time.Duration `env:"HEALTH_CHECK_TIMEOUT" envDefault:"5s"`
}

// RetryConfig controls retries against the durable store.
type RetryConfig struct {
	DatabaseMaxRetries     int           `env:"DB_MAX_RETRIES"      envDefault:"3"`
	DatabaseRetryBaseDelay time.Duration `env:"DB_RETRY_BASE_DELAY" envDefault:"50ms"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DatabaseURL == "" && c.DBPath == "" {
		return fmt.Errorf("one of DATABASE_URL or DB_PATH must be set")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS cannot be empty")
	}
	seen := make(map[string]bool, 5)
	for _, topic := range c.Kafka.Topics() {
		if topic == "" {
			return fmt.Errorf("kafka topic names cannot be empty")
		}
		if seen[topic] {
			return fmt.Errorf("kafka topic %q is configured more than once", topic)
		}
		seen[topic] = true
	}
	if c.Title.Workers <= 0 {
		return fmt.Errorf("TITLE_WORKERS must be > 0")
	}
	if c.Title.QueueSize <= 0 {
		return fmt.Errorf("TITLE_QUEUE_SIZE must be > 0")
	}
	if c.Title.Timeout <= 0 {
		return fmt.Errorf("TITLE_TIMEOUT must be > 0")
	}
	if c.SSE.HeartbeatInterval <= 0 {
		return fmt.Errorf("SSE_HEARTBEAT_INTERVAL must be > 0")
	}
	if c.SSE.BufferSize <= 0 {
		return fmt.Errorf("SSE_BUFFER_SIZE must be > 0")
	}
	if c.SSE.SendTimeout <= 0 {
		return fmt.Errorf("SSE_SEND_TIMEOUT must be > 0")
	}
	if !c.IsDevelopment() && c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required outside development")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// Topics returns the result topics the relay consumes, followed by the raw
// request topic it produces to.
func (k KafkaConfig) Topics() []string {
	return []string{k.FilterTopic, k.DeltaTopic, k.DoneTopic, k.ErrorTopic, k.RawTopic}
}

// AllowedOrigins returns the CORS origins derived from FrontendURL.
func (c *Config) AllowedOrigins() []string {
	if c.FrontendURL == "" {
		return []string{"*"}
	}
	origins := strings.Split(c.FrontendURL, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
