package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FRONTEND_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected port 8080, got %q", cfg.Port)
	}
	if cfg.Kafka.RawTopic != "chat.raw.request.v1" {
		t.Errorf("Expected raw topic chat.raw.request.v1, got %q", cfg.Kafka.RawTopic)
	}
	if cfg.SSE.HeartbeatInterval != 25*time.Second {
		t.Errorf("Expected 25s heartbeat, got %v", cfg.SSE.HeartbeatInterval)
	}
	if cfg.Title.Workers != 4 || cfg.Title.QueueSize != 200 {
		t.Errorf("Unexpected title pool sizing: %+v", cfg.Title)
	}
	if !cfg.IsDevelopment() {
		t.Error("Expected development mode with empty FRONTEND_URL")
	}
}

func TestLoad_KafkaBrokersList(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestValidate_RequiresSecretInProduction(t *testing.T) {
	t.Setenv("FRONTEND_URL", "https://chat.example.com")
	t.Setenv("JWT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when JWT_SECRET is missing in production")
	}

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IsDevelopment() {
		t.Error("Expected production mode")
	}
}

func TestValidate_RejectsBadPoolSize(t *testing.T) {
	t.Setenv("TITLE_WORKERS", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for TITLE_WORKERS=0")
	}
}

func TestValidate_RejectsDuplicateTopics(t *testing.T) {
	t.Setenv("KAFKA_TOPIC_ANSWER_DONE", "chat.llm.answer.delta.v1")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error when two topics share a name")
	}
}

func TestAllowedOrigins(t *testing.T) {
	cfg := &Config{FrontendURL: "https://a.example.com, https://b.example.com"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[1] != "https://b.example.com" {
		t.Errorf("Unexpected origins: %v", got)
	}

	cfg.FrontendURL = ""
	if got := cfg.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("Expected wildcard, got %v", got)
	}
}
