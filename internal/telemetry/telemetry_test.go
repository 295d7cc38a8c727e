package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestSetup_DisabledIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: true})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestTraceIDFromContext(t *testing.T) {
	if got := TraceIDFromContext(context.Background()); got != "" {
		t.Errorf("Expected empty trace id, got %q", got)
	}

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled,
	}))
	if got := TraceIDFromContext(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Unexpected trace id %q", got)
	}
	if got := TraceIDOrNew(ctx); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("Expected span trace id, got %q", got)
	}
}

func TestNewTraceID(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if len(a) != 32 || a == b {
		t.Errorf("Expected distinct 32-char ids, got %q and %q", a, b)
	}
}

func TestCoalesce(t *testing.T) {
	if got := Coalesce("", "  ", "b", "c"); got != "b" {
		t.Errorf("Coalesce() = %q, want b", got)
	}
	if got := Coalesce("", " "); got != "" {
		t.Errorf("Coalesce() = %q, want empty", got)
	}
}
