package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ashureev/aice-relay/internal/broker"
	"github.com/ashureev/aice-relay/internal/events"
	"github.com/ashureev/aice-relay/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// EventPublisher emits raw requests keyed by room so one room's requests stay
// ordered on a single partition.
type EventPublisher struct {
	pub    broker.Publisher
	topic  string
	logger *slog.Logger
}

// NewEventPublisher creates a publisher writing raw requests to topic.
func NewEventPublisher(pub broker.Publisher, topic string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{pub: pub, topic: topic, logger: logger}
}

// PublishRaw validates and queues req. Delivery is reported asynchronously by
// the broker; an error here means the message was never queued.
func (p *EventPublisher) PublishRaw(ctx context.Context, req *events.RawRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode raw request: %w", err)
	}

	headers := brokerHeaders(req.Headers)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(headers))

	if err := p.pub.Publish(ctx, p.topic, req.RoomID, value, headers); err != nil {
		RecordPublish(p.topic, err)
		return err
	}
	p.logger.Debug("Raw request queued", "topic", p.topic, "trace_id", req.TraceID, "room_id", req.RoomID)
	return nil
}

func brokerHeaders(h *events.Headers) map[string]string {
	return map[string]string{
		events.HeaderTraceID: h.TraceID,
		"schema_version":     h.SchemaVersion,
		"producer":           h.Producer,
		"created_at_ms":      strconv.FormatInt(h.CreatedAtMs, 10),
		"content_type":       h.ContentType,
	}
}

// RecordPublish counts a settled publish. It matches broker.PublishObserver.
func RecordPublish(topic string, err error) {
	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeError
	}
	metrics.EventsPublished.WithLabelValues(topic, outcome).Inc()
}
