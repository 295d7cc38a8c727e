package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ashureev/aice-relay/internal/broker"
	"github.com/ashureev/aice-relay/internal/domain"
	"github.com/ashureev/aice-relay/internal/dropreply"
	"github.com/ashureev/aice-relay/internal/events"
	"github.com/ashureev/aice-relay/internal/metrics"
	"github.com/ashureev/aice-relay/internal/store"
	"github.com/ashureev/aice-relay/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const snippetLimit = 512

// Topics names the result topics the relay consumes.
type Topics struct {
	Filter string
	Delta  string
	Done   string
	Error  string
}

// Consumers turns worker output into persisted assistant messages and
// viewer pushes. Every handler swallows its own failures: a delivery that
// cannot be processed is logged and counted as consumed.
type Consumers struct {
	store   Store
	turns   Turns
	hub     Pusher
	replies ReplyBuilder
	tracer  trace.Tracer
	now     func() time.Time
	logger  *slog.Logger
}

// NewConsumers creates the result consumers.
func NewConsumers(store Store, turns Turns, hub Pusher, replies ReplyBuilder, logger *slog.Logger) *Consumers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumers{
		store:   store,
		turns:   turns,
		hub:     hub,
		replies: replies,
		tracer:  otel.Tracer("github.com/ashureev/aice-relay/internal/pipeline"),
		now:     time.Now,
		logger:  logger,
	}
}

// Handlers maps each configured topic to its handler.
func (c *Consumers) Handlers(t Topics) map[string]broker.Handler {
	return map[string]broker.Handler{
		t.Filter: c.wrap("filter.result", c.HandleFilterResult),
		t.Delta:  c.wrap("answer.delta", c.HandleAnswerDelta),
		t.Done:   c.wrap("answer.done", c.HandleAnswerDone),
		t.Error:  c.wrap("error.log", c.HandleError),
	}
}

// Run drives each source with the handler for its topic until ctx is
// canceled or one source fails.
func (c *Consumers) Run(ctx context.Context, t Topics, sources map[string]broker.Consumer) error {
	handlers := c.Handlers(t)
	if len(handlers) != 4 {
		return fmt.Errorf("result topics must be distinct: %+v", t)
	}
	for topic := range sources {
		if _, ok := handlers[topic]; !ok {
			return fmt.Errorf("no handler for topic %q", topic)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for topic, src := range sources {
		handler := handlers[topic]
		g.Go(func() error {
			err := src.Run(gctx, handler)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume %s: %w", topic, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// wrap adds a span, a panic guard and the consumed-anyway policy.
func (c *Consumers) wrap(name string, h broker.Handler) broker.Handler {
	return func(ctx context.Context, d broker.Delivery) (err error) {
		if d.Headers != nil {
			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(d.Headers))
		}
		ctx, span := c.tracer.Start(ctx, "consume "+name,
			trace.WithSpanKind(trace.SpanKindConsumer),
			trace.WithAttributes(
				attribute.String("messaging.destination.name", d.Topic),
				attribute.String("messaging.kafka.message.key", d.Key),
			))
		defer span.End()

		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
			outcome := metrics.OutcomeOK
			if err != nil {
				outcome = metrics.OutcomeError
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				c.logger.Error(name+" consume failed",
					"payload", safeCut(d.Value), "cause", err.Error(), "topic", d.Topic, "offset", d.Offset)
			}
			metrics.EventsConsumed.WithLabelValues(d.Topic, outcome).Inc()
			err = nil
		}()

		return h(ctx, d)
	}
}

// HandleFilterResult synthesizes a reply for dropped messages and relays
// the verdict for passed ones.
func (c *Consumers) HandleFilterResult(ctx context.Context, d broker.Delivery) error {
	fr, err := events.DecodeFilterResult(d.Value)
	if err != nil {
		return err
	}
	traceID := resolveTraceID(ctx, fr.TraceID, d)

	if !fr.IsDrop() {
		fr.TraceID = traceID
		c.hub.Push(fr.RoomID, events.PushFilterResult, fr)
		return nil
	}
	return c.replyToDrop(ctx, fr, traceID)
}

func (c *Consumers) replyToDrop(ctx context.Context, fr *events.FilterResult, traceID string) error {
	room, err := c.store.GetRoom(ctx, fr.RoomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, fr.RoomID)
	}

	tone := domain.TonePolite
	if owner, err := c.store.GetUser(ctx, room.OwnerID); err != nil {
		c.logger.Warn("Failed to load room owner, using default tone", "room_id", room.RoomID, "error", err)
	} else {
		tone = owner.ToneOrDefault(domain.TonePolite)
	}

	text := c.replies.BuildText(fr, tone)
	turnIdx := c.turnFor(ctx, fr.RoomID, fr.MessageID)

	reply := &domain.Message{
		MessageID: uuid.NewString(),
		RoomID:    fr.RoomID,
		AuthorID:  room.OwnerID,
		Role:      domain.RoleAssistant,
		Content:   text,
		TraceID:   traceID,
		TurnIndex: turnIdx,
		CreatedAt: c.now(),
	}
	if err := c.store.InsertMessage(ctx, reply); err != nil {
		if errors.Is(err, store.ErrDuplicateAssistant) {
			c.logger.Warn("Turn already answered, skipping drop reply",
				"room_id", fr.RoomID, "turn_index", turnIdx, "trace_id", traceID)
			return nil
		}
		return fmt.Errorf("persist drop reply: %w", err)
	}
	metrics.DropReplies.WithLabelValues(string(dropreply.IntentOf(fr))).Inc()

	index := 0
	for _, r := range text {
		c.hub.Push(fr.RoomID, events.PushDelta, events.StreamDelta{
			TraceID:   traceID,
			MessageID: fr.MessageID,
			Content:   events.DeltaContent{Delta: string(r), Index: index},
			Status:    events.StatusStreaming,
		})
		index++
	}

	var latency int64
	if fr.Timestamp > 0 {
		latency = max(0, c.now().UnixMilli()-fr.Timestamp)
	}
	c.hub.Push(fr.RoomID, events.PushDone, events.StreamDone{
		TraceID:   traceID,
		MessageID: fr.MessageID,
		Content:   events.DoneContent{FinalText: text, FinishReason: events.FinishReasonStop},
		Status:    events.StatusDone,
		LatencyMs: latency,
	})

	c.logger.Info("Drop reply sent", "room_id", fr.RoomID, "trace_id", traceID, "chars", utf8.RuneCountInString(text))
	return nil
}

// HandleAnswerDelta relays a generated chunk.
func (c *Consumers) HandleAnswerDelta(ctx context.Context, d broker.Delivery) error {
	delta, err := events.DecodeAnswerDelta(d.Value)
	if err != nil {
		return err
	}
	delta.TraceID = resolveTraceID(ctx, delta.TraceID, d)
	c.hub.Push(delta.RoomID, events.PushDelta, delta)
	return nil
}

// HandleAnswerDone persists the generated answer for its turn and relays
// the terminal event.
func (c *Consumers) HandleAnswerDone(ctx context.Context, d broker.Delivery) error {
	done, err := events.DecodeAnswerDone(d.Value)
	if err != nil {
		return err
	}
	done.TraceID = resolveTraceID(ctx, done.TraceID, d)

	room, err := c.store.GetRoom(ctx, done.RoomID)
	if err != nil {
		return fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, done.RoomID)
	}

	turnIdx := c.turnFor(ctx, done.RoomID, done.MessageID)
	answer := &domain.Message{
		MessageID: uuid.NewString(),
		RoomID:    done.RoomID,
		AuthorID:  room.OwnerID,
		Role:      domain.RoleAssistant,
		Content:   done.Text(),
		TraceID:   done.TraceID,
		TurnIndex: turnIdx,
		CreatedAt: c.now(),
	}
	if err := c.store.InsertMessage(ctx, answer); err != nil {
		if errors.Is(err, store.ErrDuplicateAssistant) {
			c.logger.Warn("Turn already answered, skipping generated answer",
				"room_id", done.RoomID, "turn_index", turnIdx, "trace_id", done.TraceID)
			return nil
		}
		return fmt.Errorf("persist answer: %w", err)
	}

	c.hub.Push(done.RoomID, events.PushDone, done)
	return nil
}

// HandleError relays a worker error to its room, or to GlobalRoom.
func (c *Consumers) HandleError(ctx context.Context, d broker.Delivery) error {
	e, err := events.DecodeErrorLog(d.Value)
	if err != nil {
		return err
	}
	e.TraceID = resolveTraceID(ctx, e.TraceID, d)
	roomID := telemetry.Coalesce(e.RoomID, GlobalRoom)
	c.logger.Warn("Worker reported error",
		"room_id", roomID, "component", e.Component, "level", e.Level,
		"type", e.Error.Type, "message", e.Error.Message, "trace_id", e.TraceID)
	c.hub.Push(roomID, events.PushError, e)
	return nil
}

// turnFor finds the turn of the user message an assistant reply answers.
func (c *Consumers) turnFor(ctx context.Context, roomID, messageID string) int {
	if messageID != "" {
		msg, err := c.store.GetMessage(ctx, messageID)
		if err != nil {
			c.logger.Warn("Failed to load originating message", "message_id", messageID, "error", err)
		} else if msg != nil {
			return msg.TurnIndex
		}
	}
	turnIdx, err := c.turns.CurrentTurn(ctx, roomID)
	if err != nil || turnIdx < 1 {
		c.logger.Warn("Falling back to first turn", "room_id", roomID, "message_id", messageID, "error", err)
		return 1
	}
	c.logger.Warn("Originating message not found, using current turn",
		"room_id", roomID, "message_id", messageID, "turn_index", turnIdx)
	return turnIdx
}

// resolveTraceID prefers the payload, then the broker header, then the
// active span.
func resolveTraceID(ctx context.Context, payload string, d broker.Delivery) string {
	return telemetry.Coalesce(payload, d.Header(events.HeaderTraceID), telemetry.TraceIDFromContext(ctx))
}

func safeCut(b []byte) string {
	if b == nil {
		return "null"
	}
	if len(b) <= snippetLimit {
		return string(b)
	}
	cut := snippetLimit
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "..."
}
