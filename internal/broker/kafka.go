package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
)

// ErrNoBrokers is returned when no bootstrap addresses are configured.
var ErrNoBrokers = errors.New("no kafka brokers configured")

// PublishObserver is notified once per message when the async write settles.
type PublishObserver func(topic string, err error)

// KafkaPublisher writes keyed messages asynchronously. Messages sharing a key
// land on the same partition.
type KafkaPublisher struct {
	writer   *kafka.Writer
	logger   *slog.Logger
	observer PublishObserver
}

// NewKafkaPublisher creates a publisher for the given bootstrap brokers.
func NewKafkaPublisher(brokers []string, logger *slog.Logger, observer PublishObserver) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &KafkaPublisher{logger: logger, observer: observer}
	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  true,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion:             p.onCompletion,
	}
	return p, nil
}

// Publish queues value on topic under key.
func (p *KafkaPublisher) Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: toKafkaHeaders(headers),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("queue message on %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaPublisher) onCompletion(messages []kafka.Message, err error) {
	for _, m := range messages {
		traceID := fromKafkaHeaders(m.Headers)["trace_id"]
		if err != nil {
			p.logger.Error("[PUBLISH] Send failed",
				"topic", m.Topic, "key", string(m.Key), "trace_id", traceID, "error", err)
		} else {
			p.logger.Info("[PUBLISH] Sent",
				"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "trace_id", traceID)
		}
		if p.observer != nil {
			p.observer(m.Topic, err)
		}
	}
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads a single topic as a member of a consumer group.
type KafkaConsumer struct {
	reader *kafka.Reader
	topic  string
	logger *slog.Logger
}

// NewKafkaConsumer creates a group reader for topic.
func NewKafkaConsumer(brokers []string, groupID, topic string, logger *slog.Logger) (*KafkaConsumer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if logger == nil {
		logger = slog.Default()
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        groupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	})
	return &KafkaConsumer{reader: reader, topic: topic, logger: logger}, nil
}

// Run reads messages and hands each to handler until ctx is canceled.
// Handler errors are logged; the offset advances either way.
func (c *KafkaConsumer) Run(ctx context.Context, handler Handler) error {
	c.logger.Info("[CONSUMER] Started", "topic", c.topic)
	for {
		m, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("[CONSUMER] Stopped", "topic", c.topic)
				return nil
			}
			return fmt.Errorf("read %s: %w", c.topic, err)
		}

		d := Delivery{
			Topic:     m.Topic,
			Key:       string(m.Key),
			Value:     m.Value,
			Headers:   fromKafkaHeaders(m.Headers),
			Partition: m.Partition,
			Offset:    m.Offset,
			Time:      m.Time,
		}
		if err := handler(ctx, d); err != nil {
			c.logger.Warn("[CONSUMER] Handler failed", "topic", c.topic, "offset", m.Offset, "error", err)
		}
	}
}

// Close leaves the group and closes the reader.
func (c *KafkaConsumer) Close() error {
	return c.reader.Close()
}

func toKafkaHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]kafka.Header, 0, len(h))
	for _, k := range keys {
		out = append(out, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return out
}

// fromKafkaHeaders keeps the last value when a key repeats.
func fromKafkaHeaders(hs []kafka.Header) map[string]string {
	if len(hs) == 0 {
		return nil
	}
	out := make(map[string]string, len(hs))
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}
