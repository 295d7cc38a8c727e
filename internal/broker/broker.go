// Package broker adapts the partitioned message broker to the relay.
//
// Handlers see Delivery values rather than client library types so the
// pipeline can be driven in tests without a running broker.
package broker

import (
	"context"
	"time"
)

// Delivery is one message read from a topic.
type Delivery struct {
	Topic     string
	Key       string
	Value     []byte
	Headers   map[string]string
	Partition int
	Offset    int64
	Time      time.Time
}

// Header returns the named header, or "".
func (d Delivery) Header(name string) string {
	if d.Headers == nil {
		return ""
	}
	return d.Headers[name]
}

// Handler processes one delivery. Its error is logged and the delivery is
// committed regardless.
type Handler func(ctx context.Context, d Delivery) error

// Publisher emits messages to a topic. Publish returns once the message is
// queued; delivery results are reported asynchronously.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers map[string]string) error
	Close() error
}

// Consumer drives a Handler until ctx is canceled.
type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}
