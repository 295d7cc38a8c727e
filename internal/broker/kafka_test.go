package broker

import (
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHeaders_Conversion(t *testing.T) {
	in := map[string]string{"trace_id": "t1", "producer": "gateway"}
	hs := toKafkaHeaders(in)
	if len(hs) != 2 {
		t.Fatalf("Expected 2 headers, got %d", len(hs))
	}
	if hs[0].Key != "producer" || hs[1].Key != "trace_id" {
		t.Errorf("Expected sorted keys, got %q, %q", hs[0].Key, hs[1].Key)
	}

	out := fromKafkaHeaders(hs)
	if out["trace_id"] != "t1" || out["producer"] != "gateway" {
		t.Errorf("Unexpected headers: %v", out)
	}
}

func TestHeaders_Empty(t *testing.T) {
	if toKafkaHeaders(nil) != nil {
		t.Error("Expected nil kafka headers")
	}
	if fromKafkaHeaders(nil) != nil {
		t.Error("Expected nil header map")
	}
	if (Delivery{}).Header("trace_id") != "" {
		t.Error("Expected empty header on zero Delivery")
	}
}

func TestFromKafkaHeaders_LastWins(t *testing.T) {
	out := fromKafkaHeaders([]kafka.Header{
		{Key: "trace_id", Value: []byte("a")},
		{Key: "trace_id", Value: []byte("b")},
	})
	if out["trace_id"] != "b" {
		t.Errorf("Expected b, got %q", out["trace_id"])
	}
}

func TestNewKafkaPublisher_NoBrokers(t *testing.T) {
	if _, err := NewKafkaPublisher(nil, nil, nil); !errors.Is(err, ErrNoBrokers) {
		t.Errorf("Expected ErrNoBrokers, got %v", err)
	}
	if _, err := NewKafkaConsumer(nil, "g", "t", nil); !errors.Is(err, ErrNoBrokers) {
		t.Errorf("Expected ErrNoBrokers, got %v", err)
	}
}

func TestKafkaPublisher_CompletionNotifiesObserver(t *testing.T) {
	var topics []string
	var failures int
	p, err := NewKafkaPublisher([]string{"localhost:9092"}, nil, func(topic string, err error) {
		topics = append(topics, topic)
		if err != nil {
			failures++
		}
	})
	if err != nil {
		t.Fatalf("NewKafkaPublisher() error = %v", err)
	}

	msgs := []kafka.Message{
		{Topic: "a", Headers: toKafkaHeaders(map[string]string{"trace_id": "t"})},
		{Topic: "b"},
	}
	p.onCompletion(msgs, nil)
	p.onCompletion(msgs[:1], errors.New("broker down"))

	if len(topics) != 3 || failures != 1 {
		t.Errorf("Expected 3 notifications with 1 failure, got %v (%d failures)", topics, failures)
	}
}
