package events

import "strings"

// Push event names delivered to viewers.
const (
	PushConnected    = "connected"
	PushSkeleton     = "skeleton"
	PushDelta        = "delta"
	PushDone         = "done"
	PushFilterResult = "filter_result"
	PushError        = "error"
	PushPing         = "ping"
)

// Stream statuses.
const (
	StatusStreaming = "streaming"
	StatusDone      = "done"
)

// FinishReasonStop marks a normally completed stream.
const FinishReasonStop = "stop"

// Skeleton tells viewers processing of a turn has started.
type Skeleton struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	TurnIndex int    `json:"turnIndex"`
}

// StreamDelta is one synthesized chunk of a reply.
type StreamDelta struct {
	TraceID   string       `json:"trace_id"`
	MessageID string       `json:"message_id"`
	Content   DeltaContent `json:"content"`
	Status    string       `json:"status"`
}

// StreamDone closes a synthesized reply.
type StreamDone struct {
	TraceID   string      `json:"trace_id"`
	MessageID string      `json:"message_id"`
	Content   DoneContent `json:"content"`
	Usage     Usage       `json:"usage"`
	Status    string      `json:"status"`
	LatencyMs int64       `json:"latency_ms"`
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), b)
}
