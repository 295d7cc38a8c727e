package events

// RawRequest is published for every accepted user message.
type RawRequest struct {
	Headers       *Headers `json:"headers"`
	TraceID       string   `json:"trace_id"`
	RoomID        string   `json:"room_id"`
	MessageID     string   `json:"message_id"`
	SessionID     string   `json:"session_id,omitempty"`
	UserID        string   `json:"user_id"`
	Timestamp     int64    `json:"timestamp"`
	Text          string   `json:"text"`
	Channel       string   `json:"channel,omitempty"`
	UserAgent     string   `json:"user_agent,omitempty"`
	SchemaVersion string   `json:"schema_version"`
}

// Validate checks the fields downstream workers rely on.
func (e *RawRequest) Validate() error {
	switch {
	case e.TraceID == "":
		return invalid("raw_request", "trace_id is required")
	case e.RoomID == "":
		return invalid("raw_request", "room_id is required")
	case e.MessageID == "":
		return invalid("raw_request", "message_id is required")
	case e.Headers == nil:
		return invalid("raw_request", "headers are required")
	case e.SchemaVersion == "":
		return invalid("raw_request", "schema_version is required")
	}
	return nil
}

// Filter decisions.
const (
	ActionPass = "PASS"
	ActionDrop = "DROP"
)

// Decision is the filter stage verdict.
type Decision struct {
	Action     string  `json:"action"`
	Score      float64 `json:"score"`
	Threshold  float64 `json:"threshold"`
	ReasonType string  `json:"reason_type,omitempty"`
	ReasonText string  `json:"reason_text,omitempty"`
}

// FilterResult is emitted by the filter workers for each stage.
type FilterResult struct {
	Headers         *Headers  `json:"headers,omitempty"`
	TraceID         string    `json:"trace_id,omitempty"`
	RoomID          string    `json:"room_id"`
	MessageID       string    `json:"message_id"`
	Stage           string    `json:"stage"`
	StageOrder      int       `json:"stage_order,omitempty"`
	Timestamp       int64     `json:"timestamp,omitempty"`
	OriginalText    string    `json:"original_text,omitempty"`
	CleanedText     string    `json:"cleaned_text,omitempty"`
	DetectedPhrases []string  `json:"detected_phrases,omitempty"`
	Decision        *Decision `json:"decision,omitempty"`
	Explanations    []string  `json:"explanations,omitempty"`
	SchemaVersion   string    `json:"schema_version,omitempty"`
}

// Validate checks routing fields.
func (e *FilterResult) Validate() error {
	switch {
	case e.RoomID == "":
		return invalid("filter_result", "room_id is required")
	case e.MessageID == "":
		return invalid("filter_result", "message_id is required")
	}
	return nil
}

// IsDrop reports whether the filter decided to suppress generation.
func (e *FilterResult) IsDrop() bool {
	return e.Decision != nil && equalFold(e.Decision.Action, ActionDrop)
}

// ReasonType returns the decision's reason type, or "".
func (e *FilterResult) ReasonType() string {
	if e.Decision == nil {
		return ""
	}
	return e.Decision.ReasonType
}

// DeltaContent is one streamed chunk.
type DeltaContent struct {
	Delta string `json:"delta"`
	Index int    `json:"index"`
}

// AnswerDelta is a streamed fragment of a generated answer.
type AnswerDelta struct {
	TraceID   string        `json:"trace_id,omitempty"`
	RoomID    string        `json:"room_id"`
	MessageID string        `json:"message_id"`
	Content   *DeltaContent `json:"content"`
	Status    string        `json:"status,omitempty"`
}

// Validate checks routing fields.
func (e *AnswerDelta) Validate() error {
	switch {
	case e.RoomID == "":
		return invalid("answer_delta", "room_id is required")
	case e.Content == nil:
		return invalid("answer_delta", "content is required")
	}
	return nil
}

// DoneContent closes a stream.
type DoneContent struct {
	FinalText    string `json:"final_text"`
	FinishReason string `json:"finish_reason"`
}

// ResponseText carries the full generated text.
type ResponseText struct {
	Text string `json:"text"`
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// AnswerDone terminates a generated answer.
type AnswerDone struct {
	TraceID   string        `json:"trace_id,omitempty"`
	RoomID    string        `json:"room_id"`
	MessageID string        `json:"message_id"`
	Content   *DoneContent  `json:"content,omitempty"`
	Response  *ResponseText `json:"response,omitempty"`
	Usage     *Usage        `json:"usage,omitempty"`
	LatencyMs int64         `json:"latency_ms,omitempty"`
	Status    string        `json:"status,omitempty"`
}

// Validate checks routing fields.
func (e *AnswerDone) Validate() error {
	switch {
	case e.RoomID == "":
		return invalid("answer_done", "room_id is required")
	case e.MessageID == "":
		return invalid("answer_done", "message_id is required")
	}
	return nil
}

// Text returns the answer text from response.text, falling back to
// content.final_text.
func (e *AnswerDone) Text() string {
	if e.Response != nil && e.Response.Text != "" {
		return e.Response.Text
	}
	if e.Content != nil {
		return e.Content.FinalText
	}
	return ""
}

// ErrorDetail describes a worker failure.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// ErrorLog is a structured error reported by any worker.
type ErrorLog struct {
	Headers       *Headers       `json:"headers,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
	RoomID        string         `json:"room_id,omitempty"`
	Timestamp     int64          `json:"timestamp,omitempty"`
	Component     string         `json:"component,omitempty"`
	Level         string         `json:"level"`
	Error         *ErrorDetail   `json:"error"`
	Context       map[string]any `json:"context,omitempty"`
	SchemaVersion string         `json:"schema_version,omitempty"`
}

// Validate requires an error body.
func (e *ErrorLog) Validate() error {
	if e.Error == nil {
		return invalid("error_log", "error is required")
	}
	return nil
}

// DecodeFilterResult unmarshals and validates a filter.result payload.
func DecodeFilterResult(data []byte) (*FilterResult, error) {
	return decode[FilterResult](data)
}

// DecodeAnswerDelta unmarshals and validates an answer.delta payload.
func DecodeAnswerDelta(data []byte) (*AnswerDelta, error) {
	return decode[AnswerDelta](data)
}

// DecodeAnswerDone unmarshals and validates an answer.done payload.
func DecodeAnswerDone(data []byte) (*AnswerDone, error) {
	return decode[AnswerDone](data)
}

// DecodeErrorLog unmarshals and validates an error.log payload.
func DecodeErrorLog(data []byte) (*ErrorLog, error) {
	return decode[ErrorLog](data)
}
