// Package events defines the versioned broker envelopes exchanged with the
// filter and generation workers, and the typed payloads pushed to viewers.
package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SchemaVersion is stamped on every envelope the relay produces.
const SchemaVersion = "1.0.0"

// ContentTypeJSON is the only content type the relay produces.
const ContentTypeJSON = "application/json"

// HeaderTraceID is the broker message header carrying the trace id.
const HeaderTraceID = "trace_id"

// ErrInvalidEnvelope marks a payload that failed validation.
var ErrInvalidEnvelope = errors.New("invalid event envelope")

// Headers is the common envelope header block.
type Headers struct {
	TraceID       string `json:"trace_id"`
	SchemaVersion string `json:"schema_version"`
	Producer      string `json:"producer"`
	CreatedAtMs   int64  `json:"created_at_ms"`
	ContentType   string `json:"content_type"`
}

// NewHeaders builds a header block for an envelope produced now.
func NewHeaders(traceID, producer string, now time.Time) *Headers {
	return &Headers{
		TraceID:       traceID,
		SchemaVersion: SchemaVersion,
		Producer:      producer,
		CreatedAtMs:   now.UnixMilli(),
		ContentType:   ContentTypeJSON,
	}
}

func invalid(kind, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidEnvelope, kind, reason)
}

type validator interface {
	Validate() error
}

func decode[T any, PT interface {
	*T
	validator
}](data []byte) (*T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := PT(&v).Validate(); err != nil {
		return nil, err
	}
	return &v, nil
}
