package kafka

import (
	"encoding/json"
	"time"
)

// Envelope is the versioned wrapper for every domain event on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // e.g. BargainAccepted
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`   // RFC3339
	Producer      string          `json:"producer"`      // e.g. "bargain-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // room_id atau order_id
	Payload       json.RawMessage `json:"payload"`
}
