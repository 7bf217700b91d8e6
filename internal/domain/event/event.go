package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a voucher lifecycle event published after a state change is stored
type Event struct {
	ID            string                 `json:"id"`
	Type          Type                   `json:"type"`
	VoucherID     string                 `json:"voucher_id"`
	ActorID       string                 `json:"actor_id"`
	Payload       map[string]interface{} `json:"payload"`
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
}

// NewEvent creates an event with a generated ID and the current time
func NewEvent(eventType Type, voucherID, actorID string, payload map[string]interface{}) *Event {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		VoucherID:     voucherID,
		ActorID:       actorID,
		Payload:       payload,
		Timestamp:     time.Now().UTC(),
		CorrelationID: id,
	}
}

// WithCorrelation links the event to the request or batch that caused it
func (e *Event) WithCorrelation(correlationID string) *Event {
	if correlationID != "" {
		e.CorrelationID = correlationID
	}
	return e
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an integer value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return 0
}
