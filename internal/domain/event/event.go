package event

import (
	"time"

	"github.com/google/uuid"
)

// Event is a run lifecycle notification. Subscribers use it to refresh their
// view of the run; it never carries the run's full data.
type Event struct {
	ID        string                 `json:"id"`
	Type      Type                   `json:"type"`
	RunID     string                 `json:"runId"`
	TenderID  string                 `json:"tenderId"`
	BidderID  string                 `json:"bidderId"`
	State     string                 `json:"state"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates an event with a generated ID and the current time
func NewEvent(eventType Type, runID, tenderID, bidderID, state string, payload map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		RunID:     runID,
		TenderID:  tenderID,
		BidderID:  bidderID,
		State:     state,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// WithPayload returns a copy of the event with key set in its payload
func (e *Event) WithPayload(key string, value interface{}) *Event {
	newPayload := make(map[string]interface{}, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
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

// GetPayloadFloat retrieves a float64 value from the payload
func (e *Event) GetPayloadFloat(key string) float64 {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case float64:
			return v
		case int64:
			return float64(v)
		case int:
			return float64(v)
		}
	}
	return 0.0
}
