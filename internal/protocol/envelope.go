package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the frame every real-time message travels in.
// Timestamp is server wall-clock milliseconds for outbound frames;
// inbound timestamps are client-supplied and never trusted.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

// Encode marshals an outbound frame.
func Encode(event string, data any, now time.Time) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}

	b, err := json.Marshal(Envelope{Event: event, Data: raw, Timestamp: now.UnixMilli()})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", event, err)
	}
	return b, nil
}
