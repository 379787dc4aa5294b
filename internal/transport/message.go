package transport

import (
	"context"
	"encoding/json"
	"time"
)

// Message is one bus message.
type Message struct {
	Topic    string
	Payload  any // decoded JSON document, or the raw string if not JSON
	Received time.Time
}

// Subscription yields bus messages in arrival order.
type Subscription interface {
	// Next waits at most maxWait for a message. It returns ok=false when
	// nothing arrived in time, and ctx.Err() if ctx ends first.
	Next(ctx context.Context, maxWait time.Duration) (msg Message, ok bool, err error)
}

// Source is a Subscription backed by a live connection.
type Source interface {
	Subscription
	Close() error
}

// DecodePayload decodes data as JSON, falling back to the raw string.
func DecodePayload(data []byte) any {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return string(data)
	}
	return v
}
