package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// QueueService is the producer surface: publish returns the enqueued
// message's id so callers can hand it back to clients.
type QueueService interface {
	PublishMessage(ctx context.Context, msgType string, payload interface{}) (string, error)
}

// QueueConfig tunes the consumer side. Zero values fall back to one worker
// and a ten second retry delay.
type QueueConfig struct {
	Workers    int
	QueueSize  int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the wire envelope. Payloads travel as JSON, so a consumer sees
// map or slice values rather than the producer's concrete type; ParsePayload
// recovers the typed form.
type Message struct {
	ID        string
	Type      string
	Payload   interface{}
	Attempts  int
	Timestamp time.Time
}

// ParsePayload decodes a message payload into T. It accepts the concrete
// type (same-process dispatch), decoded JSON containers and raw JSON.
func ParsePayload[T any](payload interface{}) (*T, error) {
	var out T
	switch p := payload.(type) {
	case *T:
		return p, nil
	case T:
		return &p, nil
	case map[string]interface{}, []interface{}:
		blob, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("re-encode payload: %w", err)
		}
		if err := json.Unmarshal(blob, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return &out, nil
	case json.RawMessage:
		if err := json.Unmarshal(p, &out); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return &out, nil
	default:
		return nil, fmt.Errorf("unsupported payload type %T", payload)
	}
}
