package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// HandlerFunc processes one message payload.
type HandlerFunc func(ctx context.Context, payload []byte) error

// Config contains the configuration for the queue.
type Config struct {
	Workers    int           // number of workers
	RetryLimit int           // number of maximum retries
	RetryDelay time.Duration // time delay between retries
	KeyPrefix  string
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewMessage wraps payload for msgType. Byte payloads are stored as-is.
func NewMessage(msgType string, payload interface{}, now time.Time) (Message, error) {
	var raw []byte
	switch p := payload.(type) {
	case []byte:
		raw = p
	case json.RawMessage:
		raw = p
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal payload: %w", err)
		}
		raw = b
	}
	if !json.Valid(raw) {
		return Message{}, fmt.Errorf("payload is not valid json")
	}
	return Message{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    raw,
		EnqueuedAt: now,
	}, nil
}

// nextAttempt decides what happens to a failed message: retried at the
// returned time, or dead-lettered once the retry limit is spent.
func nextAttempt(msg Message, cfg Config, now time.Time) (Message, time.Time, bool) {
	if msg.Attempts >= cfg.RetryLimit {
		return msg, time.Time{}, true
	}
	msg.Attempts++
	return msg, now.Add(cfg.RetryDelay), false
}
