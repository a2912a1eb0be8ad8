package retry

import (
	"context"
	"encoding/json"
	"time"
)

// DLQSuffix is appended to a topic name to form its dead letter topic.
const DLQSuffix = ".dlq"

// DLQTopic returns the dead letter topic for the given topic.
func DLQTopic(topic string) string {
	return topic + DLQSuffix
}

// DeadLetter is the envelope parked on a dead letter topic when a
// message exhausted its retries. The original payload is carried
// verbatim so a replay tool can resubmit it.
type DeadLetter struct {
	ID       string            `json:"id"`
	Topic    string            `json:"topic"`
	Key      string            `json:"key"`
	Payload  json.RawMessage   `json:"payload"`
	Reason   string            `json:"reason"`
	Attempts int               `json:"attempts"`
	FailedAt time.Time         `json:"failed_at"`
	Source   string            `json:"source"`
	Headers  map[string]string `json:"headers,omitempty"`
}

// NewDeadLetter builds an envelope from a failed Result.
func NewDeadLetter(topic, key string, payload []byte, result *Result, source string) *DeadLetter {
	reason := ""
	if result.LastError != nil {
		reason = result.LastError.Error()
	}
	return &DeadLetter{
		Topic:    topic,
		Key:      key,
		Payload:  payload,
		Reason:   reason,
		Attempts: result.Attempts,
		FailedAt: time.Now(),
		Source:   source,
	}
}

// DeadLetterSink delivers dead letters to durable storage.
type DeadLetterSink interface {
	Publish(ctx context.Context, letter *DeadLetter) error
}

// NoOpDeadLetterSink drops dead letters. Used when no broker is
// configured and in tests.
type NoOpDeadLetterSink struct{}

func (NoOpDeadLetterSink) Publish(ctx context.Context, letter *DeadLetter) error {
	return nil
}
