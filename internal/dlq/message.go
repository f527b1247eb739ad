// Package dlq implements the dead letter queue: sending failed messages, reprocessing them and
// the router middleware that diverts failing handlers.
package dlq

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// Message is the envelope stored on the dead letter topic. OriginalMessageID is the
// UUID of the failed message; replays reuse it so downstream writes stay idempotent.
type Message struct {
	OriginalTopic     string          `json:"original_topic"`
	OriginalMessage   json.RawMessage `json:"original_message"`
	OriginalMessageID string          `json:"original_message_id,omitempty"`
	ErrorMessage      string          `json:"error_message"`
	ErrorType         string          `json:"error_type"`
	RetryCount        int             `json:"retry_count"`
	FirstFailureTime  time.Time       `json:"first_failure_time"`
	LastFailureTime   time.Time       `json:"last_failure_time"`
	CorrelationID     string          `json:"correlation_id,omitempty"`
}

// NewMessage builds a first-failure envelope for payload.
func NewMessage(topic string, payload []byte, cause error, correlationID string, at time.Time) *Message {
	return &Message{
		OriginalTopic:    topic,
		OriginalMessage:  rawJSON(payload),
		ErrorMessage:     errorString(cause),
		ErrorType:        ErrorType(cause),
		FirstFailureTime: at.UTC(),
		LastFailureTime:  at.UTC(),
		CorrelationID:    correlationID,
	}
}

// Retried returns a copy for another failed attempt, keeping the first failure time.
func (m *Message) Retried(cause error, at time.Time) *Message {
	next := *m
	next.RetryCount++
	next.ErrorMessage = errorString(cause)
	next.ErrorType = ErrorType(cause)
	next.LastFailureTime = at.UTC()
	return &next
}

// ErrorType names the concrete type of the innermost error, e.g. "*net.OpError".
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	for {
		next := errors.Unwrap(err)
		if next == nil {
			break
		}
		err = next
	}
	return reflect.TypeOf(err).String()
}

func errorString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// rawJSON keeps valid JSON as-is and wraps anything else as a JSON string.
func rawJSON(payload []byte) json.RawMessage {
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}

func decode(payload []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, fmt.Errorf("decode dead letter: %w", err)
	}
	if m.OriginalTopic == "" {
		return nil, fmt.Errorf("decode dead letter: missing original_topic")
	}
	return &m, nil
}
