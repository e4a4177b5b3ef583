package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageEnvelope wraps every message written to the broker.
type MessageEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Source    string          `json:"source"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  Metadata        `json:"metadata"`
}

type Metadata struct {
	TraceID   string   `json:"trace_id,omitempty"`
	RequestID string   `json:"request_id,omitempty"`
	DLQ       *DLQInfo `json:"dlq,omitempty"`
}

// DLQInfo is attached when a message is moved to the dead letter topic.
type DLQInfo struct {
	Reason      string    `json:"reason"`
	SourceTopic string    `json:"source_topic"`
	FailedAt    time.Time `json:"failed_at"`
}

// DecodePayload unmarshals the payload into v.
func (msg *MessageEnvelope) DecodePayload(v interface{}) error {
	if len(msg.Payload) == 0 {
		return &ValidationError{Field: "payload", Message: "message payload is empty"}
	}
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}
