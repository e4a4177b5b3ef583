package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type MessageEnvelopeBuilder struct {
	envelope *MessageEnvelope
	err      error
}

func NewMessageEnvelopeBuilder() *MessageEnvelopeBuilder {
	return &MessageEnvelopeBuilder{
		envelope: &MessageEnvelope{},
	}
}

func (b *MessageEnvelopeBuilder) WithType(messageType string) *MessageEnvelopeBuilder {
	b.envelope.Type = messageType
	return b
}

func (b *MessageEnvelopeBuilder) WithSource(source string) *MessageEnvelopeBuilder {
	b.envelope.Source = source
	return b
}

// WithPayload encodes v as the envelope payload. Encoding errors are
// reported by Build.
func (b *MessageEnvelopeBuilder) WithPayload(v interface{}) *MessageEnvelopeBuilder {
	payload, err := json.Marshal(v)
	if err != nil {
		b.err = fmt.Errorf("failed to encode payload: %w", err)
		return b
	}
	b.envelope.Payload = payload
	return b
}

func (b *MessageEnvelopeBuilder) WithTraceID(traceID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.TraceID = traceID
	return b
}

func (b *MessageEnvelopeBuilder) WithRequestID(requestID string) *MessageEnvelopeBuilder {
	b.envelope.Metadata.RequestID = requestID
	return b
}

// Build assigns a fresh id and the current time, then validates the envelope.
func (b *MessageEnvelopeBuilder) Build() (*MessageEnvelope, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.envelope.ID = uuid.New().String()
	b.envelope.Timestamp = time.Now()
	if err := ValidateMessageEnvelope(b.envelope); err != nil {
		return nil, err
	}
	return b.envelope, nil
}
