package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageEnvelopeBuilder(t *testing.T) {
	job := MailJob{To: "a@example.com", Template: "sign-up", Params: json.RawMessage(`{"url":"https://x/verify/1"}`)}

	envelope, err := NewMessageEnvelopeBuilder().
		WithType(MessageTypeMailJob).
		WithSource("api-service").
		WithPayload(job).
		WithTraceID("trace-1").
		Build()
	require.NoError(t, err)

	assert.NotEmpty(t, envelope.ID)
	assert.False(t, envelope.Timestamp.IsZero())
	assert.Equal(t, "trace-1", envelope.Metadata.TraceID)

	var decoded MailJob
	require.NoError(t, envelope.DecodePayload(&decoded))
	assert.Equal(t, job.To, decoded.To)
	assert.JSONEq(t, `{"url":"https://x/verify/1"}`, string(decoded.Params))
}

func TestMessageEnvelopeBuilder_Invalid(t *testing.T) {
	_, err := NewMessageEnvelopeBuilder().WithSource("api-service").WithPayload(1).Build()

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "type", validationErr.Field)
	assert.True(t, validationErr.IsFatal())

	_, err = NewMessageEnvelopeBuilder().WithType("x").WithSource("s").WithPayload(func() {}).Build()
	assert.Error(t, err)
}
