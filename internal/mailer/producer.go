package mailer

import (
	"context"
	"fmt"

	"pulse/internal/broker"
	"pulse/internal/logger"
	"pulse/pkg/logging"
	"pulse/pkg/models"
)

// Producer is the Mailer used by the API: jobs are published to the mail
// topic and delivered by the mailer service.
type Producer struct {
	producer broker.Producer
	topic    string
	source   string
	logger   logger.Logger
}

func NewProducer(producer broker.Producer, topic, source string, log logger.Logger) *Producer {
	return &Producer{
		producer: producer,
		topic:    topic,
		source:   source,
		logger:   log,
	}
}

func (p *Producer) Send(ctx context.Context, to string, template Template, params any) error {
	job, err := newJob(to, template, params)
	if err != nil {
		return err
	}

	envelope, err := models.NewMessageEnvelopeBuilder().
		WithType(models.MessageTypeMailJob).
		WithSource(p.source).
		WithPayload(job).
		WithTraceID(logging.GetTraceID(ctx)).
		WithRequestID(logging.GetRequestID(ctx)).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build mail job: %w", err)
	}

	if err := p.producer.Publish(ctx, p.topic, *envelope); err != nil {
		return fmt.Errorf("failed to publish mail job: %w", err)
	}

	p.logger.DebugwCtx(ctx, "Mail job queued", "template", template, "message_id", envelope.ID)
	return nil
}
