package broker

import (
	"context"

	"pulse/pkg/models"
)

type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

type Consumer interface {
	// Consume blocks until ctx is done, passing every message of topic to
	// handler.
	Consume(ctx context.Context, topic string, handler HandlerFunc) error
	Close() error
}

type HandlerFunc func(ctx context.Context, msg models.MessageEnvelope) error
