//go:build integration

package mailer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/broker"
	"pulse/internal/config"
	"pulse/internal/logger"
	"pulse/internal/testinfra"
)

type channelSender struct {
	sent chan Message
}

func (s *channelSender) Send(_ context.Context, msg Message) error {
	s.sent <- msg
	return nil
}

func TestMailPipeline(t *testing.T) {
	cfg := config.KafkaConfig{
		Brokers:   testinfra.Kafka(t),
		GroupID:   "mailer-test",
		MailTopic: "mail",
		Retry:     config.RetryConfig{MaxAttempts: 1, Multiplier: 2},
	}
	log := logger.NopLogger()

	producer, err := broker.NewProducer(cfg, "api-service", log)
	require.NoError(t, err)
	t.Cleanup(func() { producer.Close() })

	mail := NewProducer(producer, cfg.MailTopic, "api-service", log)
	ctx := context.Background()

	require.Eventually(t, func() bool {
		return mail.Send(ctx, "a@example.com", TemplateSignUp, map[string]string{"url": "https://app.example.com/verify/t1"}) == nil
	}, 30*time.Second, time.Second)

	consumer, err := broker.NewConsumer(cfg, "mailer-service", log)
	require.NoError(t, err)
	t.Cleanup(func() { consumer.Close() })

	sender := &channelSender{sent: make(chan Message, 1)}
	dispatcher := newTestDispatcher(t, sender)

	consumeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go consumer.Consume(consumeCtx, cfg.MailTopic, dispatcher.Handle)

	select {
	case msg := <-sender.sent:
		assert.Equal(t, "a@example.com", msg.To)
		assert.Contains(t, msg.Body, "https://app.example.com/verify/t1")
	case <-time.After(60 * time.Second):
		t.Fatal("mail job was not delivered")
	}
}
