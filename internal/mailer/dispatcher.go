package mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pulse/internal/logger"
	"pulse/pkg/metrics"
	"pulse/pkg/models"
	"pulse/pkg/retry"
)

// Mailer queues a templated mail for a recipient.
type Mailer interface {
	Send(ctx context.Context, to string, template Template, params any) error
}

// Dispatcher renders mail jobs and hands them to a Sender. It consumes
// jobs from the broker and also serves as a synchronous Mailer when no
// broker is configured.
type Dispatcher struct {
	renderer *Renderer
	sender   Sender
	logger   logger.Logger
}

func NewDispatcher(renderer *Renderer, sender Sender, log logger.Logger) *Dispatcher {
	return &Dispatcher{renderer: renderer, sender: sender, logger: log}
}

// Handle is a broker.HandlerFunc. Malformed jobs are fatal, delivery
// failures are retried by the consumer.
func (d *Dispatcher) Handle(ctx context.Context, msg models.MessageEnvelope) error {
	if msg.Type != models.MessageTypeMailJob {
		return retry.NewFatalError(fmt.Errorf("unexpected message type %q", msg.Type))
	}

	var job models.MailJob
	if err := msg.DecodePayload(&job); err != nil {
		return retry.NewFatalError(err)
	}

	return d.Deliver(ctx, job)
}

func (d *Dispatcher) Deliver(ctx context.Context, job models.MailJob) error {
	if job.To == "" {
		return retry.NewFatalError(fmt.Errorf("mail job has no recipient"))
	}

	params := map[string]interface{}{}
	if len(job.Params) > 0 {
		if err := json.Unmarshal(job.Params, &params); err != nil {
			return retry.NewFatalError(fmt.Errorf("failed to decode mail params: %w", err))
		}
	}

	message, err := d.renderer.Render(Template(job.Template), job.To, params)
	if err != nil {
		metrics.ObserveMailSend(job.Template, "render_error", 0)
		return retry.NewFatalError(err)
	}

	start := time.Now()
	err = d.sender.Send(ctx, message)
	if err != nil {
		metrics.ObserveMailSend(job.Template, "error", time.Since(start))
		return fmt.Errorf("failed to send %s mail: %w", job.Template, err)
	}
	metrics.ObserveMailSend(job.Template, "sent", time.Since(start))

	d.logger.InfowCtx(ctx, "Mail sent", "template", job.Template)
	return nil
}

func (d *Dispatcher) Send(ctx context.Context, to string, template Template, params any) error {
	job, err := newJob(to, template, params)
	if err != nil {
		return err
	}
	return d.Deliver(ctx, job)
}

func newJob(to string, template Template, params any) (models.MailJob, error) {
	job := models.MailJob{To: to, Template: string(template)}
	if params == nil {
		return job, nil
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return job, fmt.Errorf("failed to encode mail params: %w", err)
	}
	job.Params = raw
	return job, nil
}
