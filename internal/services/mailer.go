package services

import (
	"context"
	"encoding/json"
	"log"

	"github.com/pkg/errors"

	"github.com/example/velora/internal/queue"
)

// Mail templates the worker knows how to render.
const (
	MailTemplateVerifyEmail   = "verify-email"
	MailTemplatePasswordReset = "password-reset"
)

// MailMessage is the payload published to the mail queue.
type MailMessage struct {
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// MailEnqueuer publishes mail jobs for the worker process.
type MailEnqueuer interface {
	EnqueueMail(ctx context.Context, msg MailMessage) error
}

// QueueMailer publishes mail messages to RabbitMQ.
type QueueMailer struct {
	queue *queue.Queue
}

// NewQueueMailer constructs a QueueMailer.
func NewQueueMailer(q *queue.Queue) *QueueMailer {
	return &QueueMailer{queue: q}
}

// EnqueueMail serializes and publishes a mail job.
func (m *QueueMailer) EnqueueMail(ctx context.Context, msg MailMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal mail message")
	}
	return m.queue.Publish(ctx, body)
}

// LogMailer logs mail jobs instead of queueing them. Used in development and
// tests, where there is no broker.
type LogMailer struct{}

// EnqueueMail logs the message without the OTP payload.
func (LogMailer) EnqueueMail(_ context.Context, msg MailMessage) error {
	log.Printf("[Mailer] (dev) %s -> %s (%s)", msg.Template, msg.To, msg.Subject)
	return nil
}
