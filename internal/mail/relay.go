package mail

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/mqtt"
)

// Publisher is the part of mqtt.Client the relay needs.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// VerificationJob is the message consumed by the mail worker.
type VerificationJob struct {
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	Code        string    `json:"code"`
	RequestedAt time.Time `json:"requested_at"`
}

// RelayMailer hands verification mails to an external worker over MQTT.
type RelayMailer struct {
	publisher Publisher
	subject   string
	topic     string
	now       func() time.Time
}

// NewRelayMailer creates a relay publishing to the verification topic.
func NewRelayMailer(publisher Publisher, subject string) *RelayMailer {
	return &RelayMailer{
		publisher: publisher,
		subject:   subject,
		topic:     mqtt.Topics{}.MailVerification(),
		now:       time.Now,
	}
}

// SendVerificationCode implements auth.Mailer.
func (m *RelayMailer) SendVerificationCode(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job := VerificationJob{
		To:          to,
		Subject:     m.subject,
		Code:        code,
		RequestedAt: m.now().UTC(),
	}
	if err := m.publisher.PublishJSON(m.topic, job); err != nil {
		return fmt.Errorf("relaying verification mail: %w", err)
	}
	return nil
}
