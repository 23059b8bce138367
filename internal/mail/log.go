package mail

import (
	"context"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
)

// LogMailer logs verification codes instead of sending them. Never use it
// in production: anyone with log access can complete any registration.
type LogMailer struct {
	logger *logging.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *logging.Logger) *LogMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMailer{logger: logger.With("component", "mail")}
}

// SendVerificationCode implements auth.Mailer.
func (m *LogMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.logger.Warn("verification code (log transport)", "to", to, "code", code)
	return nil
}
