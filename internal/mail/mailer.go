package mail

import (
	"errors"
	"fmt"

	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/config"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
)

// ErrNoPublisher is returned by New when the mqtt transport is selected
// without a connected MQTT client.
var ErrNoPublisher = errors.New("mail: mqtt transport requires an mqtt publisher")

// New returns the Mailer selected by cfg.Transport. publisher may be nil
// unless the transport is mqtt.
func New(cfg config.MailConfig, publisher Publisher, logger *logging.Logger) (auth.Mailer, error) {
	switch cfg.Transport {
	case config.MailTransportMQTT:
		if publisher == nil {
			return nil, ErrNoPublisher
		}
		return NewRelayMailer(publisher, cfg.Subject), nil
	case config.MailTransportSMTP:
		return NewSMTPMailer(cfg)
	case config.MailTransportLog, "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("mail: unknown transport %q", cfg.Transport)
	}
}
