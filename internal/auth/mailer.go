package auth

import "context"

// Mailer delivers verification codes out of band.
type Mailer interface {
	SendVerificationCode(ctx context.Context, to, code string) error
}

// MailerFunc adapts a function to the Mailer interface.
type MailerFunc func(ctx context.Context, to, code string) error

// SendVerificationCode calls f.
func (f MailerFunc) SendVerificationCode(ctx context.Context, to, code string) error {
	return f(ctx, to, code)
}
