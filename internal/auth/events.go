package auth

import (
	"context"
	"time"
)

// Action names an auth outcome worth recording.
type Action string

const (
	ActionRegister           Action = "register"
	ActionOTPVerify          Action = "otp_verify"
	ActionOTPResend          Action = "otp_resend"
	ActionLogin              Action = "login"
	ActionLoginFailed        Action = "login_failed"
	ActionRefresh            Action = "refresh"
	ActionLogout             Action = "logout"
	ActionRegistrationPurged Action = "registration_purged"
	ActionMailDispatch       Action = "mail_dispatch"
)

// Outcome is the result of an action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event describes one auth outcome. It never carries secrets.
type Event struct {
	Action  Action
	Role    Role
	Email   string
	Outcome Outcome
	Reason  string
	Source  string
	At      time.Time
}

// EventRecorder receives auth events. Implementations must not block.
type EventRecorder interface {
	RecordEvent(ctx context.Context, e Event)
}

// EventRecorderFunc adapts a function to the EventRecorder interface.
type EventRecorderFunc func(ctx context.Context, e Event)

// RecordEvent calls f.
func (f EventRecorderFunc) RecordEvent(ctx context.Context, e Event) {
	f(ctx, e)
}

type multiRecorder []EventRecorder

func (m multiRecorder) RecordEvent(ctx context.Context, e Event) {
	for _, r := range m {
		r.RecordEvent(ctx, e)
	}
}

// Recorders fans an event out to every non-nil recorder in order.
func Recorders(recorders ...EventRecorder) EventRecorder {
	out := make(multiRecorder, 0, len(recorders))
	for _, r := range recorders {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

// DefaultSource is recorded when the caller did not identify itself.
const DefaultSource = "api"

type sourceKey struct{}

// WithSource tags ctx with the origin of the request (typically the client
// address) for recorded events.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, or DefaultSource.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return DefaultSource
}
