package telemetry

import (
	"context"
	"time"

	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/mqtt"
)

// Counter is the part of metrics.Metrics used for auth events.
type Counter interface {
	AuthEvent(action, role, outcome string)
	MailDispatched(outcome string)
}

// MetricsRecorder counts events in Prometheus.
type MetricsRecorder struct {
	counter Counter
}

// NewMetricsRecorder creates a MetricsRecorder.
func NewMetricsRecorder(c Counter) *MetricsRecorder {
	return &MetricsRecorder{counter: c}
}

// RecordEvent implements auth.EventRecorder.
func (r *MetricsRecorder) RecordEvent(_ context.Context, e auth.Event) {
	if e.Action == auth.ActionMailDispatch {
		outcome := "sent"
		if e.Outcome != auth.OutcomeSuccess {
			outcome = "failed"
		}
		r.counter.MailDispatched(outcome)
		return
	}
	r.counter.AuthEvent(string(e.Action), string(e.Role), string(e.Outcome))
}

// PointWriter is the part of influxdb.Client used for auth events.
type PointWriter interface {
	RecordAuthEvent(action, role, outcome string, at time.Time)
}

// InfluxRecorder writes one point per event. The email is never written.
type InfluxRecorder struct {
	writer PointWriter
}

// NewInfluxRecorder creates an InfluxRecorder.
func NewInfluxRecorder(w PointWriter) *InfluxRecorder {
	return &InfluxRecorder{writer: w}
}

// RecordEvent implements auth.EventRecorder.
func (r *InfluxRecorder) RecordEvent(_ context.Context, e auth.Event) {
	r.writer.RecordAuthEvent(string(e.Action), string(e.Role), string(e.Outcome), e.At)
}

// Publisher is the part of mqtt.Client used for the event feed.
type Publisher interface {
	PublishJSON(topic string, v any) error
}

// EventMessage is the payload on storefront/auth/events/<action>.
type EventMessage struct {
	Action  string    `json:"action"`
	Role    string    `json:"role"`
	Email   string    `json:"email,omitempty"`
	Outcome string    `json:"outcome"`
	Reason  string    `json:"reason,omitempty"`
	At      time.Time `json:"at"`
}

// EventPublisher publishes successful, externally meaningful events to MQTT
// for downstream consumers such as a welcome-mail worker. Failed logins and
// mail dispatch bookkeeping stay internal.
type EventPublisher struct {
	publisher Publisher
	logger    *logging.Logger
}

// NewEventPublisher creates an EventPublisher.
func NewEventPublisher(p Publisher, logger *logging.Logger) *EventPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &EventPublisher{publisher: p, logger: logger.With("component", "event-feed")}
}

// RecordEvent implements auth.EventRecorder. Publishing waits for the broker
// acknowledgement, so it runs on its own goroutine.
func (p *EventPublisher) RecordEvent(_ context.Context, e auth.Event) {
	if !published(e) {
		return
	}
	msg := EventMessage{
		Action:  string(e.Action),
		Role:    string(e.Role),
		Email:   e.Email,
		Outcome: string(e.Outcome),
		Reason:  e.Reason,
		At:      e.At,
	}
	topic := mqtt.Topics{}.AuthEvent(msg.Action)
	go func() {
		if err := p.publisher.PublishJSON(topic, msg); err != nil {
			p.logger.Warn("publishing auth event failed", "action", msg.Action, "error", err)
		}
	}()
}

func published(e auth.Event) bool {
	if e.Outcome != auth.OutcomeSuccess {
		return false
	}
	switch e.Action {
	case auth.ActionRegister, auth.ActionOTPVerify, auth.ActionLogin, auth.ActionRegistrationPurged:
		return true
	default:
		return false
	}
}
