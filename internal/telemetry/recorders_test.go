package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/metrics"
)

var at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMetricsRecorder(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	rec := NewMetricsRecorder(m)
	ctx := context.Background()

	rec.RecordEvent(ctx, auth.Event{Action: auth.ActionLogin, Role: auth.RoleCustomer, Outcome: auth.OutcomeSuccess})
	rec.RecordEvent(ctx, auth.Event{Action: auth.ActionLogin, Role: auth.RoleCustomer, Outcome: auth.OutcomeSuccess})
	rec.RecordEvent(ctx, auth.Event{Action: auth.ActionMailDispatch, Role: auth.RoleCustomer, Outcome: auth.OutcomeFailure})

	if got := testutil.ToFloat64(m.AuthEvents.WithLabelValues("login", "customer", "success")); got != 2 {
		t.Errorf("auth_events_total{login} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MailDispatch.WithLabelValues("failed")); got != 1 {
		t.Errorf("mail_dispatch_total{failed} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AuthEvents.WithLabelValues("mail_dispatch", "customer", "failure")); got != 0 {
		t.Errorf("mail dispatch must not count as an auth event, got %v", got)
	}
}

type fakePointWriter struct {
	action, role, outcome string
	at                    time.Time
}

func (w *fakePointWriter) RecordAuthEvent(action, role, outcome string, at time.Time) {
	w.action, w.role, w.outcome, w.at = action, role, outcome, at
}

func TestInfluxRecorder(t *testing.T) {
	w := &fakePointWriter{}
	NewInfluxRecorder(w).RecordEvent(context.Background(), auth.Event{
		Action: auth.ActionOTPVerify, Role: auth.RoleRetailer, Email: "shop@example.com",
		Outcome: auth.OutcomeSuccess, At: at,
	})
	if w.action != "otp_verify" || w.role != "retailer" || w.outcome != "success" || !w.at.Equal(at) {
		t.Errorf("point = %+v", w)
	}
}

type fakePublisher struct {
	topics chan string
	msgs   chan EventMessage
	err    error
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{topics: make(chan string, 8), msgs: make(chan EventMessage, 8)}
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.topics <- topic
	if m, ok := v.(EventMessage); ok {
		p.msgs <- m
	}
	return p.err
}

func TestEventPublisher_PublishesSuccessfulEvents(t *testing.T) {
	pub := newFakePublisher()
	ep := NewEventPublisher(pub, nil)

	ep.RecordEvent(context.Background(), auth.Event{
		Action: auth.ActionOTPVerify, Role: auth.RoleCustomer, Email: "grace@example.com",
		Outcome: auth.OutcomeSuccess, At: at,
	})

	select {
	case topic := <-pub.topics:
		if topic != "storefront/auth/events/otp_verify" {
			t.Errorf("topic = %q", topic)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event was not published")
	}
	msg := <-pub.msgs
	if msg.Email != "grace@example.com" || msg.Role != "customer" || !msg.At.Equal(at) {
		t.Errorf("message = %+v", msg)
	}
}

func TestEventPublisher_SkipsInternalEvents(t *testing.T) {
	pub := newFakePublisher()
	pub.err = errors.New("broker down")
	ep := NewEventPublisher(pub, nil)

	for _, e := range []auth.Event{
		{Action: auth.ActionLoginFailed, Role: auth.RoleCustomer, Outcome: auth.OutcomeFailure},
		{Action: auth.ActionMailDispatch, Role: auth.RoleCustomer, Outcome: auth.OutcomeSuccess},
		{Action: auth.ActionLogout, Role: auth.RoleAdmin, Outcome: auth.OutcomeSuccess},
		{Action: auth.ActionOTPVerify, Role: auth.RoleCustomer, Outcome: auth.OutcomeFailure},
	} {
		ep.RecordEvent(context.Background(), e)
	}

	select {
	case topic := <-pub.topics:
		t.Errorf("unexpected publish to %q", topic)
	case <-time.After(50 * time.Millisecond):
	}
}
