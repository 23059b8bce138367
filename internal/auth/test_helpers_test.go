package auth

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/database"
	"github.com/nerrad567/storefront-auth/migrations"
)

// testDB creates a temporary SQLite database with the real migrations applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "auth-test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("applying migrations: %v", err)
	}

	return db.DB
}

// fakeClock is a settable clock shared by the service, issuer and generator.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// sentMail is one captured verification mail.
type sentMail struct {
	To   string
	Code string
}

// fakeMailer records every code it is asked to send.
type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{To: to, Code: code})
	return m.err
}

func (m *fakeMailer) last(t *testing.T) sentMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		t.Fatal("no verification mail was sent")
	}
	return m.sent[len(m.sent)-1]
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// eventLog collects recorded auth events.
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) RecordEvent(_ context.Context, e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) actions() []Action {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Action, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Action)
	}
	return out
}

func (l *eventLog) has(action Action, outcome Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.events {
		if e.Action == action && e.Outcome == outcome {
			return true
		}
	}
	return false
}

// testEnv wires a Service over a temp database with fakes for the edges.
type testEnv struct {
	db     *sql.DB
	dir    *Directory
	svc    *Service
	clock  *fakeClock
	mailer *fakeMailer
	events *eventLog
	hasher *Hasher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := testDB(t)
	clock := newFakeClock()

	hasher, err := NewHasher(testHasherConfig)
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	tokens, err := NewTokenIssuer(testSecret, TokenTTLs{}, WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	env := &testEnv{
		db:     db,
		dir:    NewDirectory(db),
		clock:  clock,
		mailer: &fakeMailer{},
		events: &eventLog{},
		hasher: hasher,
	}

	env.svc, err = NewService(Deps{
		Directory: env.dir,
		Hasher:    hasher,
		Tokens:    tokens,
		OTPs:      NewOTPGenerator(0, WithOTPClock(clock.Now)),
		Mailer:    env.mailer,
		Events:    env.events,
	}, WithClock(clock.Now), WithMailTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(env.svc.Wait)

	return env
}

func (e *testEnv) store(t *testing.T, role Role) PrincipalStore {
	t.Helper()
	s, err := e.dir.Store(role)
	if err != nil {
		t.Fatalf("Store(%s) error = %v", role, err)
	}
	return s
}

func (e *testEnv) principal(t *testing.T, role Role, email string) *Principal {
	t.Helper()
	p, err := e.store(t, role).GetByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("GetByEmail(%s) error = %v", email, err)
	}
	return p
}

func customerRegistration(email string) Registration {
	return Registration{
		Email:    email,
		Password: "Secret1pass",
		Profile:  Profile{"fullName": "Grace Hopper"},
	}
}
