package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/storefront-auth/internal/audit"
	"github.com/nerrad567/storefront-auth/internal/auth"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/config"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/database"
	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
	"github.com/nerrad567/storefront-auth/migrations"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-secret-key-at-least-32-characters-long"
)

// testDB creates a temporary SQLite database with the real migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(context.Background(), database.Config{
		Path:        filepath.Join(t.TempDir(), "api-test.db"),
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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

// codeMailer captures the last code sent to each address.
type codeMailer struct {
	mu    sync.Mutex
	codes map[string]string
	sent  int
}

func (m *codeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.codes == nil {
		m.codes = make(map[string]string)
	}
	m.codes[to] = code
	m.sent++
	return nil
}

func (m *codeMailer) code(t *testing.T, to string) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.codes[to]
	if !ok {
		t.Fatalf("no verification code sent to %s", to)
	}
	return c
}

func (m *codeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

type serverOption func(*Deps)

func withProduction() serverOption {
	return func(d *Deps) { d.App.Environment = config.EnvProduction }
}

func withHealth(name string, hc HealthChecker) serverOption {
	return func(d *Deps) {
		if d.Health == nil {
			d.Health = make(map[string]HealthChecker)
		}
		d.Health[name] = hc
	}
}

// testEnv is a fully wired server over a temp database.
type testEnv struct {
	handler http.Handler
	svc     *auth.Service
	tokens  *auth.TokenIssuer
	clock   *fakeClock
	mailer  *codeMailer
	audit   *audit.SQLiteRepository
}

func newTestEnv(t *testing.T, opts ...serverOption) *testEnv {
	t.Helper()

	db := testDB(t)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	repo := audit.NewSQLiteRepository(db)

	hasher, err := auth.NewHasher(auth.HasherConfig{Time: 1, MemoryKiB: 1024, Threads: 1})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	tokens, err := auth.NewTokenIssuer(testSecret, auth.TokenTTLs{}, auth.WithTokenClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	env := &testEnv{tokens: tokens, clock: clock, mailer: &codeMailer{}, audit: repo}

	// Synchronous audit writes keep the listing tests deterministic.
	events := auth.EventRecorderFunc(func(ctx context.Context, e auth.Event) {
		entry := &audit.Entry{
			Action:    string(e.Action),
			Role:      string(e.Role),
			Subject:   e.Email,
			Outcome:   string(e.Outcome),
			Source:    e.Source,
			CreatedAt: e.At,
		}
		if err := repo.Create(context.WithoutCancel(ctx), entry); err != nil {
			t.Errorf("audit Create() error = %v", err)
		}
	})

	env.svc, err = auth.NewService(auth.Deps{
		Directory: auth.NewDirectory(db),
		Hasher:    hasher,
		Tokens:    tokens,
		OTPs:      auth.NewOTPGenerator(0, auth.WithOTPClock(clock.Now)),
		Mailer:    env.mailer,
		Events:    events,
		Logger:    logging.Discard(),
	}, auth.WithClock(clock.Now), auth.WithMailTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	t.Cleanup(env.svc.Wait)

	deps := Deps{
		Config:    config.APIConfig{Host: "127.0.0.1"},
		App:       config.AppConfig{Environment: config.EnvDevelopment},
		APIKey:    testAPIKey,
		Logger:    logging.Discard(),
		Auth:      env.svc,
		AuditRepo: repo,
		Version:   "test",
		Now:       clock.Now,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	env.handler = srv.Handler()
	return env
}

// request is one call against the router.
type request struct {
	method  string
	path    string
	body    string
	cookies []*http.Cookie
	bearer  string
	noKey   bool
}

func (e *testEnv) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	r := httptest.NewRequest(req.method, req.path, strings.NewReader(req.body))
	r.Header.Set("Content-Type", "application/json")
	if !req.noKey {
		r.Header.Set(apiKeyHeader, testAPIKey)
	}
	if req.bearer != "" {
		r.Header.Set("Authorization", "Bearer "+req.bearer)
	}
	for _, c := range req.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, r)
	return w
}

// decodeResponse parses the envelope.
func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) (Response, map[string]any) {
	t.Helper()

	var raw struct {
		Status  bool            `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	var data map[string]any
	if len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, &data); err != nil {
			t.Fatalf("decoding data %s: %v", raw.Data, err)
		}
	}
	return Response{Status: raw.Status, Message: raw.Message}, data
}

func expectResponse(t *testing.T, w *httptest.ResponseRecorder, status int, message string) map[string]any {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, status, w.Body.String())
	}
	resp, data := decodeResponse(t, w)
	if resp.Message != message {
		t.Fatalf("message = %q, want %q", resp.Message, message)
	}
	if resp.Status != (status < 300) {
		t.Errorf("envelope status = %v for HTTP %d", resp.Status, status)
	}
	return data
}

// responseCookie returns the named Set-Cookie from a response, or nil.
func responseCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func mustCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	c := responseCookie(w, name)
	if c == nil || c.Value == "" {
		t.Fatalf("response did not set cookie %q", name)
	}
	return c
}

const (
	customerEmail    = "grace@example.com"
	customerPassword = "Secret1pass"
)

func customerBody(email string) string {
	return `{"fullName":"Grace Hopper","email":"` + email + `","password":"` + customerPassword + `"}`
}

// registerCustomer registers a customer and returns its pre-auth cookie.
func (e *testEnv) registerCustomer(t *testing.T, email string) *http.Cookie {
	t.Helper()
	w := e.do(t, request{method: http.MethodPost, path: "/api/v1/user/customer/register", body: customerBody(email)})
	expectResponse(t, w, http.StatusCreated, msgOTPSent)
	e.svc.Wait()
	return mustCookie(t, w, cookiePreAuth)
}

// verifiedCustomer registers and verifies a customer and returns the
// access and refresh cookies.
func (e *testEnv) verifiedCustomer(t *testing.T, email string) (access, refresh *http.Cookie) {
	t.Helper()
	temp := e.registerCustomer(t, email)
	w := e.do(t, request{
		method:  http.MethodPost,
		path:    "/api/v1/user/customer/otp-verify",
		body:    `{"otp":` + e.mailer.code(t, email) + `}`,
		cookies: []*http.Cookie{temp},
	})
	expectResponse(t, w, http.StatusOK, msgOTPVerified)
	return mustCookie(t, w, cookieAccess), mustCookie(t, w, cookieRefresh)
}

// adminSession registers an admin of role and logs in.
func (e *testEnv) adminSession(t *testing.T, role auth.Role, registerPath, loginPath, email string) *http.Cookie {
	t.Helper()
	body := `{"firstName":"Ada","lastName":"Lovelace","email":"` + email + `","password":"pw"}`
	w := e.do(t, request{method: http.MethodPost, path: registerPath, body: body})
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", role, w.Code, w.Body.String())
	}
	w = e.do(t, request{method: http.MethodPost, path: loginPath, body: `{"email":"` + email + `","password":"pw"}`})
	if w.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", role, w.Code, w.Body.String())
	}
	return mustCookie(t, w, cookieAccess)
}
