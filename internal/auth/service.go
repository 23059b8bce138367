package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
)

// DefaultMailTimeout bounds a single verification mail dispatch.
const DefaultMailTimeout = 30 * time.Second

// Session is the token pair handed out after login or verification.
type Session struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// Deps holds the collaborators of a Service. All fields except Events and
// Logger are required.
type Deps struct {
	Directory *Directory
	Hasher    *Hasher
	Tokens    *TokenIssuer
	OTPs      *OTPGenerator
	Mailer    Mailer
	Events    EventRecorder
	Logger    *logging.Logger
}

// Service implements registration, verification, login and refresh for
// every principal kind.
//
// Thread Safety:
//   - All methods are safe for concurrent use. No locks are held around
//     principal records; each transition is a single-row store operation.
type Service struct {
	dir         *Directory
	hasher      *Hasher
	tokens      *TokenIssuer
	otps        *OTPGenerator
	mailer      Mailer
	events      EventRecorder
	logger      *logging.Logger
	now         func() time.Time
	mailTimeout time.Duration

	wg sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for verification and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMailTimeout bounds each verification mail dispatch.
func WithMailTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.mailTimeout = d
		}
	}
}

// NewService creates a Service.
func NewService(deps Deps, opts ...Option) (*Service, error) {
	switch {
	case deps.Directory == nil:
		return nil, errors.New("auth service: directory is required")
	case deps.Hasher == nil:
		return nil, errors.New("auth service: hasher is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token issuer is required")
	case deps.OTPs == nil:
		return nil, errors.New("auth service: otp generator is required")
	case deps.Mailer == nil:
		return nil, errors.New("auth service: mailer is required")
	}

	s := &Service{
		dir:         deps.Directory,
		hasher:      deps.Hasher,
		tokens:      deps.Tokens,
		otps:        deps.OTPs,
		mailer:      deps.Mailer,
		events:      deps.Events,
		logger:      deps.Logger,
		now:         time.Now,
		mailTimeout: DefaultMailTimeout,
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	s.logger = s.logger.With("component", "auth")

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tokens exposes the issuer so the HTTP layer can verify presented tokens.
func (s *Service) Tokens() *TokenIssuer {
	return s.tokens
}

// Resolve loads a principal from its role's store.
func (s *Service) Resolve(ctx context.Context, role Role, email string) (*Principal, error) {
	store, err := s.dir.Store(role)
	if err != nil {
		return nil, err
	}
	return store.GetByEmail(ctx, email)
}

// Login authenticates email/password against the role's store.
//
// Unknown emails and wrong passwords both yield ErrInvalidCredentials. For
// kinds that require verification, a record that never completed it is
// deleted and ErrRegistrationIncomplete is returned.
func (s *Service) Login(ctx context.Context, role Role, email, password string) (*Session, *Principal, error) {
	store, err := s.dir.Store(role)
	if err != nil {
		return nil, nil, err
	}
	email = NormalizeEmail(email)

	p, err := store.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.hasher.VerifyDummy(password)
		s.record(ctx, ActionLoginFailed, role, email, OutcomeFailure, "unknown_account")
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, fmt.Errorf("loading principal: %w", err)
	}

	if role.RequiresVerification() && !p.IsVerified {
		purged, err := s.purgeUnverified(ctx, store, role, email)
		if err != nil {
			return nil, nil, err
		}
		if purged {
			return nil, nil, ErrRegistrationIncomplete
		}
		// Verified between the read and the delete; carry on with the login.
	}

	ok, err := s.hasher.Verify(password, p.PasswordHash)
	if err != nil {
		return nil, nil, fmt.Errorf("verifying password: %w", err)
	}
	if !ok {
		s.record(ctx, ActionLoginFailed, role, email, OutcomeFailure, "bad_password")
		return nil, nil, ErrInvalidCredentials
	}

	if s.hasher.NeedsUpgrade(p.PasswordHash) {
		s.upgradeHash(ctx, store, email, password)
	}

	session, err := s.issueSession(email, role)
	if err != nil {
		return nil, nil, err
	}

	s.record(ctx, ActionLogin, role, email, OutcomeSuccess, "")
	return session, p, nil
}

// purgeUnverified deletes a never-verified registration. It reports false
// when the row turned out to be verified after all.
func (s *Service) purgeUnverified(ctx context.Context, store PrincipalStore, role Role, email string) (bool, error) {
	err := store.DeleteUnverified(ctx, email)
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		s.logger.Info("purged incomplete registration", "role", string(role))
		s.record(ctx, ActionRegistrationPurged, role, email, OutcomeSuccess, "login_before_verification")
		return true, nil
	case errors.Is(err, ErrAlreadyVerified):
		return false, nil
	default:
		return false, fmt.Errorf("purging unverified principal: %w", err)
	}
}

// upgradeHash replaces a legacy or weaker hash. Failures are logged only.
func (s *Service) upgradeHash(ctx context.Context, store PrincipalStore, email, password string) {
	hash, err := s.hasher.Hash(password)
	if err == nil {
		err = store.UpdatePasswordHash(ctx, email, hash)
	}
	if err != nil {
		s.logger.Warn("password hash upgrade failed", "error", err)
	}
}

// Refresh mints a new access token from verified refresh-token claims. The
// refresh token itself is not rotated.
func (s *Service) Refresh(ctx context.Context, claims *Claims) (IssuedToken, error) {
	if claims == nil || claims.Kind != TokenRefresh {
		return IssuedToken{}, ErrTokenInvalid
	}
	role, err := ParseRole(string(claims.Role))
	if err != nil {
		return IssuedToken{}, ErrTokenInvalid
	}

	if _, err := s.Resolve(ctx, role, claims.Email); err != nil {
		if errors.Is(err, ErrNotFound) {
			return IssuedToken{}, ErrTokenInvalid
		}
		return IssuedToken{}, err
	}

	access, err := s.tokens.Issue(claims.Email, role, TokenAccess)
	if err != nil {
		return IssuedToken{}, err
	}

	s.record(ctx, ActionRefresh, role, claims.Email, OutcomeSuccess, "")
	return access, nil
}

// Logout records the event. Sessions are stateless, so there is nothing to
// revoke; the HTTP layer clears the cookies. email may be empty.
func (s *Service) Logout(ctx context.Context, role Role, email string) {
	s.record(ctx, ActionLogout, role, email, OutcomeSuccess, "")
}

// Wait blocks until every in-flight mail dispatch has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) issueSession(email string, role Role) (*Session, error) {
	access, err := s.tokens.Issue(email, role, TokenAccess)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.Issue(email, role, TokenRefresh)
	if err != nil {
		return nil, err
	}
	return &Session{Access: access, Refresh: refresh}, nil
}

// dispatch sends a verification code on its own goroutine. The request
// context's cancellation is detached; the send is bounded by mailTimeout.
func (s *Service) dispatch(ctx context.Context, role Role, email, code string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.mailTimeout)
		defer cancel()

		outcome, reason := OutcomeSuccess, ""
		if err := s.mailer.SendVerificationCode(mailCtx, email, code); err != nil {
			s.logger.Error("verification mail failed", "role", string(role), "error", err)
			outcome, reason = OutcomeFailure, "send_failed"
		}
		s.record(mailCtx, ActionMailDispatch, role, email, outcome, reason)
	}()
}

func (s *Service) record(ctx context.Context, action Action, role Role, email string, outcome Outcome, reason string) {
	if s.events == nil {
		return
	}
	s.events.RecordEvent(ctx, Event{
		Action:  action,
		Role:    role,
		Email:   email,
		Outcome: outcome,
		Reason:  reason,
		Source:  SourceFrom(ctx),
		At:      s.now().UTC(),
	})
}
