package auth

import (
	"context"
	"errors"
	"fmt"
)

// RegistrationResult is returned by Register. Admin kinds get the created
// principal; kinds that require verification get a pre-auth token only.
type RegistrationResult struct {
	Principal *Principal
	PreAuth   *IssuedToken
}

// Register moves an email from unregistered to active (admin kinds) or to
// pending-verification (retailer, customer).
func (s *Service) Register(ctx context.Context, role Role, reg Registration) (*RegistrationResult, error) {
	store, err := s.dir.Store(role)
	if err != nil {
		return nil, err
	}
	reg.Email = NormalizeEmail(reg.Email)

	if role.RequiresVerification() {
		return s.registerPending(ctx, store, role, reg)
	}
	return s.registerActive(ctx, store, role, reg)
}

func (s *Service) registerActive(ctx context.Context, store PrincipalStore, role Role, reg Registration) (*RegistrationResult, error) {
	if _, err := store.GetByEmail(ctx, reg.Email); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("checking existing principal: %w", err)
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := s.now().UTC()
	p := &Principal{
		Email:        reg.Email,
		PasswordHash: hash,
		Status:       true,
		IsVerified:   true,
		VerifiedAt:   &now,
		Profile:      reg.Profile,
	}
	if err := store.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("principal registered", "role", string(role), "id", p.ID)
	s.record(ctx, ActionRegister, role, reg.Email, OutcomeSuccess, "")
	return &RegistrationResult{Principal: p}, nil
}

func (s *Service) registerPending(ctx context.Context, store PrincipalStore, role Role, reg Registration) (*RegistrationResult, error) {
	existing, err := store.GetByEmail(ctx, reg.Email)
	switch {
	case err == nil && existing.IsVerified:
		return nil, ErrAlreadyExists
	case err == nil:
	case errors.Is(err, ErrNotFound):
		existing = nil
	default:
		return nil, fmt.Errorf("checking existing principal: %w", err)
	}

	challenge, err := s.otps.Generate()
	if err != nil {
		return nil, err
	}

	if existing != nil {
		// Retry before verifying: only the challenge changes.
		err = s.rechallenge(ctx, store, reg.Email, challenge)
	} else {
		err = s.createPending(ctx, store, reg, challenge)
	}
	if err != nil {
		return nil, err
	}

	preAuth, err := s.tokens.Issue(reg.Email, role, TokenPreAuth)
	if err != nil {
		return nil, err
	}

	s.dispatch(ctx, role, reg.Email, challenge.Code)
	s.record(ctx, ActionRegister, role, reg.Email, OutcomeSuccess, "")
	return &RegistrationResult{PreAuth: &preAuth}, nil
}

func (s *Service) createPending(ctx context.Context, store PrincipalStore, reg Registration, c Challenge) error {
	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	expiry := c.ExpiresAt
	p := &Principal{
		Email:        reg.Email,
		PasswordHash: hash,
		Status:       true,
		OTP:          c.Code,
		OTPExpiry:    &expiry,
		Profile:      reg.Profile,
	}

	err = store.Create(ctx, p)
	if errors.Is(err, ErrAlreadyExists) {
		// A concurrent registration won the insert.
		return s.rechallenge(ctx, store, reg.Email, c)
	}
	return err
}

func (s *Service) rechallenge(ctx context.Context, store PrincipalStore, email string, c Challenge) error {
	err := store.SetChallenge(ctx, email, c)
	if errors.Is(err, ErrAlreadyVerified) {
		return ErrAlreadyExists
	}
	return err
}

// VerifyOTP completes registration for a principal resolved from a
// pre-auth token and issues its first session.
func (s *Service) VerifyOTP(ctx context.Context, role Role, p *Principal, code string) (*Session, error) {
	if p.IsVerified {
		return nil, ErrAlreadyVerified
	}

	now := s.now()
	if !p.Challenge().Matches(code, now) {
		s.record(ctx, ActionOTPVerify, role, p.Email, OutcomeFailure, "invalid_otp")
		return nil, ErrInvalidOTP
	}

	store, err := s.dir.Store(role)
	if err != nil {
		return nil, err
	}
	if err := store.MarkVerified(ctx, p.Email, now.UTC()); err != nil {
		return nil, err
	}

	session, err := s.issueSession(p.Email, role)
	if err != nil {
		return nil, err
	}

	s.record(ctx, ActionOTPVerify, role, p.Email, OutcomeSuccess, "")
	return session, nil
}

// ResendOTP issues a fresh challenge once the previous one has expired.
func (s *Service) ResendOTP(ctx context.Context, role Role, p *Principal) error {
	if p.IsVerified {
		return ErrAlreadyVerified
	}
	if p.Challenge().Outstanding(s.now()) {
		return ErrCooldownActive
	}

	store, err := s.dir.Store(role)
	if err != nil {
		return err
	}

	challenge, err := s.otps.Generate()
	if err != nil {
		return err
	}
	if err := store.SetChallenge(ctx, p.Email, challenge); err != nil {
		return err
	}

	s.dispatch(ctx, role, p.Email, challenge.Code)
	s.record(ctx, ActionOTPResend, role, p.Email, OutcomeSuccess, "")
	return nil
}
