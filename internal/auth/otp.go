package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// DefaultOTPTTL is how long a verification code stays valid.
const DefaultOTPTTL = 2 * time.Minute

const (
	otpMin   = 100000
	otpRange = 900000
)

// Challenge is a pending email verification code.
type Challenge struct {
	Code      string
	ExpiresAt time.Time
}

// Matches reports whether code equals the challenge and now is strictly
// before its expiry.
func (c Challenge) Matches(code string, now time.Time) bool {
	if c.Code == "" || c.ExpiresAt.IsZero() {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return false
	}
	return now.Before(c.ExpiresAt)
}

// Outstanding reports whether the challenge is still inside its window.
func (c Challenge) Outstanding(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.Before(c.ExpiresAt)
}

// OTPGenerator issues 6-digit codes from crypto/rand.
type OTPGenerator struct {
	ttl time.Duration
	now func() time.Time
}

// OTPOption configures an OTPGenerator.
type OTPOption func(*OTPGenerator)

// WithOTPClock overrides the clock used to stamp expiries.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(g *OTPGenerator) { g.now = now }
}

// NewOTPGenerator creates a generator. A non-positive ttl uses DefaultOTPTTL.
func NewOTPGenerator(ttl time.Duration, opts ...OTPOption) *OTPGenerator {
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	g := &OTPGenerator{ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// TTL returns the validity window of generated codes.
func (g *OTPGenerator) TTL() time.Duration {
	return g.ttl
}

// Generate returns a uniform code in [100000, 999999] expiring after the TTL.
func (g *OTPGenerator) Generate() (Challenge, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpRange))
	if err != nil {
		return Challenge{}, fmt.Errorf("generating otp: %w", err)
	}

	return Challenge{
		Code:      strconv.FormatInt(n.Int64()+otpMin, 10),
		ExpiresAt: g.now().Add(g.ttl).UTC(),
	}, nil
}
