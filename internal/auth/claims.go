package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Default token lifetimes.
const (
	DefaultAccessTTL  = 24 * time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
	DefaultPreAuthTTL = 15 * time.Minute
)

// TokenTTLs holds the lifetime of each token class.
type TokenTTLs struct {
	Access  time.Duration
	Refresh time.Duration
	PreAuth time.Duration
}

// Claims is the signed payload of every storefront token.
type Claims struct {
	jwt.RegisteredClaims
	Email string    `json:"email"`
	Role  Role      `json:"role"`
	Kind  TokenKind `json:"typ"`
}

// IssuedToken is a signed token with its class and expiry.
type IssuedToken struct {
	Value     string
	Kind      TokenKind
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies HS256 tokens with a process-wide secret.
// It never consults a store.
type TokenIssuer struct {
	secret []byte
	ttls   TokenTTLs
	now    func() time.Time
}

// TokenIssuerOption configures a TokenIssuer.
type TokenIssuerOption func(*TokenIssuer)

// WithTokenClock overrides the clock used for iat/exp and validation.
func WithTokenClock(now func() time.Time) TokenIssuerOption {
	return func(ti *TokenIssuer) { ti.now = now }
}

// NewTokenIssuer creates a TokenIssuer. Zero TTLs fall back to the defaults.
func NewTokenIssuer(secret string, ttls TokenTTLs, opts ...TokenIssuerOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttls.Access <= 0 {
		ttls.Access = DefaultAccessTTL
	}
	if ttls.Refresh <= 0 {
		ttls.Refresh = DefaultRefreshTTL
	}
	if ttls.PreAuth <= 0 {
		ttls.PreAuth = DefaultPreAuthTTL
	}

	ti := &TokenIssuer{
		secret: []byte(secret),
		ttls:   ttls,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ti)
	}
	return ti, nil
}

// TTL returns the lifetime configured for a token class.
func (ti *TokenIssuer) TTL(kind TokenKind) time.Duration {
	switch kind {
	case TokenRefresh:
		return ti.ttls.Refresh
	case TokenPreAuth:
		return ti.ttls.PreAuth
	default:
		return ti.ttls.Access
	}
}

// Issue signs a token of the given class for {email, role}.
func (ti *TokenIssuer) Issue(email string, role Role, kind TokenKind) (IssuedToken, error) {
	if !kind.valid() {
		return IssuedToken{}, fmt.Errorf("unknown token kind %q", kind)
	}

	now := ti.now()
	expires := now.Add(ti.TTL(kind))
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
		Email: email,
		Role:  role,
		Kind:  kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("signing %s token: %w", kind, err)
	}

	return IssuedToken{
		Value:     signed,
		Kind:      kind,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
// Every failure wraps ErrTokenInvalid; the cause is not exposed to clients.
func (ti *TokenIssuer) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return ti.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ti.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Email == "" {
		return nil, fmt.Errorf("%w: missing email", ErrTokenInvalid)
	}
	if claims.Role == "" {
		return nil, fmt.Errorf("%w: missing role", ErrTokenInvalid)
	}
	if !claims.Kind.valid() {
		return nil, fmt.Errorf("%w: missing or unknown typ", ErrTokenInvalid)
	}

	return claims, nil
}
