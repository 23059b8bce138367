package auth

import (
	"errors"
	"sort"
	"strings"
)

// Sentinel errors for auth operations. The API layer maps each one to a
// status code and message; anything else is reported as a server error.
var (
	ErrUnknownRole            = errors.New("unknown role")
	ErrNotFound               = errors.New("principal not found")
	ErrAlreadyExists          = errors.New("principal already exists")
	ErrAlreadyVerified        = errors.New("principal already verified")
	ErrInvalidOTP             = errors.New("invalid or expired otp")
	ErrCooldownActive         = errors.New("otp resend cooldown active")
	ErrRegistrationIncomplete = errors.New("registration was never completed")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrTokenInvalid           = errors.New("invalid token")
	ErrEmptyPassword          = errors.New("password must not be empty")
)

// ValidationError carries one message per offending request field.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
