package auth

import (
	"strings"
	"time"
)

// Role identifies a principal kind. Each kind has its own store.
type Role string

const (
	// RoleSuperAdmin is the platform operator. Registered through the
	// secret route or seeded on first boot.
	RoleSuperAdmin Role = "super-admin"

	// RoleAdmin is a back-office operator. Active immediately on registration.
	RoleAdmin Role = "admin"

	// RoleRetailer is a store owner. Must verify their email before a session
	// is issued.
	RoleRetailer Role = "retailer"

	// RoleCustomer is a shopper. Must verify their email before a session is
	// issued.
	RoleCustomer Role = "customer"
)

// Roles is the closed set of principal kinds.
var Roles = []Role{RoleSuperAdmin, RoleAdmin, RoleRetailer, RoleCustomer}

// ParseRole maps a token or route value onto the closed role set.
func ParseRole(s string) (Role, error) {
	for _, r := range Roles {
		if string(r) == s {
			return r, nil
		}
	}
	return "", ErrUnknownRole
}

// RequiresVerification reports whether the kind goes through OTP email
// verification before it can hold a session.
func (r Role) RequiresVerification() bool {
	return r == RoleRetailer || r == RoleCustomer
}

// IsAdminKind is true for super-admin and admin.
func (r Role) IsAdminKind() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// DisplayName is the human-readable kind used in response messages.
func (r Role) DisplayName() string {
	switch r {
	case RoleSuperAdmin:
		return "Super Admin"
	case RoleAdmin:
		return "Admin"
	case RoleRetailer:
		return "Retailer"
	case RoleCustomer:
		return "Customer"
	default:
		return string(r)
	}
}

// TokenKind is carried in the "typ" claim and keeps the three token classes
// from standing in for one another.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
	TokenPreAuth TokenKind = "preauth"
)

func (k TokenKind) valid() bool {
	return k == TokenAccess || k == TokenRefresh || k == TokenPreAuth
}

// Profile holds the kind-specific attributes of a principal, stored as a
// JSON document next to the credential columns.
type Profile map[string]string

// profileFields lists, per kind, the attributes exposed in public views.
var profileFields = map[Role][]string{
	RoleSuperAdmin: {"firstName", "lastName", "image", "phone"},
	RoleAdmin:      {"firstName", "lastName", "image", "phone"},
	RoleRetailer: {
		"storeName", "firstName", "lastName", "phone", "country", "province",
		"city", "postalCode", "address", "about", "website", "image", "ref",
	},
	RoleCustomer: {"fullName", "phone", "image"},
}

// Principal is one authenticatable account of a single kind.
type Principal struct {
	ID           string
	Email        string
	PasswordHash string
	Status       bool
	IsVerified   bool
	VerifiedAt   *time.Time
	OTP          string
	OTPExpiry    *time.Time
	Profile      Profile
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Challenge returns the principal's pending OTP challenge (zero if none).
func (p *Principal) Challenge() Challenge {
	c := Challenge{Code: p.OTP}
	if p.OTPExpiry != nil {
		c.ExpiresAt = *p.OTPExpiry
	}
	return c
}

// Public is the sanitized view returned to clients. Credentials, OTP state,
// verification state and timestamps never appear in it. Admin kinds also
// carry their role.
func (p *Principal) Public(role Role) map[string]any {
	out := map[string]any{
		"id":     p.ID,
		"email":  p.Email,
		"status": p.Status,
	}
	for _, field := range profileFields[role] {
		if v := p.Profile[field]; v != "" {
			out[field] = v
		} else {
			out[field] = nil
		}
	}
	if role.IsAdminKind() {
		out["role"] = string(role)
	}
	return out
}

// NormalizeEmail trims and lower-cases an address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
