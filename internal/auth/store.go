package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PrincipalStore persists principals of one kind. Every mutation is a
// single-row statement keyed by email.
type PrincipalStore interface {
	// Create inserts p, filling ID and timestamps. A duplicate email
	// returns ErrAlreadyExists.
	Create(ctx context.Context, p *Principal) error

	// GetByEmail returns ErrNotFound when no row matches.
	GetByEmail(ctx context.Context, email string) (*Principal, error)

	// SetChallenge overwrites otp/otp_expiry of an unverified principal.
	SetChallenge(ctx context.Context, email string, c Challenge) error

	// MarkVerified flips an unverified principal to verified and clears
	// its challenge. ErrAlreadyVerified when the row is already verified.
	MarkVerified(ctx context.Context, email string, at time.Time) error

	UpdatePasswordHash(ctx context.Context, email, hash string) error

	// DeleteUnverified removes a principal that never completed
	// verification. Verified rows are never touched.
	DeleteUnverified(ctx context.Context, email string) error

	Count(ctx context.Context) (int, error)
}

// Tables backing each principal kind.
var principalTables = map[Role]string{
	RoleSuperAdmin: "super_admins",
	RoleAdmin:      "admins",
	RoleRetailer:   "retailers",
	RoleCustomer:   "customers",
}

const principalColumns = "id, email, password_hash, status, is_verified, verified_at, otp, otp_expiry, profile, created_at, updated_at"

// SQLiteStore implements PrincipalStore over one SQLite table.
type SQLiteStore struct {
	db    *sql.DB
	table string
	now   func() time.Time
}

// NewSQLiteStore creates the store for a role's table.
func NewSQLiteStore(db *sql.DB, role Role) (*SQLiteStore, error) {
	table, ok := principalTables[role]
	if !ok {
		return nil, ErrUnknownRole
	}
	return &SQLiteStore{db: db, table: table, now: time.Now}, nil
}

// Create inserts a new principal. The ID is generated if empty.
func (s *SQLiteStore) Create(ctx context.Context, p *Principal) error {
	if p.ID == "" {
		p.ID = "prn-" + uuid.NewString()[:8]
	}
	p.Email = NormalizeEmail(p.Email)

	now := s.now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	profile, err := encodeProfile(p.Profile)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (`+principalColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Email, p.PasswordHash, boolToInt(p.Status), boolToInt(p.IsVerified),
		nullTime(p.VerifiedAt), nullString(p.OTP), nullTime(p.OTPExpiry),
		profile, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("creating principal in %s: %w", s.table, err)
	}

	return nil
}

// GetByEmail retrieves a principal by normalized email.
func (s *SQLiteStore) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+principalColumns+" FROM "+s.table+" WHERE email = ?", NormalizeEmail(email))
	return scanPrincipal(row)
}

// SetChallenge replaces the pending challenge of an unverified principal.
func (s *SQLiteStore) SetChallenge(ctx context.Context, email string, c Challenge) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table+" SET otp = ?, otp_expiry = ?, updated_at = ? WHERE email = ? AND is_verified = 0",
		c.Code, formatTime(c.ExpiresAt), formatTime(s.now()), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("setting challenge in %s: %w", s.table, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return s.missOrVerified(ctx, email)
	}
	return nil
}

// MarkVerified sets is_verified and verified_at and clears the challenge.
func (s *SQLiteStore) MarkVerified(ctx context.Context, email string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET is_verified = 1, verified_at = ?, otp = NULL, otp_expiry = NULL, updated_at = ?
		 WHERE email = ? AND is_verified = 0`,
		formatTime(at), formatTime(s.now()), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("marking principal verified in %s: %w", s.table, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return s.missOrVerified(ctx, email)
	}
	return nil
}

// UpdatePasswordHash replaces a principal's password hash.
func (s *SQLiteStore) UpdatePasswordHash(ctx context.Context, email, hash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE "+s.table+" SET password_hash = ?, updated_at = ? WHERE email = ?",
		hash, formatTime(s.now()), NormalizeEmail(email),
	)
	if err != nil {
		return fmt.Errorf("updating password in %s: %w", s.table, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUnverified removes an unverified principal by email.
func (s *SQLiteStore) DeleteUnverified(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM "+s.table+" WHERE email = ? AND is_verified = 0", NormalizeEmail(email))
	if err != nil {
		return fmt.Errorf("deleting principal from %s: %w", s.table, err)
	}

	rows, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if rows == 0 {
		return s.missOrVerified(ctx, email)
	}
	return nil
}

// Count returns the number of principals in the store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting %s: %w", s.table, err)
	}
	return count, nil
}

// missOrVerified explains why a conditional update matched no row.
func (s *SQLiteStore) missOrVerified(ctx context.Context, email string) error {
	p, err := s.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if p.IsVerified {
		return ErrAlreadyVerified
	}
	// The row changed between the two statements; report it as a miss.
	return ErrNotFound
}

// scanner is an interface for sql.Row and sql.Rows Scan methods.
type scanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(s scanner) (*Principal, error) {
	var p Principal
	var status, isVerified int
	var verifiedAt, otp, otpExpiry sql.NullString
	var profile, createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Email, &p.PasswordHash, &status, &isVerified,
		&verifiedAt, &otp, &otpExpiry, &profile, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning principal: %w", err)
	}

	p.Status = status != 0
	p.IsVerified = isVerified != 0
	p.VerifiedAt = parseNullTime(verifiedAt)
	p.OTPExpiry = parseNullTime(otpExpiry)
	if otp.Valid {
		p.OTP = otp.String
	}

	if profile != "" {
		if err := json.Unmarshal([]byte(profile), &p.Profile); err != nil {
			return nil, fmt.Errorf("decoding profile: %w", err)
		}
	}
	if p.Profile == nil {
		p.Profile = Profile{}
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt) //nolint:errcheck // format is controlled
	p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt) //nolint:errcheck // format is controlled

	return &p, nil
}

// Helper functions.

func encodeProfile(p Profile) (string, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}
	return string(b), nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil || t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
