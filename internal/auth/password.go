package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Default Argon2id parameters (OWASP recommendation).
const (
	DefaultArgonTime    = 3
	DefaultArgonMemory  = 64 * 1024
	DefaultArgonThreads = 1

	argonKeyLen  = 32
	argonSaltLen = 16
)

// HasherConfig holds the Argon2id cost parameters used for new hashes.
type HasherConfig struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

// Hasher produces Argon2id PHC strings and verifies both Argon2id and legacy
// bcrypt hashes.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Hasher struct {
	params argonParams
	dummy  string
}

// NewHasher creates a Hasher. Zero fields in cfg fall back to the defaults.
func NewHasher(cfg HasherConfig) (*Hasher, error) {
	h := &Hasher{params: argonParams{
		time:    cfg.Time,
		memory:  cfg.MemoryKiB,
		threads: cfg.Threads,
	}}
	if h.params.time == 0 {
		h.params.time = DefaultArgonTime
	}
	if h.params.memory == 0 {
		h.params.memory = DefaultArgonMemory
	}
	if h.params.threads == 0 {
		h.params.threads = DefaultArgonThreads
	}

	// Verified against when an account does not exist, so unknown and known
	// emails cost the same.
	dummy, err := h.Hash("storefront-dummy-password")
	if err != nil {
		return nil, fmt.Errorf("creating dummy hash: %w", err)
	}
	h.dummy = dummy

	return h, nil
}

// Hash hashes a plaintext password and returns it in PHC string format:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func (h *Hasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := h.params
	hash := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify checks a plaintext password against a stored hash. Argon2id PHC
// strings and bcrypt hashes ($2a$, $2b$, $2y$) are accepted.
func (h *Hasher) Verify(password, encodedHash string) (bool, error) {
	if isBcrypt(encodedHash) {
		err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, fmt.Errorf("verifying bcrypt hash: %w", err)
		}
	}

	salt, hash, params, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, params.time, params.memory, params.threads, uint32(len(hash))) //nolint:gosec // G115: hash length always fits uint32

	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}

// NeedsUpgrade reports whether a stored hash should be replaced with one
// using the current algorithm and parameters.
func (h *Hasher) NeedsUpgrade(encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return true
	}
	_, _, params, err := decodePHC(encodedHash)
	if err != nil {
		return true
	}
	return params != h.params
}

// VerifyDummy burns the same work as a real verification and always fails.
func (h *Hasher) VerifyDummy(password string) {
	_, _ = h.Verify(password, h.dummy)
}

func isBcrypt(encoded string) bool {
	return strings.HasPrefix(encoded, "$2a$") ||
		strings.HasPrefix(encoded, "$2b$") ||
		strings.HasPrefix(encoded, "$2y$")
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

// decodePHC parses an Argon2id PHC string format into its components.
func decodePHC(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, params, fmt.Errorf("invalid PHC hash format")
	}

	if parts[1] != "argon2id" {
		return nil, nil, params, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing version: %w", err)
	}
	if version != argon2.Version {
		return nil, nil, params, fmt.Errorf("unsupported argon2 version: %d", version)
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.time, &params.threads); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, params, fmt.Errorf("parsing parameters: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, params, fmt.Errorf("decoding hash: %w", err)
	}

	return salt, hash, params, nil
}
