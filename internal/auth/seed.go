package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nerrad567/storefront-auth/internal/infrastructure/logging"
)

// seedPasswordBytes is the number of random bytes for the seed password.
const seedPasswordBytes = 16

// SeedAccount describes the super-admin created on first boot.
type SeedAccount struct {
	Email     string
	FirstName string
	LastName  string
}

// SeedSuperAdmin creates an active super-admin if the store is empty. The
// generated password is logged once at WARN and never again.
// Returns the generated password (empty string if seeding was skipped).
func SeedSuperAdmin(ctx context.Context, store PrincipalStore, hasher *Hasher, account SeedAccount, logger *logging.Logger) (string, error) {
	if account.Email == "" {
		return "", nil
	}

	count, err := store.Count(ctx)
	if err != nil {
		return "", fmt.Errorf("checking super-admin count: %w", err)
	}
	if count > 0 {
		logger.Info("super-admins exist, skipping seed")
		return "", nil
	}

	passwordBytes := make([]byte, seedPasswordBytes)
	if _, err := rand.Read(passwordBytes); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return "", fmt.Errorf("generating seed password: %w", err)
	}
	password := hex.EncodeToString(passwordBytes)

	hash, err := hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing seed password: %w", err)
	}

	now := time.Now().UTC()
	p := &Principal{
		Email:        account.Email,
		PasswordHash: hash,
		Status:       true,
		IsVerified:   true,
		VerifiedAt:   &now,
		Profile: compactProfile(map[string]string{
			"firstName": account.FirstName,
			"lastName":  account.LastName,
		}),
	}
	if err := store.Create(ctx, p); err != nil {
		return "", fmt.Errorf("creating seed super-admin: %w", err)
	}

	logger.Warn("seed super-admin account created",
		"email", p.Email,
		"password", password,
		"action_required", "store this password; it is shown once",
	)

	return password, nil
}
