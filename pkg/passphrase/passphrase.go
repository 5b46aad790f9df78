// Package passphrase wraps the slow KDF used for vault passphrases. Cost is
// deliberately high so that exhaustive guessing is economically infeasible;
// verification runs constant-time within bcrypt.
package passphrase

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	KDFCost       = 12
	SaltLength    = 16
	MinPassphrase = 10
	MaxPassphrase = 256
)

// Hash derives the storage digest for a passphrase. The salt parameter is
// persisted alongside for crypto-policy versioning; bcrypt embeds its own
// salt in the digest.
func Hash(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("passphrase cannot be empty")
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(passphrase), KDFCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash passphrase: %w", err)
	}
	return digest, nil
}

// Verify compares a candidate against the stored digest. The comparison is
// constant-time; the error does not reveal which byte differed.
func Verify(digest []byte, passphrase string) error {
	return bcrypt.CompareHashAndPassword(digest, []byte(passphrase))
}

// NewSalt returns fresh CSPRNG salt bytes for the vault row.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GeneratePlaceholder returns a machine-chosen first-run passphrase. It is
// returned to the enrolling client exactly once and never logged.
func GeneratePlaceholder() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate placeholder passphrase: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Validate enforces minimal passphrase requirements. The vault model favors
// length over composition rules.
func Validate(passphrase string) error {
	if len(passphrase) < MinPassphrase {
		return fmt.Errorf("passphrase must be at least %d characters", MinPassphrase)
	}
	if len(passphrase) > MaxPassphrase {
		return fmt.Errorf("passphrase must be at most %d characters", MaxPassphrase)
	}
	return nil
}
