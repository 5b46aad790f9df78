package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	// SessionTokenLength is 32 CSPRNG bytes: 256 bits of entropy, making
	// collisions between issued tokens negligible.
	SessionTokenLength = 32
)

// GenerateSessionToken returns an opaque URL-safe session token. It is not a
// JWT and carries no claims; the session row is the source of truth.
func GenerateSessionToken() (string, error) {
	raw := make([]byte, SessionTokenLength)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// GenerateStateKey returns the OAuth CSRF state string for one handshake.
func GenerateStateKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate state key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
