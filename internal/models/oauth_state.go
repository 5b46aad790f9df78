package models

import "time"

// OAuthState is a pending OAuth handshake keyed by the CSRF state string.
// Rows are single-use: the callback consumes them with an atomic
// delete-and-return, and expired rows are indistinguishable from never
// issued ones.
type OAuthState struct {
	StateKey     string
	PKCEVerifier string
	RedirectURI  string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
