package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is an opaque-token server-side session. The token is 32 CSPRNG
// bytes, base64url encoded; it is not a JWT and carries no claims.
type Session struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Token          string // unique; never logged in full
	ExpiresAt      time.Time
	CreatedAt      time.Time
	LastActivityAt time.Time
	UserAgent      *string
	IPAddress      *string
	RotatedFrom    *uuid.UUID
}

// Expired reports whether the absolute TTL has passed.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Inactive reports whether the inactivity timeout has elapsed since the last
// recorded activity.
func (s *Session) Inactive(now time.Time, timeout time.Duration) bool {
	return timeout > 0 && now.Sub(s.LastActivityAt) > timeout
}
