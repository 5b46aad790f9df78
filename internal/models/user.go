package models

import (
	"time"

	"github.com/google/uuid"
)

// Coarse roles. Fine-grained authorization uses entitlements (see Role).
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Onboarding statuses tracked on the user row.
const (
	OnboardingPending   = "pending"
	OnboardingCompleted = "completed"
)

type User struct {
	ID               uuid.UUID
	Email            string // lowercased, unique, provider-verified
	Name             string
	AvatarURL        *string
	Role             string // "user" or "admin"
	Approved         bool
	AgeVerified      bool
	TosAccepted      bool
	TosVersion       *string
	TosAcceptedAt    *time.Time
	OnboardingStatus string
	LastActivityAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsAdmin reports whether the coarse role grants admin access. Entitlement
// based admin checks live in the auth package.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
