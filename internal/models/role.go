package models

import (
	"time"

	"github.com/google/uuid"
)

// Well-known entitlements. Matching is exact string equality.
const (
	EntitlementAdminAccess = "admin:access"
	EntitlementAdminUsers  = "admin:users"
)

// Role is a named grant; its name doubles as the entitlement string.
type Role struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

// UserRole grants a role to a user, optionally until ExpiresAt. Expired
// grants are skipped when loading the entitlement set.
type UserRole struct {
	UserID    uuid.UUID
	RoleID    uuid.UUID
	ExpiresAt *time.Time
	CreatedAt time.Time
}
