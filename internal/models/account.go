package models

import (
	"time"

	"github.com/google/uuid"
)

// Supported identity providers.
const (
	ProviderGoogle = "google"
	ProviderAzure  = "azure"
)

// Account links a local user to an external identity. One row per
// (provider, provider_account_id); tokens are rewritten on every re-auth.
type Account struct {
	ID                uuid.UUID
	UserID            uuid.UUID
	Provider          string
	ProviderAccountID string
	AccessToken       *string
	RefreshToken      *string
	IDToken           *string
	Scope             *string
	TokenExpiresAt    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
