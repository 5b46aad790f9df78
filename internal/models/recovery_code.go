package models

import (
	"time"

	"github.com/google/uuid"
)

// RecoveryCode is a single-use secret for passphrase reset. The code itself
// is stored hashed; only the grouped plaintext (XXXX-XXXX-XXXX) is shown to
// the user, once, at generation time.
type RecoveryCode struct {
	ID        uuid.UUID
	VaultID   uuid.UUID
	CodeHash  []byte
	UsedAt    *time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Usable reports whether the code can still pin a reset.
func (c *RecoveryCode) Usable() bool {
	return c.UsedAt == nil && c.RevokedAt == nil
}
