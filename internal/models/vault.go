package models

import (
	"time"

	"github.com/google/uuid"
)

// LockReason is the closed set of reasons a vault can be locked for. The
// reason determines what is sufficient to unlock again.
type LockReason string

const (
	LockReasonIdle         LockReason = "idle"
	LockReasonBackgrounded LockReason = "backgrounded"
	LockReasonLogout       LockReason = "logout"
	LockReasonForce        LockReason = "force"
	LockReasonRotation     LockReason = "rotation"
	LockReasonAdmin        LockReason = "admin"
)

// Valid reports membership in the closed reason set.
func (r LockReason) Valid() bool {
	switch r {
	case LockReasonIdle, LockReasonBackgrounded, LockReasonLogout,
		LockReasonForce, LockReasonRotation, LockReasonAdmin:
		return true
	}
	return false
}

// PassphraseUnlockable reports whether the user's plain passphrase is
// sufficient to clear a lock with this reason. Logout requires fresh
// authentication first; force and admin require an elevated caller.
func (r LockReason) PassphraseUnlockable() bool {
	switch r {
	case LockReasonIdle, LockReasonBackgrounded, LockReasonRotation:
		return true
	}
	return false
}

// KDFParamsPlaceholderMarker marks a first-run vault whose passphrase was
// machine generated and never chosen by the user. Passphrase change does not
// require the current passphrase while the marker is set.
const KDFParamsPlaceholderMarker = "placeholder"

// Vault gates the end-to-end encrypted features for one user. Locked iff
// LockedAt is non-nil.
type Vault struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	PassphraseSalt  []byte
	PassphraseHash  []byte // slow-KDF digest; plaintext never persists
	KDFParams       string
	CryptoPolicyVer *int
	LockedAt        *time.Time
	LockReason      *LockReason
	EnforceTier     int
	RotatedAt       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Locked reports whether the vault is currently locked.
func (v *Vault) Locked() bool {
	return v.LockedAt != nil
}

// VaultLockEvent is the append-only audit of one lock or unlock transition.
type VaultLockEvent struct {
	ID          uuid.UUID
	VaultID     uuid.UUID
	UserID      uuid.UUID
	Locked      bool // true = lock transition, false = unlock
	Reason      *LockReason
	ActorDevice *string
	CreatedAt   time.Time
}
