package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/ignitionhq/ignition/pkg/passphrase"
	"github.com/jackc/pgx/v5"
)

const (
	recoveryCodeCount    = 8
	recoveryCodeCharset  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	recoveryCodeGroups   = 3
	recoveryCodeGroupLen = 4
)

var recoveryCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

// VaultService drives lock/unlock transitions, passphrase lifecycle, and
// recovery codes. Every state transition runs inside a transaction holding
// the per-user advisory lock, so concurrent transitions serialize and each
// one leaves exactly one vault_lock_events row.
type VaultService struct {
	db     *database.DB
	vaults *repositories.VaultRepository
	codes  *repositories.RecoveryCodeRepository
	audit  *AuditService
	timing *auth.TimingDelay
	logger *slog.Logger
}

func NewVaultService(db *database.DB, vaults *repositories.VaultRepository, codes *repositories.RecoveryCodeRepository, audit *AuditService, timing *auth.TimingDelay, logger *slog.Logger) *VaultService {
	return &VaultService{
		db:     db,
		vaults: vaults,
		codes:  codes,
		audit:  audit,
		timing: timing,
		logger: logger,
	}
}

// EnsureVault returns the user's vault, provisioning a placeholder vault on
// first touch. The placeholder passphrase is machine generated and discarded;
// the kdf_params marker lets the first real passphrase change skip the
// current-passphrase check.
func (s *VaultService) EnsureVault(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	vault, err := s.vaults.GetByUserID(ctx, userID)
	if err == nil {
		return vault, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	placeholder, err := passphrase.GeneratePlaceholder()
	if err != nil {
		return nil, err
	}
	hash, err := passphrase.Hash(placeholder)
	if err != nil {
		return nil, err
	}
	salt, err := passphrase.NewSalt()
	if err != nil {
		return nil, err
	}

	vault, err = s.vaults.Create(ctx, &models.Vault{
		UserID:         userID,
		PassphraseSalt: salt,
		PassphraseHash: hash,
		KDFParams:      models.KDFParamsPlaceholderMarker,
	})
	if err != nil {
		if errors.Is(err, models.ErrConflict) {
			// Concurrent first touch; the other writer won.
			return s.vaults.GetByUserID(ctx, userID)
		}
		return nil, err
	}

	s.logger.Info("vault provisioned", slog.String("user_id", userID.String()))
	return vault, nil
}

// Status returns the vault's current lock state.
func (s *VaultService) Status(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	return s.EnsureVault(ctx, userID)
}

// Lock transitions the vault to locked for the given reason. Locking an
// already locked vault is a no-op: no second transition, no second event.
// The force and admin reasons are reserved for elevated callers.
func (s *VaultService) Lock(ctx context.Context, userID uuid.UUID, reason models.LockReason, actorDevice *string, elevated bool) (*models.Vault, error) {
	if !reason.Valid() {
		return nil, fmt.Errorf("%w: unknown lock reason %q", models.ErrBadRequest, reason)
	}
	if (reason == models.LockReasonForce || reason == models.LockReasonAdmin) && !elevated {
		return nil, models.ErrForbidden
	}

	var result *models.Vault
	err := s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.AcquireUserLock(ctx, tx, userID); err != nil {
			return err
		}
		vault, err := s.vaults.GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if vault.Locked() {
			result = vault
			return nil
		}

		now := time.Now()
		if err := s.vaults.SetLockStateTx(ctx, tx, vault.ID, &now, &reason); err != nil {
			return err
		}
		if err := s.vaults.InsertLockEventTx(ctx, tx, &models.VaultLockEvent{
			VaultID:     vault.ID,
			UserID:      userID,
			Locked:      true,
			Reason:      &reason,
			ActorDevice: actorDevice,
		}); err != nil {
			return err
		}

		vault.LockedAt = &now
		vault.LockReason = &reason
		result = vault
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Event(ctx, models.AuditEventTypeVaultLock, &userID,
		models.AuditResourceTypeVault, result.ID.String(),
		"lock", true, nil, nil, models.AuditMetadata{"reason": string(reason)})

	return result, nil
}

// Unlock clears the lock after verifying the passphrase. The KDF runs before
// the transaction opens so the advisory lock is never held across the slow
// comparison. Missing vault and wrong passphrase return the same error: the
// response must not reveal which. A logout lock additionally requires the
// session to have been issued after the lock was taken.
func (s *VaultService) Unlock(ctx context.Context, userID uuid.UUID, pass string, actorDevice *string, sessionIssuedAt *time.Time, elevated bool) (*models.Vault, error) {
	vault, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.failedUnlockAudit(ctx, userID, "no_vault")
			return nil, models.ErrInvalidPassphrase
		}
		return nil, err
	}

	if err := passphrase.Verify(vault.PassphraseHash, pass); err != nil {
		s.failedUnlockAudit(ctx, userID, "bad_passphrase")
		return nil, models.ErrInvalidPassphrase
	}

	var result *models.Vault
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.AcquireUserLock(ctx, tx, userID); err != nil {
			return err
		}
		current, err := s.vaults.GetByUserIDTx(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !current.Locked() {
			result = current
			return nil
		}

		reason := *current.LockReason
		if !reason.PassphraseUnlockable() {
			switch reason {
			case models.LockReasonLogout:
				if sessionIssuedAt == nil || !sessionIssuedAt.After(*current.LockedAt) {
					return models.ErrFreshAuthRequired
				}
			case models.LockReasonForce, models.LockReasonAdmin:
				if !elevated {
					return models.ErrElevatedLock
				}
			}
		}

		if err := s.vaults.SetLockStateTx(ctx, tx, current.ID, nil, nil); err != nil {
			return err
		}
		if err := s.vaults.InsertLockEventTx(ctx, tx, &models.VaultLockEvent{
			VaultID:     current.ID,
			UserID:      userID,
			Locked:      false,
			Reason:      &reason,
			ActorDevice: actorDevice,
		}); err != nil {
			return err
		}

		current.LockedAt = nil
		current.LockReason = nil
		result = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Event(ctx, models.AuditEventTypeVaultUnlock, &userID,
		models.AuditResourceTypeVault, result.ID.String(),
		"unlock", true, nil, nil, nil)

	return result, nil
}

// ChangePassphrase rewrites the KDF material and revokes every outstanding
// recovery code. The current passphrase is required unless the vault still
// carries the first-run placeholder. Callers must rotate the session after a
// successful change.
func (s *VaultService) ChangePassphrase(ctx context.Context, userID uuid.UUID, current, next string) error {
	if err := passphrase.Validate(next); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err)
	}

	vault, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if vault.KDFParams != models.KDFParamsPlaceholderMarker {
		if err := passphrase.Verify(vault.PassphraseHash, current); err != nil {
			s.audit.Event(ctx, models.AuditEventTypePassphrase, &userID,
				models.AuditResourceTypeVault, vault.ID.String(),
				"change", false, nil, nil, nil)
			return models.ErrInvalidPassphrase
		}
	}

	hash, err := passphrase.Hash(next)
	if err != nil {
		return err
	}
	salt, err := passphrase.NewSalt()
	if err != nil {
		return err
	}

	var revoked int64
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.AcquireUserLock(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.vaults.SetPassphraseTx(ctx, tx, vault.ID, salt, hash, "bcrypt"); err != nil {
			return err
		}
		revoked, err = s.codes.RevokeAllTx(ctx, tx, vault.ID)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("vault passphrase changed",
		slog.String("user_id", userID.String()),
		slog.Int64("recovery_codes_revoked", revoked))

	s.audit.Event(ctx, models.AuditEventTypePassphrase, &userID,
		models.AuditResourceTypeVault, vault.ID.String(),
		"change", true, nil, nil, nil)

	return nil
}

// ResetWithRecoveryCode sets a new passphrase via an unauthenticated
// recovery code. Spending the code and rewriting the passphrase commit in
// one transaction, so a replayed code observes the used_at guard and loses.
// Misses are padded to the timing floor so response time does not reveal
// whether a code exists.
func (s *VaultService) ResetWithRecoveryCode(ctx context.Context, code, next string, ipAddress, userAgent *string) error {
	start := time.Now()

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !recoveryCodePattern.MatchString(normalized) {
		s.timing.WaitFrom(start)
		return models.ErrInvalidRecoveryCode
	}
	if err := passphrase.Validate(next); err != nil {
		return fmt.Errorf("%w: %s", models.ErrBadRequest, err)
	}

	digest := sha256.Sum256([]byte(normalized))
	rc, err := s.codes.FindUsableByHash(ctx, digest[:])
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.timing.WaitFrom(start)
			return models.ErrInvalidRecoveryCode
		}
		return err
	}

	hash, err := passphrase.Hash(next)
	if err != nil {
		return err
	}
	salt, err := passphrase.NewSalt()
	if err != nil {
		return err
	}

	var userID uuid.UUID
	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		vault, err := s.vaults.GetByIDTx(ctx, tx, rc.VaultID)
		if err != nil {
			return err
		}
		userID = vault.UserID
		if err := database.AcquireUserLock(ctx, tx, vault.UserID); err != nil {
			return err
		}
		if err := s.codes.MarkUsedTx(ctx, tx, rc.ID); err != nil {
			return err
		}
		return s.vaults.SetPassphraseTx(ctx, tx, vault.ID, salt, hash, "bcrypt")
	})
	if err != nil {
		if errors.Is(err, models.ErrInvalidRecoveryCode) {
			s.timing.WaitFrom(start)
		}
		return err
	}

	// Recovery resets are rare and security relevant; surface them loudly.
	s.logger.Warn("vault passphrase reset via recovery code",
		slog.String("user_id", userID.String()))

	s.audit.Event(ctx, models.AuditEventTypeRecoveryReset, &userID,
		models.AuditResourceTypeVault, rc.VaultID.String(),
		"reset", true, ipAddress, userAgent, nil)

	return nil
}

// GenerateRecoveryCodes revokes any outstanding codes and mints a fresh
// batch. Plaintext codes appear only in the return value; storage holds
// SHA-256 digests.
func (s *VaultService) GenerateRecoveryCodes(ctx context.Context, userID uuid.UUID) ([]string, error) {
	vault, err := s.EnsureVault(ctx, userID)
	if err != nil {
		return nil, err
	}

	plaintexts := make([]string, 0, recoveryCodeCount)
	digests := make([][]byte, 0, recoveryCodeCount)
	for i := 0; i < recoveryCodeCount; i++ {
		code, err := newRecoveryCode()
		if err != nil {
			return nil, err
		}
		sum := sha256.Sum256([]byte(code))
		plaintexts = append(plaintexts, code)
		digests = append(digests, sum[:])
	}

	err = s.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := database.AcquireUserLock(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := s.codes.RevokeAllTx(ctx, tx, vault.ID); err != nil {
			return err
		}
		return s.codes.InsertBatchTx(ctx, tx, vault.ID, digests)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Event(ctx, models.AuditEventTypeRecoveryCodes, &userID,
		models.AuditResourceTypeVault, vault.ID.String(),
		"generate", true, nil, nil,
		models.AuditMetadata{"count": recoveryCodeCount})

	return plaintexts, nil
}

// LockHistory returns the transition history for the user's vault.
func (s *VaultService) LockHistory(ctx context.Context, userID uuid.UUID, limit int) ([]*models.VaultLockEvent, error) {
	vault, err := s.vaults.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.vaults.ListLockEvents(ctx, vault.ID, limit)
}

func (s *VaultService) failedUnlockAudit(ctx context.Context, userID uuid.UUID, detail string) {
	s.audit.Event(ctx, models.AuditEventTypeVaultUnlock, &userID,
		models.AuditResourceTypeVault, "",
		"unlock", false, nil, nil, models.AuditMetadata{"detail": detail})
}

// newRecoveryCode mints one XXXX-XXXX-XXXX code from the uppercase
// alphanumeric charset via crypto/rand.
func newRecoveryCode() (string, error) {
	groups := make([]string, 0, recoveryCodeGroups)
	buf := make([]byte, recoveryCodeGroupLen)
	for g := 0; g < recoveryCodeGroups; g++ {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate recovery code: %w", err)
		}
		chars := make([]byte, recoveryCodeGroupLen)
		for i, b := range buf {
			chars[i] = recoveryCodeCharset[int(b)%len(recoveryCodeCharset)]
		}
		groups = append(groups, string(chars))
	}
	return strings.Join(groups, "-"), nil
}
