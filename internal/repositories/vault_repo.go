package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VaultRepository owns the vault row. Lock and unlock transitions only
// happen inside an advisory-lock transaction driven by the vault service.
type VaultRepository struct {
	pool *pgxpool.Pool
}

func NewVaultRepository(db *database.DB) *VaultRepository {
	return &VaultRepository{pool: db.Pool}
}

const vaultColumns = `id, user_id, passphrase_salt, passphrase_hash,
	kdf_params, crypto_policy_ver, locked_at, lock_reason, enforce_tier,
	rotated_at, created_at, updated_at`

func scanVaultRow(row rowScanner) (*models.Vault, error) {
	var v models.Vault
	err := row.Scan(
		&v.ID, &v.UserID, &v.PassphraseSalt, &v.PassphraseHash,
		&v.KDFParams, &v.CryptoPolicyVer, &v.LockedAt, &v.LockReason,
		&v.EnforceTier, &v.RotatedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &v, nil
}

func (r *VaultRepository) Create(ctx context.Context, vault *models.Vault) (*models.Vault, error) {
	query := `
		INSERT INTO vaults (user_id, passphrase_salt, passphrase_hash, kdf_params, enforce_tier)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + vaultColumns

	created, err := scanVaultRow(r.pool.QueryRow(ctx, query,
		vault.UserID, vault.PassphraseSalt, vault.PassphraseHash,
		vault.KDFParams, vault.EnforceTier,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}
	return created, nil
}

func (r *VaultRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE user_id = $1`
	return scanVaultRow(r.pool.QueryRow(ctx, query, userID))
}

// GetByUserIDTx re-reads the vault inside the advisory-lock transaction so
// the transition decision observes the serialized state.
func (r *VaultRepository) GetByUserIDTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*models.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE user_id = $1`
	return scanVaultRow(tx.QueryRow(ctx, query, userID))
}

// GetByIDTx resolves a vault by primary key inside the caller's transaction,
// used when the entry point knows only the vault id (recovery code reset).
func (r *VaultRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID) (*models.Vault, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE id = $1`
	return scanVaultRow(tx.QueryRow(ctx, query, vaultID))
}

// SetLockStateTx sets or clears locked_at/lock_reason within the caller's
// transaction.
func (r *VaultRepository) SetLockStateTx(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, lockedAt *time.Time, reason *models.LockReason) error {
	query := `
		UPDATE vaults
		SET locked_at = $2, lock_reason = $3, updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, vaultID, lockedAt, reason)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// SetPassphraseTx rewrites the KDF material within the caller's transaction.
func (r *VaultRepository) SetPassphraseTx(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, salt, hash []byte, kdfParams string) error {
	query := `
		UPDATE vaults
		SET passphrase_salt = $2, passphrase_hash = $3, kdf_params = $4,
		    rotated_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, vaultID, salt, hash, kdfParams)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// InsertLockEventTx appends the transition audit row in the same
// transaction as the state change; they commit or roll back together.
// clock_timestamp() rather than NOW(): the insert runs while holding the
// advisory lock, so statement time orders events by serialization order
// even when the transactions started out of order.
func (r *VaultRepository) InsertLockEventTx(ctx context.Context, tx pgx.Tx, event *models.VaultLockEvent) error {
	query := `
		INSERT INTO vault_lock_events (vault_id, user_id, locked, reason, actor_device, created_at)
		VALUES ($1, $2, $3, $4, $5, clock_timestamp())`

	_, err := tx.Exec(ctx, query,
		event.VaultID, event.UserID, event.Locked, event.Reason, event.ActorDevice)
	if err != nil {
		return fmt.Errorf("failed to insert vault lock event: %w", err)
	}
	return nil
}

// ListLockEvents returns the transition history, oldest first.
func (r *VaultRepository) ListLockEvents(ctx context.Context, vaultID uuid.UUID, limit int) ([]*models.VaultLockEvent, error) {
	query := `
		SELECT id, vault_id, user_id, locked, reason, actor_device, created_at
		FROM vault_lock_events
		WHERE vault_id = $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query vault lock events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.VaultLockEvent, 0)
	for rows.Next() {
		var e models.VaultLockEvent
		if err := rows.Scan(&e.ID, &e.VaultID, &e.UserID, &e.Locked, &e.Reason, &e.ActorDevice, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vault lock event: %w", err)
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vault lock events: %w", err)
	}
	return events, nil
}
