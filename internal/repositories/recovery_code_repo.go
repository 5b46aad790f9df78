package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RecoveryCodeRepository handles recovery code data access. Codes are stored
// as SHA-256 digests so the unauthenticated reset path can look them up
// directly; the plaintext grouped code exists only in the generation
// response.
type RecoveryCodeRepository struct {
	pool *pgxpool.Pool
}

func NewRecoveryCodeRepository(db *database.DB) *RecoveryCodeRepository {
	return &RecoveryCodeRepository{pool: db.Pool}
}

// FindUsableByHash returns the unused, unrevoked code matching the digest.
func (r *RecoveryCodeRepository) FindUsableByHash(ctx context.Context, codeHash []byte) (*models.RecoveryCode, error) {
	query := `
		SELECT id, vault_id, code_hash, used_at, revoked_at, created_at
		FROM recovery_codes
		WHERE code_hash = $1 AND used_at IS NULL AND revoked_at IS NULL`

	var c models.RecoveryCode
	err := r.pool.QueryRow(ctx, query, codeHash).Scan(
		&c.ID, &c.VaultID, &c.CodeHash, &c.UsedAt, &c.RevokedAt, &c.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &c, nil
}

// MarkUsedTx pins the single-use transition inside the caller's
// transaction. The used_at IS NULL guard makes a concurrent double-spend
// lose cleanly.
func (r *RecoveryCodeRepository) MarkUsedTx(ctx context.Context, tx pgx.Tx, codeID uuid.UUID) error {
	tag, err := tx.Exec(ctx,
		`UPDATE recovery_codes SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`,
		codeID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrInvalidRecoveryCode
	}
	return nil
}

// RevokeAllTx revokes every outstanding code for a vault.
func (r *RecoveryCodeRepository) RevokeAllTx(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx,
		`UPDATE recovery_codes SET revoked_at = NOW()
		 WHERE vault_id = $1 AND used_at IS NULL AND revoked_at IS NULL`,
		vaultID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// InsertBatchTx stores a fresh batch of code digests.
func (r *RecoveryCodeRepository) InsertBatchTx(ctx context.Context, tx pgx.Tx, vaultID uuid.UUID, codeHashes [][]byte) error {
	for _, hash := range codeHashes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recovery_codes (vault_id, code_hash) VALUES ($1, $2)`,
			vaultID, hash); err != nil {
			return fmt.Errorf("failed to insert recovery code: %w", err)
		}
	}
	return nil
}
