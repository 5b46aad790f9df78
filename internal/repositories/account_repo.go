package repositories

import (
	"context"
	"fmt"

	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountRepository handles external identity data access
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

const accountColumns = `id, user_id, provider, provider_account_id,
	access_token, refresh_token, id_token, scope, token_expires_at,
	created_at, updated_at`

func scanAccountRow(row rowScanner) (*models.Account, error) {
	var a models.Account
	err := row.Scan(
		&a.ID, &a.UserID, &a.Provider, &a.ProviderAccountID,
		&a.AccessToken, &a.RefreshToken, &a.IDToken, &a.Scope,
		&a.TokenExpiresAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &a, nil
}

func (r *AccountRepository) GetByProviderAccount(ctx context.Context, provider, providerAccountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts WHERE provider = $1 AND provider_account_id = $2`
	return scanAccountRow(r.pool.QueryRow(ctx, query, provider, providerAccountID))
}

// Upsert inserts the account or rewrites its tokens on re-auth. The
// (provider, provider_account_id) pair is unique; the user link never moves
// on conflict.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	query := `
		INSERT INTO accounts (
			user_id, provider, provider_account_id,
			access_token, refresh_token, id_token, scope, token_expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, provider_account_id) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			id_token = EXCLUDED.id_token,
			scope = EXCLUDED.scope,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = NOW()
		RETURNING ` + accountColumns

	result, err := scanAccountRow(r.pool.QueryRow(ctx, query,
		account.UserID, account.Provider, account.ProviderAccountID,
		account.AccessToken, account.RefreshToken, account.IDToken,
		account.Scope, account.TokenExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return result, nil
}
