package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OAuthStateRepository is the shared handshake store. Rows live in the
// primary database so any replica can complete a flow started elsewhere.
type OAuthStateRepository struct {
	pool *pgxpool.Pool
}

func NewOAuthStateRepository(db *database.DB) *OAuthStateRepository {
	return &OAuthStateRepository{pool: db.Pool}
}

// Upsert persists a pending handshake; reissuing the same state key
// supersedes the previous row.
func (r *OAuthStateRepository) Upsert(ctx context.Context, state *models.OAuthState) error {
	query := `
		INSERT INTO oauth_states (state_key, pkce_verifier, redirect_uri, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (state_key) DO UPDATE SET
			pkce_verifier = EXCLUDED.pkce_verifier,
			redirect_uri = EXCLUDED.redirect_uri,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`

	_, err := r.pool.Exec(ctx, query,
		state.StateKey, state.PKCEVerifier, state.RedirectURI,
		state.CreatedAt, state.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to persist oauth state: %w", err)
	}
	return nil
}

// Take atomically consumes a handshake: a single delete-and-return
// statement, so two concurrent callbacks on the same state produce exactly
// one winner. Expired or already-taken states are indistinguishable from
// never issued.
func (r *OAuthStateRepository) Take(ctx context.Context, stateKey string) (*models.OAuthState, error) {
	query := `
		DELETE FROM oauth_states
		WHERE state_key = $1 AND expires_at > NOW()
		RETURNING state_key, pkce_verifier, redirect_uri, created_at, expires_at`

	var s models.OAuthState
	err := r.pool.QueryRow(ctx, query, stateKey).Scan(
		&s.StateKey, &s.PKCEVerifier, &s.RedirectURI, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		mapped := database.MapPostgresError(err)
		if errors.Is(mapped, models.ErrNotFound) {
			return nil, models.ErrStateNotFound
		}
		return nil, mapped
	}
	return &s, nil
}

// DeleteExpired sweeps handshakes past their TTL.
func (r *OAuthStateRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
