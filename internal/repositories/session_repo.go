package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionRepository handles session data access
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{pool: db.Pool}
}

const sessionColumns = `id, user_id, token, expires_at, created_at,
	last_activity_at, user_agent, ip_address, rotated_from`

func scanSessionRow(row rowScanner) (*models.Session, error) {
	var s models.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.Token, &s.ExpiresAt, &s.CreatedAt,
		&s.LastActivityAt, &s.UserAgent, &s.IPAddress, &s.RotatedFrom,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *models.Session) (*models.Session, error) {
	query := `
		INSERT INTO sessions (user_id, token, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + sessionColumns

	created, err := scanSessionRow(r.pool.QueryRow(ctx, query,
		session.UserID, session.Token, session.ExpiresAt,
		session.UserAgent, session.IPAddress,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return created, nil
}

// GetByToken returns the session iff its absolute TTL has not passed.
func (r *SessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions WHERE token = $1 AND expires_at > NOW()`
	return scanSessionRow(r.pool.QueryRow(ctx, query, token))
}

// Rotate swaps in a new token on the same row: rotated_from records the
// lineage, created_at resets, and the TTL restarts.
func (r *SessionRepository) Rotate(ctx context.Context, sessionID uuid.UUID, newToken string, ttl time.Duration) (*models.Session, error) {
	query := `
		UPDATE sessions
		SET token = $2, rotated_from = id, created_at = NOW(),
		    last_activity_at = NOW(), expires_at = NOW() + $3
		WHERE id = $1
		RETURNING ` + sessionColumns

	rotated, err := scanSessionRow(r.pool.QueryRow(ctx, query, sessionID, newToken, ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to rotate session: %w", err)
	}
	return rotated, nil
}

func (r *SessionRepository) Delete(ctx context.Context, sessionID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, sessionID)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}

// TouchActivity updates last_activity_at; callers treat failure as
// warning-level only.
func (r *SessionRepository) TouchActivity(ctx context.Context, sessionID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE sessions SET last_activity_at = NOW() WHERE id = $1`, sessionID)
	return database.MapPostgresError(err)
}

// DeleteExpired removes sessions past their absolute TTL.
func (r *SessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return tag.RowsAffected(), nil
}
