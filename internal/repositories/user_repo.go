package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository handles user data access
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{pool: db.Pool}
}

const userColumns = `id, email, name, avatar_url, role, approved, age_verified,
	tos_accepted, tos_version, tos_accepted_at, onboarding_status,
	last_activity_at, created_at, updated_at`

func scanUserRow(row rowScanner) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.Approved,
		&u.AgeVerified, &u.TosAccepted, &u.TosVersion, &u.TosAcceptedAt,
		&u.OnboardingStatus, &u.LastActivityAt, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &u, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUserRow(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

// Create inserts a new user. Email is stored lowercased; the approved flag
// stays at its default unless explicitly set.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO users (email, name, avatar_url, role, approved)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + userColumns

	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	created, err := scanUserRow(r.pool.QueryRow(ctx, query,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.Name, user.AvatarURL, role, user.Approved,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// MarkTosAccepted records ToS acceptance at the given version.
func (r *UserRepository) MarkTosAccepted(ctx context.Context, userID uuid.UUID, version string) error {
	query := `
		UPDATE users
		SET tos_accepted = TRUE, tos_version = $2, tos_accepted_at = NOW(), updated_at = NOW()
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, version)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// HasPasskey reports whether any passkey credential is registered.
func (r *UserRepository) HasPasskey(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM passkey_credentials WHERE user_id = $1)`,
		userID,
	).Scan(&exists)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return exists, nil
}

// TouchActivity updates last_activity_at; callers treat failure as
// warning-level only.
func (r *UserRepository) TouchActivity(ctx context.Context, userID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET last_activity_at = NOW() WHERE id = $1`, userID)
	return database.MapPostgresError(err)
}

// PromoteAdmin elevates a user to the admin role.
func (r *UserRepository) PromoteAdmin(ctx context.Context, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role = $2, approved = TRUE, updated_at = NOW() WHERE id = $1`,
		userID, models.RoleAdmin)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// CountAdmins returns the number of admin users.
func (r *UserRepository) CountAdmins(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`, models.RoleAdmin).Scan(&count)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return count, nil
}
