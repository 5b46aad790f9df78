package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RoleRepository handles role and entitlement grants
type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(db *database.DB) *RoleRepository {
	return &RoleRepository{pool: db.Pool}
}

// GetEntitlements returns the role names granted to a user, skipping grants
// whose expires_at has passed.
func (r *RoleRepository) GetEntitlements(ctx context.Context, userID uuid.UUID) ([]string, error) {
	query := `
		SELECT r.name
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1
		  AND (ur.expires_at IS NULL OR ur.expires_at > NOW())
		ORDER BY r.name`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query entitlements: %w", err)
	}
	defer rows.Close()

	entitlements := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan entitlement: %w", err)
		}
		entitlements = append(entitlements, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entitlement rows: %w", err)
	}

	return entitlements, nil
}

// Grant assigns a role by name, creating the role row if needed.
func (r *RoleRepository) Grant(ctx context.Context, userID uuid.UUID, roleName string) error {
	query := `
		WITH role AS (
			INSERT INTO roles (name) VALUES ($2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		)
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM role
		ON CONFLICT (user_id, role_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, userID, roleName); err != nil {
		return database.MapPostgresError(err)
	}
	return nil
}
