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

// AuditLogRepository handles audit log data access
type AuditLogRepository struct {
	pool *pgxpool.Pool
}

func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{pool: db.Pool}
}

const auditColumns = `id, event_type, actor_id, resource_type, resource_id,
	action, success, ip_address, user_agent, metadata, created_at`

func scanAuditLogRow(row rowScanner) (*models.AuditLog, error) {
	var log models.AuditLog
	err := row.Scan(
		&log.ID, &log.EventType, &log.ActorID, &log.ResourceType,
		&log.ResourceID, &log.Action, &log.Success, &log.IPAddress,
		&log.UserAgent, &log.Metadata, &log.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	return &log, nil
}

func scanAuditLogRows(rows pgx.Rows) ([]*models.AuditLog, error) {
	defer rows.Close()

	logs := make([]*models.AuditLog, 0)
	for rows.Next() {
		log, err := scanAuditLogRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log rows: %w", err)
	}
	return logs, nil
}

// Create appends a new audit record
func (r *AuditLogRepository) Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error) {
	query := `
		INSERT INTO audit_log (
			event_type, actor_id, resource_type, resource_id,
			action, success, ip_address, user_agent, metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + auditColumns

	result, err := scanAuditLogRow(r.pool.QueryRow(ctx, query,
		log.EventType, log.ActorID, log.ResourceType, log.ResourceID,
		log.Action, log.Success, log.IPAddress, log.UserAgent, log.Metadata,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create audit log: %w", err)
	}
	return result, nil
}

// ListRecent retrieves audit records newest first
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return scanAuditLogRows(rows)
}

// ListByActor retrieves audit records for one actor, newest first
func (r *AuditLogRepository) ListByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, actorID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return scanAuditLogRows(rows)
}

// ListByEventType retrieves audit records by event type, newest first
func (r *AuditLogRepository) ListByEventType(ctx context.Context, eventType string, limit, offset int) ([]*models.AuditLog, error) {
	query := `SELECT ` + auditColumns + `
		FROM audit_log
		WHERE event_type = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, eventType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	return scanAuditLogRows(rows)
}

// Cleanup removes audit records older than the retention window
func (r *AuditLogRepository) Cleanup(ctx context.Context, olderThanDays int) (int64, error) {
	query := `
		DELETE FROM audit_log
		WHERE created_at < CURRENT_TIMESTAMP - INTERVAL '1 day' * $1`

	result, err := r.pool.Exec(ctx, query, olderThanDays)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup audit logs: %w", err)
	}
	return result.RowsAffected(), nil
}
