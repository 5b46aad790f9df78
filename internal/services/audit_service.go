package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
	pkglogger "github.com/ignitionhq/ignition/pkg/logger"
)

// AuditSink receives one audit record. Sinks must not surface failures to
// the business operation that emitted the record.
type AuditSink interface {
	Write(ctx context.Context, record *models.AuditLog)
}

// AuditService fans every record out to all configured sinks (database row
// plus structured log by default). A failing sink never rolls back or fails
// the transaction that invoked it.
type AuditService struct {
	sinks []AuditSink
}

func NewAuditService(sinks ...AuditSink) *AuditService {
	return &AuditService{sinks: sinks}
}

// Record fans one event out to every sink.
func (s *AuditService) Record(ctx context.Context, record *models.AuditLog) {
	for _, sink := range s.sinks {
		sink.Write(ctx, record)
	}
}

// Event is a convenience wrapper building the record from parts.
func (s *AuditService) Event(ctx context.Context, eventType string, actorID *uuid.UUID, resourceType, resourceID, action string, success bool, ip, userAgent *string, metadata models.AuditMetadata) {
	var rt, rid *string
	if resourceType != "" {
		rt = &resourceType
	}
	if resourceID != "" {
		rid = &resourceID
	}
	s.Record(ctx, &models.AuditLog{
		EventType:    eventType,
		ActorID:      actorID,
		ResourceType: rt,
		ResourceID:   rid,
		Action:       action,
		Success:      success,
		IPAddress:    ip,
		UserAgent:    userAgent,
		Metadata:     metadata,
	})
}

// AuditLogStore is the durable sink's persistence surface.
type AuditLogStore interface {
	Create(ctx context.Context, log *models.AuditLog) (*models.AuditLog, error)
}

// DBAuditSink persists records to the audit_log table.
type DBAuditSink struct {
	repo   AuditLogStore
	logger *slog.Logger
}

func NewDBAuditSink(repo AuditLogStore, logger *slog.Logger) *DBAuditSink {
	return &DBAuditSink{repo: repo, logger: logger}
}

func (s *DBAuditSink) Write(ctx context.Context, record *models.AuditLog) {
	if _, err := s.repo.Create(ctx, record); err != nil {
		// Non-critical: the business operation already committed.
		s.logger.Error("failed to persist audit record",
			slog.String("event_type", record.EventType),
			slog.Any("error", err))
	}
}

// LogAuditSink mirrors records onto the structured log stream.
type LogAuditSink struct {
	audit *pkglogger.AuditLogger
}

func NewLogAuditSink(audit *pkglogger.AuditLogger) *LogAuditSink {
	return &LogAuditSink{audit: audit}
}

func (s *LogAuditSink) Write(ctx context.Context, record *models.AuditLog) {
	event := pkglogger.AuditEvent{
		EventType: record.EventType,
		Action:    record.Action,
		Success:   record.Success,
	}
	if record.ActorID != nil {
		event.ActorID = record.ActorID.String()
	}
	if record.ResourceType != nil {
		event.ResourceType = *record.ResourceType
	}
	if record.ResourceID != nil {
		event.ResourceID = *record.ResourceID
	}
	if record.IPAddress != nil {
		event.IPAddress = *record.IPAddress
	}
	if record.UserAgent != nil {
		event.UserAgent = *record.UserAgent
	}
	s.audit.Log(ctx, event)
}
