package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/auth"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/ignitionhq/ignition/internal/repositories"
	"github.com/ignitionhq/ignition/internal/services"
	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// AdminHandler serves the admin surface: audit inspection and forced vault
// locks. Routes mount behind the admin guard.
type AdminHandler struct {
	auditLogs *repositories.AuditLogRepository
	vaults    *services.VaultService
	logger    *slog.Logger
}

func NewAdminHandler(auditLogs *repositories.AuditLogRepository, vaults *services.VaultService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		auditLogs: auditLogs,
		vaults:    vaults,
		logger:    logger,
	}
}

// AuditLogEntry is the JSON shape of one audit record.
type AuditLogEntry struct {
	ID           string               `json:"id"`
	EventType    string               `json:"event_type"`
	ActorID      *string              `json:"actor_id,omitempty"`
	ResourceType *string              `json:"resource_type,omitempty"`
	ResourceID   *string              `json:"resource_id,omitempty"`
	Action       string               `json:"action"`
	Success      bool                 `json:"success"`
	IPAddress    *string              `json:"ip_address,omitempty"`
	Metadata     models.AuditMetadata `json:"metadata,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

// AuditLogListResponse wraps a page of audit records.
type AuditLogListResponse struct {
	Logs   []AuditLogEntry `json:"logs"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListAuditLogs handles GET /api/admin/audit with optional actor_id and
// event_type filters.
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, offset := httpapi.ParsePagination(r)
	query := r.URL.Query()

	var (
		logs []*models.AuditLog
		err  error
	)
	switch {
	case query.Get("actor_id") != "":
		actorID, parseErr := uuid.Parse(query.Get("actor_id"))
		if parseErr != nil {
			httpapi.WriteBadRequest(w, "actor_id must be a UUID")
			return
		}
		logs, err = h.auditLogs.ListByActor(r.Context(), actorID, limit, offset)
	case query.Get("event_type") != "":
		logs, err = h.auditLogs.ListByEventType(r.Context(), query.Get("event_type"), limit, offset)
	default:
		logs, err = h.auditLogs.ListRecent(r.Context(), limit, offset)
	}
	if err != nil {
		h.logger.Error("failed to list audit logs", slog.Any("error", err))
		httpapi.WriteInternalError(w, "Failed to list audit logs")
		return
	}

	entries := make([]AuditLogEntry, 0, len(logs))
	for _, log := range logs {
		entry := AuditLogEntry{
			ID:           log.ID.String(),
			EventType:    log.EventType,
			ResourceType: log.ResourceType,
			ResourceID:   log.ResourceID,
			Action:       log.Action,
			Success:      log.Success,
			IPAddress:    log.IPAddress,
			Metadata:     log.Metadata,
			CreatedAt:    log.CreatedAt,
		}
		if log.ActorID != nil {
			id := log.ActorID.String()
			entry.ActorID = &id
		}
		entries = append(entries, entry)
	}

	httpapi.WriteJSON(w, http.StatusOK, AuditLogListResponse{
		Logs:   entries,
		Limit:  limit,
		Offset: offset,
	})
}

// ForceLockVault handles POST /api/admin/users/{userID}/vault/lock: an
// admin-reason lock on another user's vault.
func (h *AdminHandler) ForceLockVault(w http.ResponseWriter, r *http.Request) {
	ac := auth.FromRequest(r)

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httpapi.WriteBadRequest(w, "userID must be a UUID")
		return
	}

	device := "admin:" + ac.UserID.String()
	vault, err := h.vaults.Lock(r.Context(), userID, models.LockReasonAdmin, &device, true)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			httpapi.WriteNotFound(w, "Vault not found")
			return
		}
		h.logger.Error("admin vault lock failed",
			slog.String("target_user_id", userID.String()),
			slog.Any("error", err))
		httpapi.WriteInternalError(w, "Failed to lock vault")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, vaultStatus(vault))
}
