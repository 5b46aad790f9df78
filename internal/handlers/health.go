package handlers

import (
	"net/http"

	"github.com/ignitionhq/ignition/internal/database"
	"github.com/ignitionhq/ignition/pkg/httpapi"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	db *database.DB
}

func NewHealthHandler(db *database.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if err := h.db.HealthCheck(r.Context()); err != nil {
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	httpapi.WriteJSON(w, status, resp)
}
