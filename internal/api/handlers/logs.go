package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storesync/storefront-sync-backend/internal/api/dto"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

const defaultLogLimit = 50

// LogsHandler exposes the sync audit log.
type LogsHandler struct {
	*Base
	repo storage.Repository
}

// NewLogsHandler creates a new logs handler.
func NewLogsHandler(repo storage.Repository) *LogsHandler {
	return &LogsHandler{Base: &Base{}, repo: repo}
}

// List handles GET /api/logs and GET /api/logs/{entity}. Without an
// entity it returns records across all streams, newest first.
func (h *LogsHandler) List(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	limit := ParseIntParam(r, "limit", defaultLogLimit)

	records, err := h.repo.ListSyncLogs(entity, limit)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.SyncLogsResponse{
		Logs:  make([]dto.SyncLogEntry, 0, len(records)),
		Count: len(records),
	}
	for _, rec := range records {
		response.Logs = append(response.Logs, dto.SyncLogEntry{
			ID:        rec.ID,
			Entity:    rec.Entity,
			Direction: rec.Direction,
			Status:    rec.Status,
			Message:   rec.Message,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}
	h.WriteJSON(w, http.StatusOK, response)
}
