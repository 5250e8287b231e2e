package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storesync/storefront-sync-backend/internal/api/dto"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/storage"
)

// CheckpointsHandler exposes the durable sync cursors.
type CheckpointsHandler struct {
	*Base
	repo storage.Repository
}

// NewCheckpointsHandler creates a new checkpoints handler.
func NewCheckpointsHandler(repo storage.Repository) *CheckpointsHandler {
	return &CheckpointsHandler{Base: &Base{}, repo: repo}
}

// Get handles GET /api/checkpoints/{entity}.
func (h *CheckpointsHandler) Get(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	cp, err := h.repo.GetCheckpoint(entity)
	if err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	if cp == nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("checkpoint"))
		return
	}

	h.WriteJSON(w, http.StatusOK, dto.CheckpointResponse{
		Entity:       cp.Entity,
		LastPosition: cp.LastPosition,
		Total:        cp.Total,
		UpdatedAt:    cp.UpdatedAt.Format(time.RFC3339),
	})
}

// Clear handles DELETE /api/checkpoints/{entity}. The next run for the
// entity replays the whole stream; workers are idempotent so this is
// safe at any time.
func (h *CheckpointsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")

	if err := h.repo.ClearCheckpoint(entity); err != nil {
		h.WriteError(w, http.StatusInternalServerError, dto.InternalError())
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "checkpoint cleared"})
}
