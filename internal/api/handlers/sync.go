package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/storesync/storefront-sync-backend/internal/api/dto"
	"github.com/storesync/storefront-sync-backend/internal/application/service"
	appsync "github.com/storesync/storefront-sync-backend/internal/application/sync"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

// SyncHandler handles sync run HTTP requests.
type SyncHandler struct {
	*Base
	syncService *service.SyncService
	settings    func() config.SyncSettings
}

// NewSyncHandler creates a new sync handler. settings supplies the
// current sync configuration at request time.
func NewSyncHandler(syncService *service.SyncService, settings func() config.SyncSettings) *SyncHandler {
	return &SyncHandler{
		Base:        &Base{},
		syncService: syncService,
		settings:    settings,
	}
}

// StartSync handles POST /api/sync/{entity}. It starts a run and
// streams its progress back as NDJSON, one event per line, ending with
// exactly one terminal event. Closing the connection cancels the run
// at the next batch boundary. Pass ?full=true to ignore the checkpoint
// and resync everything.
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	req := service.RunRequest{
		Entity: entity,
		Full:   ParseBoolParam(r, "full", false),
	}

	// Headers must be in place before the run goroutine exists: its
	// first emitted line flushes them, and the response writer is not
	// safe for concurrent use. On failure no goroutine was started, so
	// WriteError can still replace the Content-Type.
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")

	run, err := h.syncService.StartSync(req, h.settings(), appsync.NewNDJSONSink(w))
	if err != nil {
		w.Header().Del("Cache-Control")
		if errors.Is(err, service.ErrSyncInProgress) {
			h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
			return
		}
		h.WriteError(w, http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	select {
	case <-r.Context().Done():
		// client went away; stop the run and wait for its terminal
		// event so the goroutine is not left dangling
		_ = h.syncService.Cancel(run.ID)
		<-run.Done()
	case <-run.Done():
	}
}

// GetRun handles GET /api/sync/{runId}.
func (h *SyncHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	run, err := h.syncService.GetRun(runID)
	if err != nil {
		h.WriteError(w, http.StatusNotFound, dto.NotFoundError("sync run"))
		return
	}
	h.WriteJSON(w, http.StatusOK, toRunResponse(run))
}

// ListActiveRuns handles GET /api/sync/active.
func (h *SyncHandler) ListActiveRuns(w http.ResponseWriter, r *http.Request) {
	runs := h.syncService.ListActiveRuns()

	response := dto.ActiveRunsResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}
	h.WriteJSON(w, http.StatusOK, response)
}

// CancelRun handles DELETE /api/sync/{runId}.
func (h *SyncHandler) CancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runId")
	if err := h.syncService.Cancel(runID); err != nil {
		h.WriteError(w, http.StatusConflict, dto.ConflictError(err.Error()))
		return
	}
	h.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "sync run cancelled"})
}

// toRunResponse converts a service run to an API response.
func toRunResponse(run *service.SyncRun) dto.RunResponse {
	response := dto.RunResponse{
		RunID:     run.ID,
		Entity:    run.Entity,
		Status:    string(run.Status),
		Full:      run.Full,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		Progress: dto.RunProgressResponse{
			Total:      run.Counters.Total,
			Scanned:    run.Counters.Scanned,
			Processed:  run.Counters.Processed,
			Created:    run.Counters.Created,
			Skipped:    run.Counters.Skipped,
			Failed:     run.Counters.Failed,
			LastUpdate: run.Counters.LastUpdate.Format(time.RFC3339),
		},
	}
	if run.CompletedAt != nil {
		completedAt := run.CompletedAt.Format(time.RFC3339)
		response.CompletedAt = &completedAt
	}
	if run.Error != nil {
		errMsg := run.Error.Error()
		response.Error = &errMsg
	}
	return response
}
