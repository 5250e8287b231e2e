// Package service manages sync runs: single-flight per entity stream,
// a registry of active and recent runs, cancellation, and cleanup of
// runs that finished or went stale.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	appsync "github.com/storesync/storefront-sync-backend/internal/application/sync"
	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

// RunStatus represents the current state of a sync run.
type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
	StatusCancelled RunStatus = "cancelled"
)

// Run staleness thresholds
const (
	// DefaultRunStaleThreshold is how long a run can go without progress
	// before being considered hung or crashed.
	DefaultRunStaleThreshold = 30 * time.Minute

	// DefaultRunMaxDuration is the maximum time a run can take before
	// being forcefully marked as failed.
	DefaultRunMaxDuration = 2 * time.Hour
)

// ErrSyncInProgress is returned when a run is requested for an entity
// that already has one in flight.
var ErrSyncInProgress = errors.New("sync already running")

// RunRequest holds parameters for starting a sync run.
type RunRequest struct {
	Entity string // "products", "inventory", "orders"
	Full   bool   // ignore the checkpoint and replay everything
}

// RunCounters holds real-time progress of a run.
type RunCounters struct {
	Total      int       `json:"total"`
	Scanned    int       `json:"scanned"`
	Processed  int       `json:"processed"`
	Created    int       `json:"created"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// SyncRun represents a running or completed sync run. Fields are
// guarded by the service's registry mutex.
type SyncRun struct {
	ID          string
	Entity      string
	Status      RunStatus
	Full        bool
	StartedAt   time.Time
	CompletedAt *time.Time
	Counters    RunCounters
	Error       error

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Done is closed when the run's goroutine has fully finished.
func (r *SyncRun) Done() <-chan struct{} { return r.done }

// Runner executes one sync run to completion. Satisfied by the
// orchestrator.
type Runner interface {
	Run(ctx context.Context, entity, runID string, settings config.SyncSettings, opts appsync.RunOptions, sink appsync.EventSink) error
}

// SyncService manages sync runs.
type SyncService struct {
	runner Runner
	logger *slog.Logger

	// Run registry
	runs      map[string]*SyncRun
	runsMutex sync.RWMutex

	// Entity-level locking (only one run per entity stream at a time)
	entityLocks map[string]*sync.Mutex
	locksMutex  sync.Mutex

	// Background cleanup
	cleanupStop chan struct{}
	cleanupDone chan struct{}
}

// NewSyncService creates a new sync service.
func NewSyncService(runner Runner, logger *slog.Logger) *SyncService {
	return &SyncService{
		runner:      runner,
		logger:      logger,
		runs:        make(map[string]*SyncRun),
		entityLocks: make(map[string]*sync.Mutex),
	}
}

// StartSync starts a sync run asynchronously and returns its handle.
// The run uses context.Background() as its parent so it survives the
// HTTP request that started it; use Cancel to stop it. Progress flows
// to sink as the run advances; the registry tracks counters regardless
// of what the caller does with the sink.
func (s *SyncService) StartSync(req RunRequest, settings config.SyncSettings, sink appsync.EventSink) (*SyncRun, error) {
	if !appsync.ValidEntity(req.Entity) {
		return nil, fmt.Errorf("invalid entity: %s", req.Entity)
	}

	if !s.tryLockEntity(req.Entity) {
		return nil, fmt.Errorf("%w for entity %s", ErrSyncInProgress, req.Entity)
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	run := &SyncRun{
		ID:         runID,
		Entity:     req.Entity,
		Status:     StatusPending,
		Full:       req.Full,
		StartedAt:  time.Now(),
		Counters:   RunCounters{LastUpdate: time.Now()},
		cancelFunc: cancel,
		done:       make(chan struct{}),
	}

	s.runsMutex.Lock()
	s.runs[runID] = run
	s.runsMutex.Unlock()

	tracked := appsync.MultiSink{sinkFunc(func(e appsync.ProgressEvent) { s.observe(runID, e) })}
	if sink != nil {
		tracked = append(tracked, sink)
	}

	go s.execute(runCtx, run, settings, tracked)

	s.logger.Info("sync run started",
		"run_id", runID,
		"entity", req.Entity,
		"full", req.Full,
	)

	return run, nil
}

// RunBlocking starts a run and waits for it to finish, canceling it
// when ctx ends. This is the entry point the poller uses, so polled
// runs share single-flight with manual ones.
func (s *SyncService) RunBlocking(ctx context.Context, entity string, settings config.SyncSettings) error {
	run, err := s.StartSync(RunRequest{Entity: entity}, settings, &appsync.LogSink{Logger: s.logger})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		if err := s.Cancel(run.ID); err == nil {
			<-run.Done()
		}
		return ctx.Err()
	case <-run.Done():
		s.runsMutex.RLock()
		defer s.runsMutex.RUnlock()
		return run.Error
	}
}

// GetRun retrieves a run by ID.
func (s *SyncService) GetRun(runID string) (*SyncRun, error) {
	s.runsMutex.RLock()
	defer s.runsMutex.RUnlock()

	run, exists := s.runs[runID]
	if !exists {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return run, nil
}

// ListActiveRuns returns all pending or running runs.
func (s *SyncService) ListActiveRuns() []*SyncRun {
	s.runsMutex.RLock()
	defer s.runsMutex.RUnlock()

	var active []*SyncRun
	for _, run := range s.runs {
		if run.Status == StatusPending || run.Status == StatusRunning {
			active = append(active, run)
		}
	}
	return active
}

// Cancel cancels a pending or running run.
func (s *SyncService) Cancel(runID string) error {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return fmt.Errorf("run not found: %s", runID)
	}
	if run.Status != StatusPending && run.Status != StatusRunning {
		return fmt.Errorf("run cannot be cancelled: status=%s", run.Status)
	}

	run.cancelFunc()
	run.Status = StatusCancelled
	now := time.Now()
	run.CompletedAt = &now
	run.Counters.LastUpdate = now

	s.logger.Info("sync run cancelled", "run_id", runID, "entity", run.Entity)
	return nil
}

// execute drives the run in its background goroutine.
func (s *SyncService) execute(ctx context.Context, run *SyncRun, settings config.SyncSettings, sink appsync.EventSink) {
	defer close(run.done)
	defer s.unlockEntity(run.Entity)

	s.setStatus(run.ID, StatusRunning)

	err := s.runner.Run(ctx, run.Entity, run.ID, settings, appsync.RunOptions{Full: run.Full}, sink)

	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()
	now := time.Now()

	switch {
	case err == nil:
		run.Status = StatusCompleted
		run.CompletedAt = &now
	case errors.Is(err, context.Canceled):
		// already marked by Cancel; stale-marking may also have fired
		if run.Status == StatusPending || run.Status == StatusRunning {
			run.Status = StatusCancelled
			run.CompletedAt = &now
		}
	default:
		run.Status = StatusFailed
		run.CompletedAt = &now
		run.Error = err
		s.logger.Error("sync run failed", "run_id", run.ID, "entity", run.Entity, "error", err)
	}
}

// observe folds a progress event into the run's counters.
func (s *SyncService) observe(runID string, event appsync.ProgressEvent) {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	run, exists := s.runs[runID]
	if !exists {
		return
	}
	run.Counters.Total = event.Total
	run.Counters.Scanned = event.Scanned
	run.Counters.Processed = event.Processed
	run.Counters.Created = event.Created
	run.Counters.Skipped = event.Skipped
	run.Counters.Failed = event.Failed
	run.Counters.LastUpdate = time.Now()
}

func (s *SyncService) setStatus(runID string, status RunStatus) {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	if run, exists := s.runs[runID]; exists && run.Status == StatusPending {
		run.Status = status
	}
}

// tryLockEntity attempts to acquire the single-flight lock for an
// entity stream.
func (s *SyncService) tryLockEntity(entity string) bool {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if _, exists := s.entityLocks[entity]; !exists {
		s.entityLocks[entity] = &sync.Mutex{}
	}
	return s.entityLocks[entity].TryLock()
}

// unlockEntity releases the single-flight lock for an entity stream.
func (s *SyncService) unlockEntity(entity string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.entityLocks[entity]; exists {
		lock.Unlock()
	}
}

// CleanupOldRuns removes finished runs older than maxAge from the
// registry.
func (s *SyncService) CleanupOldRuns(maxAge time.Duration) int {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, run := range s.runs {
		if run.Status == StatusCompleted || run.Status == StatusFailed || run.Status == StatusCancelled {
			if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
				delete(s.runs, id)
				removed++
			}
		}
	}

	if removed > 0 {
		s.logger.Debug("cleaned up old sync runs", "removed", removed)
	}
	return removed
}

// MarkStaleRunsAsFailed finds runs that appear stuck and fails them.
// A run is stale when it exceeded maxDuration, or when its counters
// have not moved for staleThreshold. This covers goroutine panics and
// genuinely hung remotes.
func (s *SyncService) MarkStaleRunsAsFailed(staleThreshold, maxDuration time.Duration) int {
	s.runsMutex.Lock()
	defer s.runsMutex.Unlock()

	now := time.Now()
	marked := 0
	for id, run := range s.runs {
		if run.Status != StatusRunning && run.Status != StatusPending {
			continue
		}

		var reason string
		switch {
		case now.Sub(run.StartedAt) > maxDuration:
			reason = fmt.Sprintf("exceeded max duration of %v", maxDuration)
		case now.Sub(run.Counters.LastUpdate) > staleThreshold:
			reason = fmt.Sprintf("no progress for %v", now.Sub(run.Counters.LastUpdate).Round(time.Second))
		default:
			continue
		}

		if run.cancelFunc != nil {
			run.cancelFunc()
		}
		run.Status = StatusFailed
		run.CompletedAt = &now
		run.Error = fmt.Errorf("run marked as stale: %s", reason)
		run.Counters.LastUpdate = now

		s.releaseEntityLockUnsafe(run.Entity)

		s.logger.Warn("marked stale run as failed",
			"run_id", id,
			"entity", run.Entity,
			"reason", reason,
			"started_at", run.StartedAt,
		)
		marked++
	}
	return marked
}

// releaseEntityLockUnsafe force-releases an entity lock. MUST only be
// called while holding runsMutex.
func (s *SyncService) releaseEntityLockUnsafe(entity string) {
	s.locksMutex.Lock()
	defer s.locksMutex.Unlock()

	if lock, exists := s.entityLocks[entity]; exists {
		if !lock.TryLock() {
			// held by the stale run's goroutine; leave it, the
			// deferred unlock fires when cancellation unwinds
			return
		}
		lock.Unlock()
	}
}

// StartBackgroundCleanup starts a goroutine that periodically marks
// stale runs as failed and drops old finished runs from the registry.
// Call StopBackgroundCleanup to stop it.
func (s *SyncService) StartBackgroundCleanup(checkInterval time.Duration) {
	s.cleanupStop = make(chan struct{})
	s.cleanupDone = make(chan struct{})

	go func() {
		defer close(s.cleanupDone)

		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.cleanupStop:
				return
			case <-ticker.C:
				if marked := s.MarkStaleRunsAsFailed(DefaultRunStaleThreshold, DefaultRunMaxDuration); marked > 0 {
					s.logger.Info("marked stale runs as failed", "count", marked)
				}
				s.CleanupOldRuns(24 * time.Hour)
			}
		}
	}()
}

// StopBackgroundCleanup stops the cleanup goroutine and waits for it.
func (s *SyncService) StopBackgroundCleanup() {
	if s.cleanupStop == nil {
		return
	}
	close(s.cleanupStop)
	<-s.cleanupDone
}

// sinkFunc adapts a function to the EventSink interface.
type sinkFunc func(appsync.ProgressEvent)

func (f sinkFunc) Emit(e appsync.ProgressEvent) { f(e) }
