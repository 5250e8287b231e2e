package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/storesync/storefront-sync-backend/internal/infrastructure/config"
)

// RunFunc starts one sync run for an entity and blocks until it
// finishes. The service layer provides this so polled runs share the
// same single-flight guarantees as manual ones.
type RunFunc func(ctx context.Context, entity string, settings config.SyncSettings) error

// Poller triggers incremental runs for every entity stream on a fixed
// interval. Settings are re-read each cycle, so enabling, disabling or
// re-tuning the sync takes effect at the next tick without a restart.
type Poller struct {
	settings func() config.SyncSettings
	run      RunFunc
	logger   *slog.Logger

	// interval derives the wait between cycles from settings.
	// Overridable in tests.
	interval func(s config.SyncSettings) time.Duration
}

// NewPoller wires a poller. settings is called at every cycle boundary.
func NewPoller(settings func() config.SyncSettings, run RunFunc, logger *slog.Logger) *Poller {
	return &Poller{
		settings: settings,
		run:      run,
		logger:   logger,
		interval: func(s config.SyncSettings) time.Duration {
			return time.Duration(s.IntervalMinutes) * time.Minute
		},
	}
}

// Start runs the poll loop until ctx is canceled or the sync is
// disabled in settings.
func (p *Poller) Start(ctx context.Context) {
	go p.loop(ctx)
}

func (p *Poller) loop(ctx context.Context) {
	for {
		settings := p.settings().WithDefaults()
		if !settings.Enabled || settings.IntervalMinutes <= 0 {
			p.logger.Info("background sync disabled, poller stopping")
			return
		}

		timer := time.NewTimer(p.interval(settings))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		p.RunPollCycle(ctx)
	}
}

// RunPollCycle runs one incremental pass over every entity stream.
// A failed or already-running entity is logged and skipped; it never
// blocks the other streams, and its checkpoint stays where it was so
// the next cycle retries the same window.
func (p *Poller) RunPollCycle(ctx context.Context) {
	settings := p.settings().WithDefaults()
	for _, entity := range Entities {
		if err := ctx.Err(); err != nil {
			return
		}
		if err := p.run(ctx, entity, settings); err != nil {
			p.logger.Warn("poll cycle run failed", "entity", entity, "error", err)
		}
	}
}
