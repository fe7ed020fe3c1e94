package artifact

import (
	"context"
	"fmt"
	"time"

	"github.com/spherical/doc-converter/internal/observability"
)

// DefaultReapInterval is the pause between sweeps.
const DefaultReapInterval = 60 * time.Second

// Sweeper evicts expired entries.
type Sweeper interface {
	Sweep() int
}

// Reaper periodically sweeps a store until its context is cancelled.
type Reaper struct {
	store    Sweeper
	interval time.Duration
	logger   *observability.Logger
}

// NewReaper creates a reaper for store.
func NewReaper(store Sweeper, interval time.Duration, logger *observability.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Reaper{store: store, interval: interval, logger: logger.WithOperation("reaper")}
}

// Run blocks, sweeping every interval, and returns when ctx is done.
// A failing sweep is logged and the loop continues.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info().Dur("interval", r.interval).Msg("Reaper started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reaper stopped")
			return
		case <-ticker.C:
			if n, err := r.sweep(); err != nil {
				r.logger.Error().Err(err).Msg("Sweep failed")
			} else if n > 0 {
				r.logger.Info().Int("evicted", n).Msg("Expired artifacts removed")
			}
		}
	}
}

func (r *Reaper) sweep() (n int, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sweep panicked: %v", rec)
		}
	}()
	return r.store.Sweep(), nil
}
