package worker

import (
	"context"
	"time"

	"toursync/internal/domain"
	"toursync/internal/events"
	"toursync/internal/metrics"
	"toursync/internal/models"

	"github.com/rs/zerolog"
)

// Cleaner is the store operation the sweep runs.
type Cleaner interface {
	CleanupOldTours(ctx context.Context) (int64, error)
}

// RetentionWorker removes finished tours older than the retention age on a
// fixed interval. Failures are logged and wait for the next tick.
type RetentionWorker struct {
	cleaner  Cleaner
	events   domain.EventPublisher
	interval time.Duration
	logger   zerolog.Logger
}

func NewRetentionWorker(cleaner Cleaner, publisher domain.EventPublisher, interval time.Duration, logger *zerolog.Logger) *RetentionWorker {
	if interval <= 0 {
		interval = models.DefaultRetentionInterval
	}
	w := &RetentionWorker{cleaner: cleaner, events: publisher, interval: interval, logger: zerolog.Nop()}
	if logger != nil {
		w.logger = logger.With().Str("component", "retention").Logger()
	}
	return w
}

// Start sweeps immediately, then on every interval until ctx is done.
func (w *RetentionWorker) Start(ctx context.Context) {
	w.logger.Info().Dur("interval", w.interval).Msg("retention worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("retention worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (w *RetentionWorker) RunOnce(ctx context.Context) (int64, error) {
	removed, err := w.cleaner.CleanupOldTours(ctx)
	metrics.ObserveRetention(removed, err)
	if err != nil {
		return 0, err
	}
	if removed > 0 && w.events != nil {
		if perr := w.events.PublishJSON(events.EventToursCleaned, events.ToursCleanedPayload{Removed: removed}); perr != nil {
			w.logger.Warn().Err(perr).Msg("publish tours_cleaned")
		}
	}
	return removed, nil
}

func (w *RetentionWorker) sweep(ctx context.Context) {
	removed, err := w.RunOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("retention sweep failed")
		}
		return
	}
	w.logger.Info().Int64("removed", removed).Msg("retention sweep finished")
}
