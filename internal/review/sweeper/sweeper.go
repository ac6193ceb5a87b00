// internal/review/sweeper/sweeper.go
package sweeper

import (
	"context"
	"database/sql"
	"time"

	"poultry-review/internal/common/logger"
	"poultry-review/internal/common/metrics"
	"poultry-review/internal/review/store"
)

// Sweeper periodically flags queue entries whose SLA deadline has passed.
// Flagging is a bulk idempotent update: already-overdue entries are skipped,
// so concurrent sweeps and restarts are harmless.
type Sweeper struct {
	db       *sql.DB
	queue    *store.QueueStore
	interval time.Duration
	logger   logger.Logger
}

func New(db *sql.DB, queue *store.QueueStore, interval time.Duration, log logger.Logger) *Sweeper {
	return &Sweeper{
		db:       db,
		queue:    queue,
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"component": "sla-sweeper"}),
	}
}

// Run sweeps on a fixed interval until ctx is cancelled. It sweeps once
// immediately so a restart does not wait a full interval to catch up.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("SLA sweeper started", map[string]interface{}{
		"interval": s.interval.String(),
	})

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("SLA sweeper stopped", nil)
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// Sweep runs a single pass and returns the number of entries newly flagged.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	swept, err := s.queue.MarkOverdue(ctx, s.db, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	metrics.EntriesSwept.Add(float64(swept))
	return swept, nil
}

func (s *Sweeper) sweep(ctx context.Context) {
	swept, err := s.Sweep(ctx)
	if err != nil {
		s.logger.WithError(err).Error("sweep failed", nil)
		return
	}
	if swept > 0 {
		s.logger.Info("flagged overdue entries", map[string]interface{}{
			"count": swept,
		})
	}
}
