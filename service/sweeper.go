package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cura-labs/cura/internal/metrics"
	"github.com/cura-labs/cura/ports"
)

// NonceSweeper periodically evicts spent and expired nonce records
type NonceSweeper struct {
	nonces    ports.NonceStore
	scheduler ports.Scheduler
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewNonceSweeper creates a sweeper that runs every interval
func NewNonceSweeper(nonces ports.NonceStore, scheduler ports.Scheduler, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *NonceSweeper {
	return &NonceSweeper{
		nonces:    nonces,
		scheduler: scheduler,
		interval:  interval,
		metrics:   m,
		logger:    logger,
	}
}

// Start schedules sweeps until ctx is cancelled
func (s *NonceSweeper) Start(ctx context.Context) error {
	return s.scheduler.Every(ctx, s.interval, func(ctx context.Context) {
		s.SweepOnce(ctx)
	})
}

// SweepOnce runs a single sweep and returns the number of evicted records
func (s *NonceSweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.nonces.Sweep(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "nonce sweep failed", "error", err)
		return 0
	}
	if removed > 0 {
		s.metrics.NoncesSwept.Add(float64(removed))
		s.logger.DebugContext(ctx, "nonce sweep", "removed", removed)
	}
	return removed
}
