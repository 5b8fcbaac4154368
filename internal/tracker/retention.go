package tracker

import (
	"context"
	"time"

	"github.com/littleCareless/dish-tab-time/internal/metrics"
	"github.com/littleCareless/dish-tab-time/internal/policy"
	"github.com/littleCareless/dish-tab-time/internal/storage"
	"github.com/rs/zerolog"
)

// Sweeper removes attribution data older than the retention window.
// Keys carry a TTL as a backstop; the sweeper keeps the key space tidy
// without waiting for expiry.
type Sweeper struct {
	records       storage.RecordStore
	retentionDays int
	clock         policy.Clock
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewSweeper creates a retention Sweeper
func NewSweeper(records storage.RecordStore, retentionDays int, clock policy.Clock, logger zerolog.Logger) *Sweeper {
	if retentionDays <= 0 {
		retentionDays = 90
	}

	return &Sweeper{
		records:       records,
		retentionDays: retentionDays,
		clock:         clock,
		logger:        logger.With().Str("component", "retention").Logger(),
		stopChan:      make(chan struct{}),
	}
}

// Start runs an initial sweep and then sweeps shortly after each
// midnight. Blocks until Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info().
		Int("retention_days", s.retentionDays).
		Msg("Starting retention sweeper")

	s.sweep(ctx)

	for {
		next := s.nextRun()
		timer := time.NewTimer(time.Until(next))

		select {
		case <-timer.C:
			s.sweep(ctx)
		case <-s.stopChan:
			timer.Stop()
			s.logger.Info().Msg("Retention sweeper stopped")
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Stop stops the sweeper
func (s *Sweeper) Stop() {
	close(s.stopChan)
}

// nextRun is shortly after the next local midnight
func (s *Sweeper) nextRun() time.Time {
	now := s.clock.Now()
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 5, 0, 0, now.Location())
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := storage.DayKey(s.clock.Now().AddDate(0, 0, -s.retentionDays))

	deleted, err := s.records.DeleteDaysBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error().Err(err).Str("cutoff", cutoff).Msg("Retention sweep failed")
		return
	}

	if deleted > 0 {
		metrics.RetentionDeletedDaysTotal.Add(float64(deleted))
		s.logger.Info().
			Int("days", deleted).
			Str("cutoff", cutoff).
			Msg("Retention sweep removed old days")
	}
}
