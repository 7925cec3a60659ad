// Package sweeper deletes listings that fell out of the retention window.
package sweeper

import (
	"context"
	"time"

	"sjsage522/listingworker/internal/metrics"
	"sjsage522/listingworker/logger"
	pkgerrors "sjsage522/listingworker/pkg/errors"
)

// DefaultMaxAgeDays is two 30-day months
const DefaultMaxAgeDays = 60

// Store is the part of the listing store the sweeper needs
type Store interface {
	CountScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error)
	DeleteScrapedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Result describes one sweep
type Result struct {
	Cutoff  time.Time
	Found   int64
	Deleted int64
}

// Sweeper removes listings whose scraped_at is older than the cutoff
type Sweeper struct {
	store      Store
	maxAgeDays int
	interval   time.Duration
	retry      time.Duration
	log        *logger.Logger
	now        func() time.Time
}

// New creates a sweeper. interval and retry only matter for Run.
func New(store Store, maxAgeDays int, interval, retry time.Duration) *Sweeper {
	if maxAgeDays <= 0 {
		maxAgeDays = DefaultMaxAgeDays
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retry <= 0 {
		retry = time.Hour
	}
	return &Sweeper{
		store:      store,
		maxAgeDays: maxAgeDays,
		interval:   interval,
		retry:      retry,
		log:        logger.ForSweeper(),
		now:        time.Now,
	}
}

// MaxAgeDays returns the configured retention window
func (s *Sweeper) MaxAgeDays() int {
	return s.maxAgeDays
}

// Sweep deletes every listing first scraped more than maxAgeDays ago
func (s *Sweeper) Sweep(ctx context.Context, maxAgeDays int) (Result, error) {
	result := Result{Cutoff: s.now().AddDate(0, 0, -maxAgeDays)}

	found, err := s.store.CountScrapedBefore(ctx, result.Cutoff)
	if err != nil {
		return result, pkgerrors.NewSweep("failed to count expired listings", err)
	}
	result.Found = found

	if found == 0 {
		s.log.Info().Time("cutoff", result.Cutoff).Msg("No expired listings")
		return result, nil
	}

	deleted, err := s.store.DeleteScrapedBefore(ctx, result.Cutoff)
	if err != nil {
		return result, pkgerrors.NewSweep("failed to delete expired listings", err)
	}
	result.Deleted = deleted
	metrics.SweptListings.Add(float64(deleted))

	event := s.log.Info()
	if deleted != found {
		event = s.log.Warn()
	}
	event.
		Time("cutoff", result.Cutoff).
		Int64("found", found).
		Int64("deleted", deleted).
		Msg("Swept expired listings")

	return result, nil
}

// Run sweeps immediately and then on every interval until ctx is cancelled.
// After a failed sweep the next attempt comes after the retry delay.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info().
		Int("max_age_days", s.maxAgeDays).
		Dur("interval", s.interval).
		Msg("Starting retention sweeper")

	for {
		wait := s.interval
		if _, err := s.Sweep(ctx, s.maxAgeDays); err != nil {
			wait = s.retry
			s.log.Error().Err(err).Dur("retry_in", wait).Msg("Retention sweep failed")
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.log.Info().Msg("Retention sweeper stopped")
			return ctx.Err()
		case <-timer.C:
		}
	}
}
