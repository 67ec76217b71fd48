// Package scheduler decides when each filter is next checked.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
	"github.com/jbellec/marketwatch/internal/metrics"
)

// Config controls Scheduler behavior.
type Config struct {
	// Tick is the fixed scan interval.
	Tick time.Duration
	// MinInterval bounds the per-filter check interval from below,
	// protecting the marketplace from excessive load regardless of plan.
	MinInterval time.Duration
}

// Scheduler scans active filters on a fixed tick and enqueues a check job
// for each one that is due. A filter with a job in flight is never
// re-enqueued; JobDone returns it to the schedulable set with a fresh
// next-due timestamp derived from the owner's plan.
type Scheduler struct {
	filters alert.FilterStore
	quota   alert.QuotaLedger
	queue   alert.Queue
	clock   alert.Clock
	cfg     Config
	logger  *zap.Logger

	mu      sync.Mutex
	running map[string]struct{}
}

// New constructs a Scheduler.
func New(
	filters alert.FilterStore,
	quota alert.QuotaLedger,
	queue alert.Queue,
	clock alert.Clock,
	cfg Config,
	logger *zap.Logger,
) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		filters: filters,
		quota:   quota,
		queue:   queue,
		clock:   clock,
		cfg:     cfg,
		logger:  logger,
		running: make(map[string]struct{}),
	}
}

// Run drives the tick loop until the context finishes.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ScanOnce(ctx)
		}
	}
}

// ScanOnce performs a single due-filter scan. Exposed for tests and for an
// eager first pass at startup.
func (s *Scheduler) ScanOnce(ctx context.Context) {
	now := s.clock.Now()
	due, err := s.filters.ListDue(ctx, now)
	if err != nil {
		s.logger.Error("list due filters failed", zap.Error(err))
		return
	}
	for _, f := range due {
		if ctx.Err() != nil {
			return
		}
		s.maybeEnqueue(ctx, f, now)
	}
}

func (s *Scheduler) maybeEnqueue(ctx context.Context, f alert.Filter, now time.Time) {
	s.mu.Lock()
	if _, inFlight := s.running[f.ID]; inFlight {
		s.mu.Unlock()
		return
	}
	s.running[f.ID] = struct{}{}
	s.mu.Unlock()

	if !s.quota.TryReserveCheck(f.UserID) {
		// Budget exhausted: the filter stays due and is retried on a
		// later tick once the window rolls over.
		s.release(f.ID)
		metrics.ObserveQuotaRejection("check")
		s.logger.Debug("check deferred by quota",
			zap.String("filter_id", f.ID),
			zap.String("user_id", f.UserID),
		)
		return
	}

	job := alert.CheckJob{
		FilterID: f.ID,
		UserID:   f.UserID,
		Criteria: f.Criteria,
		Due:      f.NextDue,
		Enqueued: now,
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		// The check never started: return its budget unit along with
		// the in-flight slot.
		s.release(f.ID)
		s.quota.ReleaseCheck(f.UserID)
		s.logger.Error("enqueue check job failed", zap.String("filter_id", f.ID), zap.Error(err))
		return
	}
}

// JobDone marks a filter's in-flight job as finished and recomputes its
// next-due timestamp from the owner's plan budget. A filter deleted while
// its job ran simply drops out of scheduling.
func (s *Scheduler) JobDone(ctx context.Context, filterID, userID string) {
	defer s.release(filterID)

	now := s.clock.Now()
	next := now.Add(s.interval(userID))
	if err := s.filters.UpdateSchedule(ctx, filterID, now, next); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			return
		}
		s.logger.Error("update filter schedule failed", zap.String("filter_id", filterID), zap.Error(err))
	}
}

// interval derives the per-filter check interval from the plan's
// checks-per-minute budget, bounded below by the system-wide minimum.
func (s *Scheduler) interval(userID string) time.Duration {
	perMinute := s.quota.Limits(userID).MaxChecksPerMinute
	if perMinute <= 0 {
		perMinute = 1
	}
	interval := time.Minute / time.Duration(perMinute)
	if interval < s.cfg.MinInterval {
		interval = s.cfg.MinInterval
	}
	return interval
}

func (s *Scheduler) release(filterID string) {
	s.mu.Lock()
	delete(s.running, filterID)
	s.mu.Unlock()
}

// InFlight reports whether a filter currently has a job running. Used by
// tests to observe the at-most-one-in-flight invariant.
func (s *Scheduler) InFlight(filterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[filterID]
	return ok
}
