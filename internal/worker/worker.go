// Package worker executes filter check jobs.
package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
	"github.com/jbellec/marketwatch/internal/match"
	"github.com/jbellec/marketwatch/internal/metrics"
)

// Completer is notified when a job finishes so the filter can be returned
// to the schedulable set. The scheduler satisfies this interface.
type Completer interface {
	JobDone(ctx context.Context, filterID, userID string)
}

// Config controls Worker behavior.
type Config struct {
	// FetchTimeout bounds each marketplace fetch. A timed-out fetch is a
	// transient failure, retried on the filter's next scheduled tick.
	FetchTimeout time.Duration
}

// Worker consumes check jobs and runs the fetch → match → dedup → dispatch
// pipeline. Failures in one job never affect another.
type Worker struct {
	queue      alert.Queue
	fetcher    alert.Fetcher
	dedup      alert.DedupStore
	quota      alert.QuotaLedger
	dispatcher alert.Dispatcher
	completer  Completer
	idGen      alert.IDGenerator
	clock      alert.Clock
	cfg        Config
	logger     *zap.Logger

	streakMu sync.Mutex
	streaks  map[string]int
}

// New constructs a Worker.
func New(
	queue alert.Queue,
	fetcher alert.Fetcher,
	dedup alert.DedupStore,
	quota alert.QuotaLedger,
	dispatcher alert.Dispatcher,
	completer Completer,
	idGen alert.IDGenerator,
	clock alert.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:      queue,
		fetcher:    fetcher,
		dedup:      dedup,
		quota:      quota,
		dispatcher: dispatcher,
		completer:  completer,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
		streaks:    make(map[string]int),
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) processJob(ctx context.Context, job alert.CheckJob) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer w.completer.JobDone(ctx, job.FilterID, job.UserID)

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	listings, err := w.fetcher.Fetch(fetchCtx, job.Criteria)
	cancel()
	if err != nil {
		streak := w.bumpStreak(job.FilterID)
		metrics.ObserveCheck("fetch_failed")
		w.logger.Warn("fetch failed",
			zap.String("filter_id", job.FilterID),
			zap.Int("failure_streak", streak),
			zap.Error(err),
		)
		return
	}
	w.resetStreak(job.FilterID)

	matches := match.Select(job.Criteria, listings)
	delivered, failed := 0, 0
	for _, listing := range matches {
		switch w.handleMatch(ctx, job, listing) {
		case matchDelivered:
			delivered++
		case matchFailed:
			failed++
		}
	}

	outcome := "succeeded"
	if failed > 0 {
		outcome = "failed"
	}
	metrics.ObserveCheck(outcome)
	w.logger.Debug("check completed",
		zap.String("filter_id", job.FilterID),
		zap.Int("candidates", len(listings)),
		zap.Int("matches", len(matches)),
		zap.Int("alerts", delivered),
	)
}

type matchResult int

const (
	matchSkipped matchResult = iota
	matchDelivered
	matchFailed
)

func (w *Worker) handleMatch(ctx context.Context, job alert.CheckJob, listing alert.Listing) matchResult {
	now := w.clock.Now()
	wasNew, err := w.dedup.MarkSeen(ctx, job.FilterID, listing.ID, now)
	if err != nil {
		w.logger.Error("dedup mark failed",
			zap.String("filter_id", job.FilterID),
			zap.String("listing_id", listing.ID),
			zap.Error(err),
		)
		return matchFailed
	}
	if !wasNew {
		return matchSkipped
	}

	if !w.quota.TryReserveAlert(job.UserID) {
		metrics.ObserveQuotaRejection("alert")
		w.logger.Info("alert dropped by daily quota",
			zap.String("filter_id", job.FilterID),
			zap.String("user_id", job.UserID),
			zap.String("listing_id", listing.ID),
		)
		return matchSkipped
	}

	id, err := w.idGen.NewID()
	if err != nil {
		w.logger.Error("generate alert id failed", zap.Error(err))
		w.unclaim(ctx, job.FilterID, listing.ID)
		return matchFailed
	}
	a := alert.Alert{
		ID:        id,
		FilterID:  job.FilterID,
		UserID:    job.UserID,
		ListingID: listing.ID,
		Title:     listing.Title,
		Price:     listing.Price,
		URL:       listing.URL,
		CreatedAt: now,
	}
	if err := w.dispatcher.Deliver(ctx, a); err != nil {
		w.logger.Error("alert delivery failed",
			zap.String("alert_id", a.ID),
			zap.String("filter_id", a.FilterID),
			zap.Error(err),
		)
		w.unclaim(ctx, job.FilterID, listing.ID)
		return matchFailed
	}
	metrics.ObserveAlert()
	return matchDelivered
}

// unclaim releases the dedup record for a match that failed after MarkSeen,
// so the listing alerts on the filter's next cycle instead of being
// suppressed forever.
func (w *Worker) unclaim(ctx context.Context, filterID, listingID string) {
	if err := w.dedup.Unmark(ctx, filterID, listingID); err != nil {
		w.logger.Error("dedup unmark failed",
			zap.String("filter_id", filterID),
			zap.String("listing_id", listingID),
			zap.Error(err),
		)
	}
}

// FailureStreak reports consecutive fetch failures for a filter.
func (w *Worker) FailureStreak(filterID string) int {
	w.streakMu.Lock()
	defer w.streakMu.Unlock()
	return w.streaks[filterID]
}

func (w *Worker) bumpStreak(filterID string) int {
	w.streakMu.Lock()
	defer w.streakMu.Unlock()
	w.streaks[filterID]++
	return w.streaks[filterID]
}

func (w *Worker) resetStreak(filterID string) {
	w.streakMu.Lock()
	defer w.streakMu.Unlock()
	delete(w.streaks, filterID)
}
