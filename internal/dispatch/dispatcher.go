// Package dispatch persists new alerts and fans them out to live clients.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jbellec/marketwatch/internal/alert"
	"github.com/jbellec/marketwatch/internal/live"
)

// Config controls Dispatcher behavior.
type Config struct {
	// Topic is the publisher topic for downstream alert events. Empty
	// disables publication.
	Topic string
}

// Dispatcher delivers alerts: durable write first, then best-effort live
// push and downstream publication. Absence of a live connection is never
// an error; the alert stays retrievable via the history query.
type Dispatcher struct {
	filters   alert.FilterStore
	alerts    alert.AlertStore
	registry  *live.Registry
	publisher alert.Publisher
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Dispatcher. registry and publisher may be nil.
func New(
	filters alert.FilterStore,
	alerts alert.AlertStore,
	registry *live.Registry,
	publisher alert.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		filters:   filters,
		alerts:    alerts,
		registry:  registry,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Deliver persists the alert and attempts live delivery. Delivery for a
// filter deleted while its job was in flight becomes a no-op. A failed
// durable write aborts delivery and is returned to the caller.
func (d *Dispatcher) Deliver(ctx context.Context, a alert.Alert) error {
	if _, err := d.filters.GetFilter(ctx, a.FilterID); err != nil {
		if errors.Is(err, alert.ErrNotFound) {
			// Filter deleted mid-job; the alert is orphaned and dropped.
			d.logger.Debug("skipping alert for deleted filter",
				zap.String("filter_id", a.FilterID),
				zap.String("listing_id", a.ListingID),
			)
			return nil
		}
		return fmt.Errorf("load filter: %w", err)
	}

	if err := d.alerts.CreateAlert(ctx, a); err != nil {
		return fmt.Errorf("persist alert: %w", err)
	}

	if d.registry != nil {
		d.registry.Push(a)
	}

	if d.publisher != nil && d.cfg.Topic != "" {
		payload := map[string]any{
			"alert_id":   a.ID,
			"filter_id":  a.FilterID,
			"user_id":    a.UserID,
			"listing_id": a.ListingID,
			"title":      a.Title,
			"price":      a.Price,
			"url":        a.URL,
			"created_at": a.CreatedAt,
		}
		if _, err := d.publisher.Publish(ctx, d.cfg.Topic, payload); err != nil {
			// Downstream publication is best-effort; the alert is
			// already durable.
			d.logger.Warn("alert publish failed", zap.String("alert_id", a.ID), zap.Error(err))
		}
	}
	return nil
}
