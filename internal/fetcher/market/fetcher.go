// Package market implements the marketplace catalog fetcher.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/jbellec/marketwatch/internal/alert"
	"github.com/jbellec/marketwatch/internal/metrics"
)

// Config controls the catalog client.
type Config struct {
	BaseURL       string
	UserAgent     string
	Timeout       time.Duration
	PerPage       int
	RatePerSecond float64
	RateBurst     int
}

// Fetcher retrieves candidate listings from the marketplace catalog API.
// All requests share one token bucket so the pipeline's aggregate request
// rate against the marketplace stays bounded no matter how many workers run.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	clock   alert.Clock
	logger  *zap.Logger
}

// New constructs a Fetcher.
func New(cfg Config, clock alert.Clock, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 96
	}
	limit := rate.Limit(cfg.RatePerSecond)
	if cfg.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		clock:   clock,
		logger:  logger,
	}
}

// Fetch performs one catalog search for the given criteria. Any transport,
// status, or decode problem is returned as a transient failure; the caller
// retries on the filter's next scheduled tick.
func (f *Fetcher) Fetch(ctx context.Context, criteria alert.Criteria) ([]alert.Listing, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, f.searchURL(criteria), nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := f.clock.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObserveFetchFailure()
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	metrics.ObserveFetch(f.clock.Now().Sub(start))

	if resp.StatusCode != http.StatusOK {
		metrics.ObserveFetchFailure()
		return nil, fmt.Errorf("catalog responded %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		metrics.ObserveFetchFailure()
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}

	listings := make([]alert.Listing, 0, len(payload.Items))
	skipped := 0
	now := f.clock.Now()
	for _, item := range payload.Items {
		listing, ok := item.toListing(now)
		if !ok {
			skipped++
			continue
		}
		listings = append(listings, listing)
	}
	if skipped > 0 {
		f.logger.Debug("skipped malformed catalog items", zap.Int("skipped", skipped))
	}
	return listings, nil
}

// searchURL builds the catalog query. Ordering is newest-first so fresh
// listings surface within one page.
func (f *Fetcher) searchURL(criteria alert.Criteria) string {
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(f.cfg.PerPage))
	params.Set("order", "newest_first")
	if criteria.Keywords.Defined() {
		params.Set("search_text", criteria.Keywords.Value)
	}
	if criteria.Brand.Defined() {
		params.Set("brand", criteria.Brand.Value)
	}
	if criteria.Category.Defined() {
		params.Set("category", criteria.Category.Value)
	}
	if criteria.MinPrice != nil {
		params.Set("price_from", strconv.FormatFloat(*criteria.MinPrice, 'f', -1, 64))
	}
	if criteria.MaxPrice != nil {
		params.Set("price_to", strconv.FormatFloat(*criteria.MaxPrice, 'f', -1, 64))
	}
	return f.cfg.BaseURL + "/catalog/items?" + params.Encode()
}

type searchResponse struct {
	Items []catalogItem `json:"items"`
}

// catalogItem mirrors the marketplace wire format. The price amount arrives
// as a decimal string.
type catalogItem struct {
	ID         json.Number `json:"id"`
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	Price      priceField  `json:"price"`
	BrandTitle string      `json:"brand_title"`
	SizeTitle  string      `json:"size_title"`
	Status     string      `json:"status"`
	Catalog    string      `json:"catalog_title"`
	Color      string      `json:"color1"`
}

type priceField struct {
	Amount string `json:"amount"`
}

func (i catalogItem) toListing(now time.Time) (alert.Listing, bool) {
	price, err := strconv.ParseFloat(i.Price.Amount, 64)
	if err != nil {
		return alert.Listing{}, false
	}
	listing := alert.Listing{
		ID:        i.ID.String(),
		Title:     i.Title,
		URL:       i.URL,
		Price:     price,
		Brand:     i.BrandTitle,
		Category:  i.Catalog,
		Size:      i.SizeTitle,
		Color:     i.Color,
		Condition: i.Status,
		FirstSeen: now,
	}
	if !listing.WellFormed() {
		return alert.Listing{}, false
	}
	return listing, true
}
