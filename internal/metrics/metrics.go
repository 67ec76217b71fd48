// Package metrics exposes Prometheus collectors for the alert service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	checksTotal          *prometheus.CounterVec
	alertsTotal          prometheus.Counter
	quotaRejectionsTotal *prometheus.CounterVec
	fetchDurationSeconds prometheus.Histogram
	fetchFailuresTotal   prometheus.Counter
	activeWorkers        prometheus.Gauge
	liveClients          prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		checksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketwatch_checks_total",
				Help: "Total filter checks processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		alertsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketwatch_alerts_total",
				Help: "Total alerts created and dispatched.",
			},
		)

		quotaRejectionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketwatch_quota_rejections_total",
				Help: "Total operations skipped by quota, labeled by kind.",
			},
			[]string{"kind"},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketwatch_fetch_duration_seconds",
				Help:    "Histogram of marketplace fetch latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
		)

		fetchFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "marketwatch_fetch_failures_total",
				Help: "Total transient marketplace fetch failures.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketwatch_active_workers",
				Help: "Number of workers currently processing a check job.",
			},
		)

		liveClients = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "marketwatch_live_clients",
				Help: "Number of connected websocket clients.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCheck increments the check counter for the given outcome.
func ObserveCheck(outcome string) {
	checksTotal.WithLabelValues(outcome).Inc()
}

// ObserveAlert increments the dispatched alert counter.
func ObserveAlert() {
	alertsTotal.Inc()
}

// ObserveQuotaRejection counts a quota-deferred operation ("check" or "alert").
func ObserveQuotaRejection(kind string) {
	quotaRejectionsTotal.WithLabelValues(kind).Inc()
}

// ObserveFetch records a marketplace fetch duration.
func ObserveFetch(duration time.Duration) {
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveFetchFailure increments the transient fetch failure counter.
func ObserveFetchFailure() {
	fetchFailuresTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// IncLiveClients increments the connected websocket clients gauge.
func IncLiveClients() {
	liveClients.Inc()
}

// DecLiveClients decrements the connected websocket clients gauge.
func DecLiveClients() {
	liveClients.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
