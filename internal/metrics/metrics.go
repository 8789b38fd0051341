package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     prometheus.CounterVec
	HTTPRequestDuration   prometheus.HistogramVec
	HTTPActiveConnections prometheus.GaugeVec

	// Cache metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec

	// Rate limiting metrics
	RateLimitExceededTotal prometheus.CounterVec

	// WebSocket metrics
	WebsocketConnections  prometheus.Gauge
	WebsocketMessagesSent prometheus.CounterVec

	// Domain metrics
	PurchasesTotal       prometheus.CounterVec
	PurchaseAmountCents  prometheus.CounterVec
	PayoutDecisionsTotal prometheus.CounterVec
	ReportsFiledTotal    prometheus.Counter
	MediaPlaysTotal      prometheus.Counter

	// Error metrics
	ErrorsTotal prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Initialize creates and registers all Prometheus metrics
func Initialize() *Metrics {
	once.Do(func() {
		instance = &Metrics{
			HTTPRequestsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "http_requests_total",
					Help: "Total number of HTTP requests",
				},
				[]string{"method", "path", "status"},
			),
			HTTPRequestDuration: *promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "http_request_duration_seconds",
					Help:    "HTTP request latency in seconds",
					Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
				},
				[]string{"method", "path", "status"},
			),
			HTTPActiveConnections: *promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "http_active_connections",
					Help: "Number of currently active HTTP connections",
				},
				[]string{"method", "path"},
			),

			CacheHitsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_hits_total",
					Help: "Total number of cache hits",
				},
				[]string{"cache_name"},
			),
			CacheMissesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "cache_misses_total",
					Help: "Total number of cache misses",
				},
				[]string{"cache_name"},
			),

			RateLimitExceededTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rate_limit_exceeded_total",
					Help: "Total number of rate limited requests",
				},
				[]string{"endpoint", "method"},
			),

			WebsocketConnections: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "websocket_connections",
					Help: "Number of currently connected WebSocket clients",
				},
			),
			WebsocketMessagesSent: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "websocket_messages_sent_total",
					Help: "Total number of WebSocket messages delivered",
				},
				[]string{"type"},
			),

			PurchasesTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "purchases_total",
					Help: "Total number of completed purchases",
				},
				[]string{"item_type"},
			),
			PurchaseAmountCents: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "purchase_amount_cents_total",
					Help: "Gross purchase volume in cents",
				},
				[]string{"item_type"},
			),
			PayoutDecisionsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "payout_decisions_total",
					Help: "Payout requests decided by moderators",
				},
				[]string{"decision"},
			),
			ReportsFiledTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "reports_filed_total",
					Help: "Total number of media reports filed",
				},
			),
			MediaPlaysTotal: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "media_plays_total",
					Help: "Total number of recorded media plays",
				},
			),

			ErrorsTotal: *promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "errors_total",
					Help: "Total number of application errors",
				},
				[]string{"error_type", "endpoint"},
			),
		}
	})
	return instance
}

// Get returns the metrics instance, initializing it if needed
func Get() *Metrics {
	if instance == nil {
		return Initialize()
	}
	return instance
}
