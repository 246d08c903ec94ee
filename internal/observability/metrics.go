// Package observability carries the platform's ambient instrumentation:
// Prometheus metrics and the composite health checker the gateway and
// recovery worker expose alongside their domain routes.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreledger_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "coreledger_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	TransferAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_transfer_attempts_total",
			Help: "Total number of wallet transfer attempts",
		},
		[]string{"status"},
	)

	TransferDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreledger_transfer_duration_seconds",
			Help:    "Wallet transfer processing duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"status"},
	)

	BonusClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_bonus_claims_total",
			Help: "Total number of bonus claim attempts",
		},
		[]string{"status"},
	)

	WalletBalanceTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "coreledger_wallet_balance_total",
			Help: "Total wallet balance across all users, in minor units",
		},
		[]string{"currency"},
	)

	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coreledger_database_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation", "collection"},
	)

	CacheHitTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_cache_hit_total",
			Help: "Total cache hits",
		},
		[]string{"cache"},
	)

	CacheMissTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_cache_miss_total",
			Help: "Total cache misses",
		},
		[]string{"cache"},
	)

	RecoveryReplaysTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coreledger_recovery_replays_total",
			Help: "Total number of stuck-operation recovery replays",
		},
		[]string{"operation_type", "outcome"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency for every route except
// /metrics itself.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		start := time.Now()
		wrapped := newResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.statusCode)
		path := normalizePath(r.URL.Path)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func normalizePath(path string) string {
	if len(path) > 50 {
		return path[:50]
	}
	return path
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordDBOperation(operation, collection string, duration time.Duration) {
	DatabaseOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

func RecordCacheHit(cache string) {
	CacheHitTotal.WithLabelValues(cache).Inc()
}

func RecordCacheMiss(cache string) {
	CacheMissTotal.WithLabelValues(cache).Inc()
}

func RecordTransferAttempt(status string) {
	TransferAttemptsTotal.WithLabelValues(status).Inc()
}

func RecordTransferDuration(status string, duration time.Duration) {
	TransferDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordBonusClaim(status string) {
	BonusClaimsTotal.WithLabelValues(status).Inc()
}

func RecordRecoveryReplay(operationType, outcome string) {
	RecoveryReplaysTotal.WithLabelValues(operationType, outcome).Inc()
}
