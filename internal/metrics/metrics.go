// Package metrics provides Prometheus instrumentation for the betting
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// BetsPlacedTotal counts accepted stake placements, partitioned by side.
	BetsPlacedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saltybets_bets_placed_total",
		Help: "Total number of stakes placed",
	}, []string{"side"})

	// BetsCancelledTotal counts accepted stake cancellations.
	BetsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_bets_cancelled_total",
		Help: "Total number of stake cancellations",
	})

	// BetsRejectedTotal counts rejected placements by reason.
	BetsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saltybets_bets_rejected_total",
		Help: "Stake placements rejected by validation",
	}, []string{"reason"})

	// BroadcastsTotal counts totals broadcasts actually delivered.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_broadcasts_total",
		Help: "Totals broadcasts delivered to subscribers",
	})

	// BroadcastsSuppressed counts broadcasts skipped because the totals
	// were identical to the previously broadcast ones.
	BroadcastsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_broadcasts_suppressed_total",
		Help: "Totals broadcasts suppressed as no-ops",
	})

	// SettlementsTotal counts completed settlements.
	SettlementsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_settlements_total",
		Help: "Matches settled",
	})

	// SettledStakes counts durable stake rows written by settlement.
	SettledStakes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_settled_stakes_total",
		Help: "Durable stake records created by settlement",
	})

	// MatchesCreated counts matches opened.
	MatchesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saltybets_matches_created_total",
		Help: "Matches created",
	})

	// WebSocketClients tracks connected totals subscribers.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "saltybets_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saltybets_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saltybets_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the raw path for the label; route cardinality is tiny.
		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
