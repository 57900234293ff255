package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_claims_total",
			Help: "Claim attempts by outcome",
		},
		[]string{"result"},
	)

	leadReleases = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_releases_total",
			Help: "Release attempts by outcome",
		},
		[]string{"result"},
	)

	sweepRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inactivity_sweep_runs_total",
			Help: "Inactivity sweep runs by outcome",
		},
		[]string{"result"},
	)

	sweepTasks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inactivity_sweep_tasks_total",
			Help: "Tasks raised by the inactivity sweep",
		},
		[]string{"trigger"},
	)

	eventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lead_event_publish_errors_total",
			Help: "Lead events that could not be published",
		},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// routePattern labels by chi pattern so lead ids do not explode cardinality.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

func RecordClaim(result string) {
	leadClaims.WithLabelValues(result).Inc()
}

func RecordRelease(result string) {
	leadReleases.WithLabelValues(result).Inc()
}

func RecordSweepRun(result string) {
	sweepRuns.WithLabelValues(result).Inc()
}

func RecordSweepTasks(trigger string, n int) {
	if n > 0 {
		sweepTasks.WithLabelValues(trigger).Add(float64(n))
	}
}

func RecordEventPublishError() {
	eventPublishErrors.Inc()
}
