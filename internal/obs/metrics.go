package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service's Prometheus collectors. Constructed once at
// startup; tests build their own instance against a throwaway registry so
// parallel packages never fight over the default registerer.
type Metrics struct {
	LoginAttempts     *prometheus.CounterVec
	LockoutsEngaged   prometheus.Counter
	LockoutRejections prometheus.Counter
	Rotations         prometheus.Counter
	ReuseDetections   prometheus.Counter

	httpInFlight        prometheus.Gauge
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// NewMetrics registers all collectors with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_login_attempts_total",
				Help: "Login attempts by outcome.",
			},
			[]string{"outcome"},
		),
		LockoutsEngaged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockouts_engaged_total",
			Help: "Accounts locked after crossing the failure threshold.",
		}),
		LockoutRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_lockout_rejections_total",
			Help: "Login attempts rejected because the account was locked.",
		}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_refresh_rotations_total",
			Help: "Successful refresh token rotations.",
		}),
		ReuseDetections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "auth_token_reuse_detections_total",
			Help: "Refresh token replays that revoked a session chain.",
		}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_in_flight_requests",
			Help: "In-flight HTTP requests.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latencies in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.LoginAttempts, m.LockoutsEngaged, m.LockoutRejections,
		m.Rotations, m.ReuseDetections,
		m.httpInFlight, m.httpRequestsTotal, m.httpRequestDuration,
	)

	return m
}

// Handler serves the default Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument is router middleware adding request count, latency, and
// in-flight tracking. The path label uses the chi route pattern so IDs do
// not explode label cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		pattern := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			pattern = rctx.RoutePattern()
		}

		status := strconv.Itoa(sw.code)
		m.httpRequestDuration.WithLabelValues(r.Method, pattern, status).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
		m.httpInFlight.Dec()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
