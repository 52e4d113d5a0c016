package observability

import (
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every recording method is safe to call
// on a nil *Metrics so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Access control metrics
	InvitationTransitionsTotal *prometheus.CounterVec
	TeamMutationsTotal         *prometheus.CounterVec
	AuthzDecisionsTotal        *prometheus.CounterVec
	AuthzCacheTotal            *prometheus.CounterVec

	// Sweep metrics
	SweepRunsTotal    *prometheus.CounterVec
	SweepExpiredTotal prometheus.Counter
	SweepDuration     prometheus.Histogram

	// Database metrics
	DBConnectionsActive    prometheus.Gauge
	DBConnectionsIdle      prometheus.Gauge
	DBConnectionsWaitCount prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sitepass_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		InvitationTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_invitation_transitions_total",
				Help: "Invitation state transitions by resulting status",
			},
			[]string{"status"},
		),
		TeamMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_team_mutations_total",
				Help: "Team registry mutations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		AuthzDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_authz_decisions_total",
				Help: "Authorization decisions by action and result",
			},
			[]string{"action", "decision", "reason"},
		),
		AuthzCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_authz_cache_lookups_total",
				Help: "Authorization member cache lookups",
			},
			[]string{"result"},
		),

		SweepRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sitepass_sweep_runs_total",
				Help: "Invitation expiry sweep runs by outcome",
			},
			[]string{"outcome"},
		),
		SweepExpiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sitepass_sweep_expired_total",
				Help: "Invitations expired by the sweep",
			},
		),
		SweepDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sitepass_sweep_duration_seconds",
				Help:    "Invitation expiry sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitepass_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitepass_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBConnectionsWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sitepass_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.InvitationTransitionsTotal,
		m.TeamMutationsTotal,
		m.AuthzDecisionsTotal,
		m.AuthzCacheTotal,
		m.SweepRunsTotal,
		m.SweepExpiredTotal,
		m.SweepDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
		m.DBConnectionsWaitCount,
	)

	return m
}

// RecordInvitationTransition counts an invitation reaching status
func (m *Metrics) RecordInvitationTransition(status string) {
	if m == nil {
		return
	}
	m.InvitationTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordTeamMutation counts a registry mutation attempt
func (m *Metrics) RecordTeamMutation(operation, outcome string) {
	if m == nil {
		return
	}
	m.TeamMutationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAuthzDecision counts an authorization decision
func (m *Metrics) RecordAuthzDecision(action string, allowed bool, reason string) {
	if m == nil {
		return
	}
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	m.AuthzDecisionsTotal.WithLabelValues(action, decision, reason).Inc()
}

// RecordAuthzCache counts a member cache hit or miss
func (m *Metrics) RecordAuthzCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AuthzCacheTotal.WithLabelValues(result).Inc()
}

// RecordSweep records one sweep run
func (m *Metrics) RecordSweep(outcome string, expired int, duration time.Duration) {
	if m == nil {
		return
	}
	m.SweepRunsTotal.WithLabelValues(outcome).Inc()
	m.SweepExpiredTotal.Add(float64(expired))
	m.SweepDuration.Observe(duration.Seconds())
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsActive.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBConnectionsWaitCount.Set(float64(stats.WaitCount))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Paths are labelled with the matched route template to bound cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := "unmatched"
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}
