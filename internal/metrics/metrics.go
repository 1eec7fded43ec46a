// Package metrics provides Prometheus metrics for routedesk.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Registry is the Prometheus registry for this metrics instance
	Registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Upstream calls to the fleet API and the maps provider
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec

	// Route workflow
	RouteComputations    *prometheus.CounterVec
	DraftTransitions     *prometheus.CounterVec
	StaleResultsDropped  prometheus.Counter
	CircuitBreakerStatus *prometheus.GaugeVec
}

// New creates and registers all metrics with a new registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routedesk_http_request_duration_seconds",
			Help:    "HTTP request latency distribution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	upstreamRequestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedesk_upstream_requests_total",
			Help: "Requests made to upstream services by outcome",
		},
		[]string{"service", "op", "outcome"},
	)

	upstreamRequestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routedesk_upstream_request_duration_seconds",
			Help:    "Upstream request latency distribution",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service", "op"},
	)

	routeComputations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedesk_route_computations_total",
			Help: "Route computations by result",
		},
		[]string{"result"},
	)

	draftTransitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routedesk_draft_transitions_total",
			Help: "Draft state transitions by target state",
		},
		[]string{"state"},
	)

	staleResultsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "routedesk_stale_route_results_total",
		Help: "Route results discarded because the draft changed while computing",
	})

	circuitBreakerStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "routedesk_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	registry.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		upstreamRequestsTotal,
		upstreamRequestDuration,
		routeComputations,
		draftTransitions,
		staleResultsDropped,
		circuitBreakerStatus,
	)

	return &Metrics{
		Registry:                registry,
		HTTPRequestsTotal:       httpRequestsTotal,
		HTTPRequestDuration:     httpRequestDuration,
		UpstreamRequestsTotal:   upstreamRequestsTotal,
		UpstreamRequestDuration: upstreamRequestDuration,
		RouteComputations:       routeComputations,
		DraftTransitions:        draftTransitions,
		StaleResultsDropped:     staleResultsDropped,
		CircuitBreakerStatus:    circuitBreakerStatus,
	}
}

// ObserveUpstream records one upstream call.
func (m *Metrics) ObserveUpstream(service, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.UpstreamRequestsTotal.WithLabelValues(service, op, outcome).Inc()
	m.UpstreamRequestDuration.WithLabelValues(service, op).Observe(time.Since(start).Seconds())
}

// ObserveComputation records the result of a route computation.
func (m *Metrics) ObserveComputation(result string) {
	if m == nil {
		return
	}
	m.RouteComputations.WithLabelValues(result).Inc()
}

// ObserveTransition records a draft entering state.
func (m *Metrics) ObserveTransition(state string) {
	if m == nil {
		return
	}
	m.DraftTransitions.WithLabelValues(state).Inc()
}

// ObserveStale records a discarded compute result.
func (m *Metrics) ObserveStale() {
	if m == nil {
		return
	}
	m.StaleResultsDropped.Inc()
}

// SetBreakerState records the numeric state of a named circuit breaker.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerStatus.WithLabelValues(name).Set(float64(state))
}

// Middleware records HTTP metrics. The route template is used as the path
// label to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
