package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the scene orchestrator.
type Metrics struct {
	registry            *prometheus.Registry
	requestsTotal       prometheus.Counter
	roundsStartedTotal  prometheus.Counter
	roundsFailedTotal   prometheus.Counter
	rendersTotal        prometheus.Counter
	renderFailuresTotal prometheus.Counter
	activeWorkers       prometheus.Gauge
	errorsTotal         prometheus.Counter
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_requests_total",
		Help: "Total number of HTTP requests received",
	})
	roundsStartedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_rounds_started_total",
		Help: "Total number of rounds accepted for processing",
	})
	roundsFailedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_rounds_failed_total",
		Help: "Total number of rounds that failed and were rolled back",
	})
	rendersTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_renders_total",
		Help: "Total number of successful render passes",
	})
	renderFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_render_failures_total",
		Help: "Total number of failed render passes",
	})
	activeWorkers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_active_workers",
		Help: "Number of round workers currently running",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		requestsTotal,
		roundsStartedTotal,
		roundsFailedTotal,
		rendersTotal,
		renderFailuresTotal,
		activeWorkers,
		errorsTotal,
	)

	return &Metrics{
		registry:            registry,
		requestsTotal:       requestsTotal,
		roundsStartedTotal:  roundsStartedTotal,
		roundsFailedTotal:   roundsFailedTotal,
		rendersTotal:        rendersTotal,
		renderFailuresTotal: renderFailuresTotal,
		activeWorkers:       activeWorkers,
		errorsTotal:         errorsTotal,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncRoundsStarted increments the accepted-rounds counter.
func (m *Metrics) IncRoundsStarted() {
	m.roundsStartedTotal.Inc()
}

// IncRoundsFailed increments the failed-rounds counter.
func (m *Metrics) IncRoundsFailed() {
	m.roundsFailedTotal.Inc()
}

// IncRenders increments the successful render counter.
func (m *Metrics) IncRenders() {
	m.rendersTotal.Inc()
}

// IncRenderFailures increments the failed render counter.
func (m *Metrics) IncRenderFailures() {
	m.renderFailuresTotal.Inc()
}

// SetActiveWorkers sets the active workers gauge.
func (m *Metrics) SetActiveWorkers(n int) {
	m.activeWorkers.Set(float64(n))
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. active workers).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}
