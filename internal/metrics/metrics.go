// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "booking"

// Collectors groups every metric the service records. The zero value is not
// usable; a nil *Collectors records nothing.
type Collectors struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	Admissions          *prometheus.CounterVec
	EventsPublished     *prometheus.CounterVec
	CircuitBreakerState *prometheus.GaugeVec
}

// New registers the service collectors, plus the Go runtime and process
// collectors, on a fresh registry.
func New() *Collectors {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collectors{
		registry: registry,
		HTTPRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Admissions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "admissions_total",
				Help:      "Booking admission attempts by outcome",
			},
			[]string{"outcome"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Change events handed to the event backend by type and outcome",
			},
			[]string{"event_type", "outcome"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}
}

// Handler serves the registry in the Prometheus text format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Gatherer exposes the underlying registry for tests and tooling.
func (c *Collectors) Gatherer() prometheus.Gatherer {
	return c.registry
}

// ObserveHTTPRequest records one finished request. route is the matched route
// pattern, not the raw path.
func (c *Collectors) ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveAdmission records the outcome of a booking creation attempt.
// An empty outcome means the booking was admitted.
func (c *Collectors) ObserveAdmission(outcome string) {
	if c == nil {
		return
	}
	if outcome == "" {
		outcome = "admitted"
	}
	c.Admissions.WithLabelValues(outcome).Inc()
}

// ObservePublish records the outcome of a change event publish.
func (c *Collectors) ObservePublish(eventType string, err error) {
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	c.EventsPublished.WithLabelValues(eventType, outcome).Inc()
}

// SetBreakerState records a circuit breaker transition.
func (c *Collectors) SetBreakerState(name string, state float64) {
	if c == nil {
		return
	}
	c.CircuitBreakerState.WithLabelValues(name).Set(state)
}
