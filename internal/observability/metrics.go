package observability

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the Prometheus metrics for the navigation service.
// All recording methods are safe to call on a nil Collector.
type Collector struct {
	gatherer prometheus.Gatherer

	ProviderCalls    *prometheus.CounterVec
	ProviderDuration *prometheus.HistogramVec
	CacheLookups     *prometheus.CounterVec
	TripsComposed    *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewCollector registers the service metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	providerCalls, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directions_provider_calls_total",
		Help: "Directions lookups, labeled by travel mode and outcome.",
	}, []string{"mode", "outcome"}), "directions_provider_calls_total")
	if err != nil {
		return nil, err
	}

	providerDuration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "directions_provider_request_duration_seconds",
		Help:    "Latency of outbound directions provider requests.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"mode"}), "directions_provider_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	cacheLookups, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "directions_cache_lookups_total",
		Help: "Directions cache reads, labeled by result (hit, miss, expired, corrupt, error).",
	}, []string{"result"}), "directions_cache_lookups_total")
	if err != nil {
		return nil, err
	}

	trips, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trips_composed_total",
		Help: "Composed trips, labeled by overall transport mode.",
	}, []string{"mode"}), "trips_composed_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Handled HTTP requests, labeled by method, route and status code.",
	}, []string{"method", "route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"}), "http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:         gatherer,
		ProviderCalls:    providerCalls,
		ProviderDuration: providerDuration,
		CacheLookups:     cacheLookups,
		TripsComposed:    trips,
		HTTPRequests:     requests,
		HTTPDuration:     durations,
	}, nil
}

// CacheLookup records the result of a directions cache read
func (c *Collector) CacheLookup(result string) {
	if c == nil || c.CacheLookups == nil {
		return
	}
	c.CacheLookups.WithLabelValues(result).Inc()
}

// ProviderCall records a directions lookup outcome. A zero duration means no
// request left the process (cache hit or unconfigured provider).
func (c *Collector) ProviderCall(mode, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	if c.ProviderCalls != nil {
		c.ProviderCalls.WithLabelValues(mode, outcome).Inc()
	}
	if c.ProviderDuration != nil && d > 0 {
		c.ProviderDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

// TripComposed records a successfully composed trip
func (c *Collector) TripComposed(mode string) {
	if c == nil || c.TripsComposed == nil {
		return
	}
	c.TripsComposed.WithLabelValues(mode).Inc()
}

// Middleware records request counts and durations for fiber routes
func (c *Collector) Middleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		start := time.Now()
		err := ctx.Next()

		if c == nil {
			return err
		}

		route := "unmatched"
		if r := ctx.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		code := ctx.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			code = e.Code
		}

		if c.HTTPRequests != nil {
			c.HTTPRequests.WithLabelValues(ctx.Method(), route, strconv.Itoa(code)).Inc()
		}
		if c.HTTPDuration != nil {
			c.HTTPDuration.WithLabelValues(ctx.Method(), route).Observe(time.Since(start).Seconds())
		}
		return err
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
