package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsDomainMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.CacheLookup("hit")
	c.CacheLookup("hit")
	c.CacheLookup("expired")
	c.ProviderCall("walking", "ok", 120*time.Millisecond)
	c.ProviderCall("driving", "unavailable", 0)
	c.TripComposed("rideshare")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ProviderCalls.WithLabelValues("walking", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ProviderCalls.WithLabelValues("driving", "unavailable")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TripsComposed.WithLabelValues("rideshare")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.ProviderDuration))
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.CacheLookup("miss")
		c.ProviderCall("walking", "ok", time.Second)
		c.TripComposed("walk")
	})
}

func TestRegisteringTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.TripComposed("walk")
	assert.Equal(t, 1.0, testutil.ToFloat64(second.TripsComposed.WithLabelValues("walk")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	app := fiber.New()
	app.Use(c.Middleware())
	app.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/ping", "200")))

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "http_requests_total"))
}
