package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sincitytravels/navigator/internal/config"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/navigation"
	"github.com/sincitytravels/navigator/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeComposer struct {
	trip  *models.Trip
	err   error
	calls []string
}

func (f *fakeComposer) ComposeTrip(_ context.Context, startID, endID string) (*models.Trip, error) {
	f.calls = append(f.calls, startID+"->"+endID)
	return f.trip, f.err
}

type fakeCatalog struct {
	pois      map[string]models.POI
	route     *models.StoredRoute
	nodes     []models.Node
	err       error
	category  string
	radius    float64
	threshold float64
}

func (f *fakeCatalog) FindPOI(_ context.Context, id string) (*models.POI, error) {
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.pois[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) ListPOIs(_ context.Context, category string) ([]models.POI, error) {
	f.category = category
	if f.err != nil {
		return nil, f.err
	}
	return []models.POI{f.pois["bel-cafe"], f.pois["bel-pool"]}, nil
}

func (f *fakeCatalog) ListRecommendedPOIs(context.Context) ([]models.POI, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.POI{f.pois["bel-pool"]}, nil
}

func (f *fakeCatalog) FindNearbyPOIs(_ context.Context, _ models.Coordinate, radius float64, category string) ([]models.NearbyPOI, error) {
	f.radius = radius
	f.category = category
	return []models.NearbyPOI{{POI: f.pois["bel-cafe"], DistanceMeters: 12.5}}, nil
}

func (f *fakeCatalog) ListProperties(context.Context) ([]models.Property, error) {
	return []models.Property{{ID: 1, Name: "Bellagio", Location: models.Coordinate{Lat: 36.1126, Lng: -115.1767}, Area: "Center Strip"}}, nil
}

func (f *fakeCatalog) ListPropertyDistances(_ context.Context, threshold float64) ([]models.PropertyDistance, error) {
	f.threshold = threshold
	return []models.PropertyDistance{{From: "Bellagio", To: "Caesars Palace", DistanceMeters: 450, Mode: models.TransportWalk}}, nil
}

func (f *fakeCatalog) POIDistance(_ context.Context, a, b string) (float64, bool, error) {
	_, okA := f.pois[a]
	_, okB := f.pois[b]
	if !okA || !okB {
		return 0, false, nil
	}
	return 140, true, nil
}

func (f *fakeCatalog) FindStoredIndoorRoute(context.Context, string, string) (*models.StoredRoute, error) {
	return f.route, nil
}

func (f *fakeCatalog) ResolveNodes(context.Context, []int64, int64) ([]models.Node, error) {
	return f.nodes, nil
}

func newCatalog() *fakeCatalog {
	return &fakeCatalog{pois: map[string]models.POI{
		"bel-cafe": {ID: "bel-cafe", Name: "Cafe Bellagio", Category: "restaurant", Property: "Bellagio", Location: models.Coordinate{Lat: 36.1127, Lng: -115.1765}},
		"bel-pool": {ID: "bel-pool", Name: "Bellagio Pool", Category: "pool_spa", Property: "Bellagio", Location: models.Coordinate{Lat: 36.1120, Lng: -115.1772}},
	}}
}

func newTestApp(t *testing.T, trips TripComposer, catalog Catalog, checks []HealthCheck) *fiber.App {
	t.Helper()
	metrics, err := observability.NewCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	h := NewHandler(trips, catalog, 500, checks, nil)
	h.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	return NewApp(ServerOptions{
		Handler:    h,
		RateLimits: config.RateLimitConfig{Enabled: false},
		Metrics:    metrics,
	})
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func doList(t *testing.T, app *fiber.App, path string) (int, []map[string]any) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	var out []map[string]any
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

func TestNavigate(t *testing.T) {
	trip := &models.Trip{ID: "t-1", Mode: models.TransportWalk, LegCount: 1, Legs: []models.Leg{{Kind: models.LegIndoor, Number: 1}}}

	tests := []struct {
		name       string
		body       string
		composeErr error
		wantStatus int
		wantError  string
		wantCalls  int
	}{
		{name: "success", body: `{"start_poi_id":"bel-cafe","end_poi_id":"bel-pool"}`, wantStatus: 200, wantCalls: 1},
		{name: "not json", body: `start=bel-cafe`, wantStatus: 400, wantError: "Request body must be JSON"},
		{name: "missing end", body: `{"start_poi_id":"bel-cafe"}`, wantStatus: 400, wantError: "start_poi_id and end_poi_id required"},
		{name: "bad id format", body: `{"start_poi_id":"bel cafe","end_poi_id":"bel-pool"}`, wantStatus: 400, wantError: "Invalid POI ID format"},
		{name: "id too long", body: `{"start_poi_id":"abcdefghijklmnopqrstu","end_poi_id":"bel-pool"}`, wantStatus: 400, wantError: "Invalid POI ID format"},
		{name: "same poi", body: `{"start_poi_id":"bel-cafe","end_poi_id":"bel-cafe"}`, wantStatus: 400, wantError: "Start and end POI must be different"},
		{name: "unknown poi", body: `{"start_poi_id":"bel-cafe","end_poi_id":"nowhere"}`, composeErr: fmt.Errorf("%w: POI nowhere", navigation.ErrNotFound), wantStatus: 404, wantError: "POI not found", wantCalls: 1},
		{name: "datastore failure", body: `{"start_poi_id":"bel-cafe","end_poi_id":"bel-pool"}`, composeErr: errors.New("connection reset"), wantStatus: 500, wantError: "Internal server error", wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			composer := &fakeComposer{trip: trip, err: tt.composeErr}
			app := newTestApp(t, composer, newCatalog(), nil)

			status, body := doJSON(t, app, http.MethodPost, "/api/navigate", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			assert.Len(t, composer.calls, tt.wantCalls)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			assert.Equal(t, "t-1", body["id"])
			assert.Equal(t, "walk", body["mode"])
			assert.Equal(t, []string{"bel-cafe->bel-pool"}, composer.calls)
		})
	}
}

func TestListPOIs(t *testing.T) {
	catalog := newCatalog()
	app := newTestApp(t, &fakeComposer{}, catalog, nil)

	status, pois := doList(t, app, "/api/pois?category=restaurant")
	require.Equal(t, 200, status)
	assert.Equal(t, "restaurant", catalog.category)
	require.Len(t, pois, 2)
	assert.Equal(t, "Cafe Bellagio", pois[0]["name"])
	assert.Equal(t, "Bellagio", pois[0]["casino_property"])
	assert.NotContains(t, pois[0], "distance_meters")

	status, body := doJSON(t, app, http.MethodGet, "/api/pois?category=buffet", "")
	assert.Equal(t, 400, status)
	assert.Contains(t, body["error"], "attraction, casino, entertainment")
}

func TestRecommendedPOIs(t *testing.T) {
	catalog := newCatalog()
	app := newTestApp(t, &fakeComposer{}, catalog, nil)

	status, pois := doList(t, app, "/api/pois/recommended")
	require.Equal(t, 200, status)
	require.Len(t, pois, 1)
	assert.Equal(t, "bel-pool", pois[0]["id"])
	assert.Equal(t, "Bellagio Pool", pois[0]["name"])

	catalog.err = errors.New("connection reset")
	status, body := doJSON(t, app, http.MethodGet, "/api/pois/recommended", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestNearby(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantRadius float64
	}{
		{name: "default radius", query: "lat=36.11&lng=-115.17", wantStatus: 200, wantRadius: 500},
		{name: "explicit radius", query: "lat=36.11&lng=-115.17&radius=250", wantStatus: 200, wantRadius: 250},
		{name: "radius capped", query: "lat=36.11&lng=-115.17&radius=90000", wantStatus: 200, wantRadius: 5000},
		{name: "missing lng", query: "lat=36.11", wantStatus: 400},
		{name: "latitude out of range", query: "lat=91&lng=-115.17", wantStatus: 400},
		{name: "latitude not a number", query: "lat=NaN&lng=-115.17", wantStatus: 400},
		{name: "longitude not a number", query: "lat=36.11&lng=nan", wantStatus: 400},
		{name: "radius not a number", query: "lat=36.11&lng=-115.17&radius=NaN", wantStatus: 400},
		{name: "bad radius", query: "lat=36.11&lng=-115.17&radius=far", wantStatus: 400},
		{name: "negative radius", query: "lat=36.11&lng=-115.17&radius=-5", wantStatus: 400},
		{name: "bad category", query: "lat=36.11&lng=-115.17&category=buffet", wantStatus: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := newCatalog()
			app := newTestApp(t, &fakeComposer{}, catalog, nil)

			status, pois := doList(t, app, "/api/nearby?"+tt.query)
			require.Equal(t, tt.wantStatus, status)
			if tt.wantStatus != 200 {
				return
			}
			assert.Equal(t, tt.wantRadius, catalog.radius)
			require.Len(t, pois, 1)
			assert.Equal(t, 12.5, pois[0]["distance_meters"])
		})
	}
}

func TestPropertyEndpoints(t *testing.T) {
	catalog := newCatalog()
	app := newTestApp(t, &fakeComposer{}, catalog, nil)

	status, props := doList(t, app, "/api/properties")
	require.Equal(t, 200, status)
	require.Len(t, props, 1)
	assert.Equal(t, "Bellagio", props[0]["name"])

	status, distances := doList(t, app, "/api/property-distances")
	require.Equal(t, 200, status)
	assert.Equal(t, 500.0, catalog.threshold)
	require.Len(t, distances, 1)
	assert.Equal(t, "walk", distances[0]["mode"])
	assert.Equal(t, "Caesars Palace", distances[0]["to_property_name"])
}

func TestDistance(t *testing.T) {
	app := newTestApp(t, &fakeComposer{}, newCatalog(), nil)

	status, body := doJSON(t, app, http.MethodGet, "/api/distance/bel-cafe/bel-pool", "")
	assert.Equal(t, 200, status)
	assert.Equal(t, 140.0, body["distance_meters"])

	status, _ = doJSON(t, app, http.MethodGet, "/api/distance/bel-cafe/ghost", "")
	assert.Equal(t, 404, status)

	status, _ = doJSON(t, app, http.MethodGet, "/api/distance/bel.cafe/bel-pool", "")
	assert.Equal(t, 400, status)
}

func TestIndoorRoute(t *testing.T) {
	t.Run("stored route", func(t *testing.T) {
		catalog := newCatalog()
		catalog.route = &models.StoredRoute{DistanceMeters: 180.5, DurationSeconds: 129, NodeIDs: []int64{2, 1}, HasStairs: true, PropertyID: 1}
		catalog.nodes = []models.Node{
			{ID: 1, Name: "Conservatory", Kind: models.NodeJunction},
			{ID: 2, Kind: models.NodeStairs},
		}
		app := newTestApp(t, &fakeComposer{}, catalog, nil)

		status, body := doJSON(t, app, http.MethodGet, "/api/route/bel-cafe/bel-pool", "")
		require.Equal(t, 200, status)
		assert.Equal(t, true, body["found"])
		assert.Equal(t, 180.5, body["distance_meters"])
		assert.Equal(t, true, body["has_stairs"])

		waypoints := body["waypoints"].([]any)
		require.Len(t, waypoints, 4)
		assert.Equal(t, "Cafe Bellagio", waypoints[0].(map[string]any)["name"])
		assert.Equal(t, "stairs", waypoints[1].(map[string]any)["name"])
		assert.Equal(t, "Conservatory", waypoints[2].(map[string]any)["name"])
		assert.Equal(t, "Bellagio Pool", waypoints[3].(map[string]any)["name"])
	})

	t.Run("straight line fallback", func(t *testing.T) {
		app := newTestApp(t, &fakeComposer{}, newCatalog(), nil)

		status, body := doJSON(t, app, http.MethodGet, "/api/route/bel-cafe/bel-pool", "")
		require.Equal(t, 200, status)
		assert.Equal(t, false, body["found"])
		assert.Equal(t, 140.0, body["distance_meters"])
		assert.Equal(t, 100.0, body["estimated_time_seconds"])
		assert.Len(t, body["waypoints"], 2)
		assert.NotContains(t, body, "has_stairs")
	})

	t.Run("unknown poi", func(t *testing.T) {
		app := newTestApp(t, &fakeComposer{}, newCatalog(), nil)
		status, _ := doJSON(t, app, http.MethodGet, "/api/route/bel-cafe/ghost", "")
		assert.Equal(t, 404, status)
	})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     []HealthCheck
		wantStatus int
		wantState  string
		wantRedis  string
	}{
		{
			name:       "all healthy",
			checks:     []HealthCheck{{Name: "database", Check: func(context.Context) error { return nil }}},
			wantStatus: 200,
			wantState:  "ok",
		},
		{
			name: "redis down",
			checks: []HealthCheck{
				{Name: "database", Check: func(context.Context) error { return nil }},
				{Name: "redis", Check: func(context.Context) error { return errors.New("dial tcp: connection refused") }},
			},
			wantStatus: 503,
			wantState:  "degraded",
			wantRedis:  "dial tcp: connection refused",
		},
		{
			name: "redis not configured",
			checks: []HealthCheck{
				{Name: "database", Check: func(context.Context) error { return nil }},
				{Name: "redis"},
			},
			wantStatus: 200,
			wantState:  "ok",
			wantRedis:  "disabled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t, &fakeComposer{}, newCatalog(), tt.checks)

			status, body := doJSON(t, app, http.MethodGet, "/health", "")
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantState, body["status"])
			assert.Equal(t, Version, body["version"])
			assert.Equal(t, "2026-03-01T12:00:00Z", body["timestamp"])

			checks := body["checks"].(map[string]any)
			assert.Equal(t, "ok", checks["database"])
			if tt.wantRedis != "" {
				assert.Equal(t, tt.wantRedis, checks["redis"])
			}
		})
	}
}

func TestCatalogFailureIsInternalError(t *testing.T) {
	catalog := newCatalog()
	catalog.err = errors.New("pool closed")
	app := newTestApp(t, &fakeComposer{}, catalog, nil)

	status, body := doJSON(t, app, http.MethodGet, "/api/pois", "")
	assert.Equal(t, 500, status)
	assert.Equal(t, "Internal server error", body["error"])
}

func TestMetricsAndUnknownRoutes(t *testing.T) {
	app := newTestApp(t, &fakeComposer{}, newCatalog(), nil)

	status, _ := doJSON(t, app, http.MethodGet, "/api/pois", "")
	require.Equal(t, 200, status)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `http_requests_total{code="200",method="GET",route="/api/pois"} 1`)

	status, body := doJSON(t, app, http.MethodGet, "/api/nothing-here", "")
	assert.Equal(t, 404, status)
	assert.Equal(t, "endpoint not found", body["error"])
}
