package directions

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/sincitytravels/navigator/internal/cache"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/observability"
	"github.com/sincitytravels/navigator/internal/polyline"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/directions/json"
	DefaultTimeout = 10 * time.Second
)

// Config holds the provider credential and request settings
type Config struct {
	APIKey  string        `toml:"api_key"`
	BaseURL string        `toml:"base_url"`
	Timeout time.Duration `toml:"timeout"`
}

// Client fetches walking and driving directions from the Google Directions
// API. Failures are never returned to the caller; they are logged and
// reported as unavailable so the caller can fall back to geometry.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *cache.Cache
	log     *zap.Logger
	metrics *observability.Collector
}

// NewClient creates a directions client. The cache, logger and collector may be nil.
func NewClient(cfg Config, c *cache.Cache, logger *zap.Logger, metrics *observability.Collector) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   c,
		log:     logger,
		metrics: metrics,
	}
}

// Available reports whether a provider credential is configured
func (c *Client) Available() bool {
	return c != nil && c.cfg.APIKey != ""
}

// GetDirections returns the normalized provider route between two points, or
// false when the provider is unconfigured or the lookup failed.
func (c *Client) GetDirections(ctx context.Context, origin, destination models.Coordinate, mode models.TravelMode) (*models.NormalizedRoute, bool) {
	if !c.Available() {
		c.metrics.ProviderCall(string(mode), "unconfigured", 0)
		return nil, false
	}

	key := cache.Key(origin, destination, mode)
	if c.cache != nil {
		if route, ok := c.cache.Get(ctx, key); ok {
			c.log.Debug("directions cache hit",
				zap.String("mode", string(mode)),
				zap.Any("origin", origin),
				zap.Any("destination", destination))
			c.metrics.ProviderCall(string(mode), "cache_hit", 0)
			return route, true
		}
	}

	start := time.Now()
	route, outcome, err := c.fetch(ctx, origin, destination, mode)
	c.metrics.ProviderCall(string(mode), outcome, time.Since(start))
	if err != nil {
		c.log.Warn("directions provider unavailable",
			zap.String("mode", string(mode)),
			zap.String("outcome", outcome),
			zap.Error(err))
		return nil, false
	}

	normalized := c.normalize(route)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, normalized); err != nil {
			c.log.Warn("failed to cache directions", zap.String("key", key), zap.Error(err))
		}
	}

	return normalized, true
}

// fetch issues exactly one request; there are no retries
func (c *Client) fetch(ctx context.Context, origin, destination models.Coordinate, mode models.TravelMode) (*googleRoute, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("origin", fmt.Sprintf("%v,%v", origin.Lat, origin.Lng))
	params.Set("destination", fmt.Sprintf("%v,%v", destination.Lat, destination.Lng))
	params.Set("mode", string(mode))
	params.Set("alternatives", "false")
	params.Set("units", "metric")
	params.Set("key", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, "request_error", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "transport_error", fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "http_error", fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	var body googleResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, "decode_error", fmt.Errorf("failed to decode response: %w", err)
	}

	if body.Status != "OK" {
		return nil, "status_error", fmt.Errorf("API status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Routes) == 0 || len(body.Routes[0].Legs) == 0 {
		return nil, "no_routes", fmt.Errorf("API returned no routes")
	}

	return &body.Routes[0], "ok", nil
}

var (
	htmlTag    = regexp.MustCompile(`<[^>]+>`)
	whitespace = regexp.MustCompile(`\s+`)
)

// CleanInstruction strips HTML markup and collapses whitespace
func CleanInstruction(s string) string {
	s = htmlTag.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalize converts the first leg of a provider route into the
// provider-independent route shape
func (c *Client) normalize(route *googleRoute) *models.NormalizedRoute {
	leg := route.Legs[0]

	var waypoints []models.Waypoint
	for i, step := range leg.Steps {
		if step.Polyline.Points == "" {
			continue
		}
		decoded, err := polyline.Decode(step.Polyline.Points)
		if err != nil {
			c.log.Warn("skipping undecodable step polyline", zap.Int("step", i), zap.Error(err))
			continue
		}
		// Avoid duplicating the last point of the previous step
		if len(waypoints) > 0 && len(decoded) > 0 && waypoints[len(waypoints)-1].Coordinate() == decoded[0] {
			decoded = decoded[1:]
		}
		for _, p := range decoded {
			waypoints = append(waypoints, models.Waypoint{Lat: p.Lat, Lng: p.Lng})
		}
	}

	if len(waypoints) == 0 {
		waypoints = []models.Waypoint{
			{Lat: leg.StartLocation.Lat, Lng: leg.StartLocation.Lng},
			{Lat: leg.EndLocation.Lat, Lng: leg.EndLocation.Lng},
		}
	}

	steps := make([]models.Step, 0, len(leg.Steps))
	for _, step := range leg.Steps {
		steps = append(steps, models.Step{
			Instruction:    CleanInstruction(step.HTMLInstructions),
			DistanceMeters: step.Distance.Value,
			TimeSeconds:    int(step.Duration.Value),
			From:           models.Coordinate{Lat: step.StartLocation.Lat, Lng: step.StartLocation.Lng},
			To:             models.Coordinate{Lat: step.EndLocation.Lat, Lng: step.EndLocation.Lng},
		})
	}

	return &models.NormalizedRoute{
		DistanceMeters:  leg.Distance.Value,
		DurationSeconds: int(leg.Duration.Value),
		Waypoints:       waypoints,
		Steps:           steps,
	}
}
