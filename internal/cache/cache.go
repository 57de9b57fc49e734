package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sincitytravels/navigator/internal/geo"
	"github.com/sincitytravels/navigator/internal/models"
	"github.com/sincitytravels/navigator/internal/observability"
	"go.uber.org/zap"
)

// ErrMiss is returned by a Backend when no entry exists for a key
var ErrMiss = errors.New("cache: miss")

// Backend is a raw key/value store for serialized cache entries.
// Set must replace an entry atomically.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// Entry is the persisted form of a cached directions response
type Entry struct {
	Key       string                 `json:"key"`
	Route     models.NormalizedRoute `json:"route"`
	CreatedAt time.Time              `json:"created_at"`
}

// Cache stores normalized provider routes with a TTL checked on read
type Cache struct {
	backend Backend
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics *observability.Collector
}

// New creates a directions cache. A nil logger disables logging and a nil
// collector disables metrics.
func New(backend Backend, ttl time.Duration, logger *zap.Logger, metrics *observability.Collector) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		backend: backend,
		ttl:     ttl,
		now:     time.Now,
		log:     logger,
		metrics: metrics,
	}
}

// Key builds the deterministic cache key for a directions query.
// Coordinates are rounded to 5 decimal places (about 1 m).
func Key(origin, destination models.Coordinate, mode models.TravelMode) string {
	raw := fmt.Sprintf("%s,%s_%s,%s_%s",
		formatCoord(origin.Lat), formatCoord(origin.Lng),
		formatCoord(destination.Lat), formatCoord(destination.Lng),
		mode,
	)
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(geo.Round(v, 5), 'f', -1, 64)
}

// Get returns the cached route for key. Expired and unreadable entries are
// purged and reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (*models.NormalizedRoute, bool) {
	data, err := c.backend.Get(ctx, key)
	if errors.Is(err, ErrMiss) {
		c.metrics.CacheLookup("miss")
		return nil, false
	}
	if err != nil {
		c.log.Warn("directions cache read failed", zap.String("key", key), zap.Error(err))
		c.metrics.CacheLookup("error")
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.log.Warn("directions cache entry corrupt", zap.String("key", key), zap.Error(err))
		c.purge(ctx, key)
		c.metrics.CacheLookup("corrupt")
		return nil, false
	}

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		c.log.Debug("directions cache entry expired", zap.String("key", key),
			zap.Time("created_at", entry.CreatedAt))
		c.purge(ctx, key)
		c.metrics.CacheLookup("expired")
		return nil, false
	}

	c.metrics.CacheLookup("hit")
	return &entry.Route, true
}

// Set stores route under key, stamped with the current time
func (c *Cache) Set(ctx context.Context, key string, route *models.NormalizedRoute) error {
	if route == nil {
		return fmt.Errorf("cache: nil route for key %s", key)
	}

	data, err := json.Marshal(Entry{Key: key, Route: *route, CreatedAt: c.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal directions entry: %w", err)
	}

	if err := c.backend.Set(ctx, key, data); err != nil {
		return fmt.Errorf("failed to write directions entry: %w", err)
	}
	return nil
}

func (c *Cache) purge(ctx context.Context, key string) {
	if err := c.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrMiss) {
		c.log.Warn("failed to purge directions cache entry", zap.String("key", key), zap.Error(err))
	}
}
