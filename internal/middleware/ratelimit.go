package middleware

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limits are request quotas per client; zero disables a window
type Limits struct {
	PerMinute int `toml:"per_minute"`
	PerHour   int `toml:"per_hour"`
}

// Default quotas
var (
	DefaultLimits  = Limits{PerMinute: 50, PerHour: 200}
	NavigateLimits = Limits{PerMinute: 20, PerHour: 200}
)

type window struct {
	name   string
	limit  int
	length time.Duration
}

// RateLimiter is a fixed-window limiter keyed by client IP and scope.
// Counters live in Redis so every API instance shares them.
type RateLimiter struct {
	rdb *redis.Client
	log *zap.Logger
	now func() time.Time
}

// NewRateLimiter creates a limiter. A nil client disables limiting.
func NewRateLimiter(rdb *redis.Client, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{rdb: rdb, log: logger, now: time.Now}
}

func windowKey(scope, ip string, w window, now time.Time) string {
	return fmt.Sprintf("rl:ip:%s:%s:%s:%d", scope, ip, w.name, now.Unix()/int64(w.length.Seconds()))
}

// Handler enforces limits for the named scope. Redis failures let the
// request through.
func (l *RateLimiter) Handler(scope string, limits Limits) fiber.Handler {
	windows := []window{
		{name: "minute", limit: limits.PerMinute, length: time.Minute},
		{name: "hour", limit: limits.PerHour, length: time.Hour},
	}

	return func(c *fiber.Ctx) error {
		if l == nil || l.rdb == nil {
			return c.Next()
		}

		ctx := c.UserContext()
		if ctx == nil {
			ctx = context.Background()
		}
		now := l.now()
		ip := c.IP()

		for _, w := range windows {
			if w.limit <= 0 {
				continue
			}

			key := windowKey(scope, ip, w, now)
			count, err := l.rdb.Incr(ctx, key).Result()
			if err != nil {
				l.log.Warn("rate limiter unavailable", zap.String("scope", scope), zap.Error(err))
				return c.Next()
			}
			if count == 1 {
				l.rdb.Expire(ctx, key, w.length+time.Second)
			}

			reset := time.Unix((now.Unix()/int64(w.length.Seconds())+1)*int64(w.length.Seconds()), 0)
			retryAfter := int64(reset.Sub(now).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}

			c.Set("X-RateLimit-Limit", strconv.Itoa(w.limit))
			c.Set("X-RateLimit-Remaining", strconv.FormatInt(maxInt64(0, int64(w.limit)-count), 10))

			if count > int64(w.limit) {
				c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))
				c.Set("Retry-After", strconv.FormatInt(retryAfter, 10))

				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":       "Rate limit exceeded",
					"limit_type":  "per_" + w.name,
					"limit":       w.limit,
					"retry_after": retryAfter,
				})
			}
		}

		return c.Next()
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
