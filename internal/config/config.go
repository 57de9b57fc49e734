package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/sincitytravels/navigator/internal/cache"
	"github.com/sincitytravels/navigator/internal/db"
	"github.com/sincitytravels/navigator/internal/directions"
	"github.com/sincitytravels/navigator/internal/fare"
	"github.com/sincitytravels/navigator/internal/middleware"
	"github.com/sincitytravels/navigator/internal/navigation"
)

// Cache backends
const (
	CacheBackendRedis = "redis"
	CacheBackendFile  = "file"
)

// Config holds the application configuration
type Config struct {
	Env        string            `toml:"env"`
	Server     ServerConfig      `toml:"server"`
	Database   db.Config         `toml:"database"`
	Redis      cache.RedisConfig `toml:"redis"`
	Cache      CacheConfig       `toml:"cache"`
	Directions directions.Config `toml:"directions"`
	Navigation navigation.Config `toml:"navigation"`
	Fares      FareConfig        `toml:"fares"`
	RateLimits RateLimitConfig   `toml:"rate_limits"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `toml:"port"`
	CORSOrigins     string        `toml:"cors_origins"`
	ReadTimeout     time.Duration `toml:"read_timeout"`
	WriteTimeout    time.Duration `toml:"write_timeout"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`
}

// CacheConfig selects and configures the directions cache backend
type CacheConfig struct {
	Backend string `toml:"backend"`
	Dir     string `toml:"dir"`
	TTLDays int    `toml:"ttl_days"`
}

// TTL returns the entry lifetime
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// FareConfig holds the rideshare pricing parameters
type FareConfig struct {
	AvgSpeedMPH float64    `toml:"avg_speed_mph"`
	Uber        fare.Rates `toml:"uber"`
	Lyft        fare.Rates `toml:"lyft"`
}

// Estimator builds a fare estimator from the configured rates
func (f FareConfig) Estimator() *fare.Estimator {
	return &fare.Estimator{Uber: f.Uber, Lyft: f.Lyft, AvgSpeedMPH: f.AvgSpeedMPH}
}

// RateLimitConfig holds per-endpoint request quotas
type RateLimitConfig struct {
	Enabled  bool              `toml:"enabled"`
	Default  middleware.Limits `toml:"default"`
	Navigate middleware.Limits `toml:"navigate"`
	POIs     middleware.Limits `toml:"pois"`
	Nearby   middleware.Limits `toml:"nearby"`
}

// Default returns the configuration used when no file or environment
// override is present
func Default() Config {
	return Config{
		Env: "development",
		Server: ServerConfig{
			Port:            5000,
			CORSOrigins:     "*",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: db.Config{
			Host:     "localhost",
			Port:     5432,
			Database: "sincitytravels",
			User:     "postgres",
			SSLMode:  "disable",
			MinConns: 2,
			MaxConns: 20,
		},
		Redis: cache.RedisConfig{
			Host: "localhost",
			Port: 6379,
		},
		Cache: CacheConfig{
			Backend: CacheBackendRedis,
			Dir:     "directions_cache",
			TTLDays: 30,
		},
		Directions: directions.Config{
			BaseURL: directions.DefaultBaseURL,
			Timeout: directions.DefaultTimeout,
		},
		Navigation: navigation.DefaultConfig(),
		Fares: FareConfig{
			AvgSpeedMPH: fare.DefaultAvgSpeedMPH,
			Uber:        fare.DefaultUberRates,
			Lyft:        fare.DefaultLyftRates,
		},
		RateLimits: RateLimitConfig{
			Enabled:  true,
			Default:  middleware.DefaultLimits,
			Navigate: middleware.NavigateLimits,
			POIs:     middleware.Limits{PerMinute: 60},
			Nearby:   middleware.Limits{PerMinute: 30},
		},
	}
}

// Load reads an optional TOML file over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("error decoding config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Env = getEnv("APP_ENV", c.Env)

	var err error
	if c.Server.Port, err = getEnvInt("API_PORT", c.Server.Port); err != nil {
		return err
	}
	c.Server.CORSOrigins = getEnv("CORS_ORIGINS", c.Server.CORSOrigins)

	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	if c.Database.Port, err = getEnvInt("DB_PORT", c.Database.Port); err != nil {
		return err
	}
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)
	c.Database.SimpleProtocol = getEnvBool("DB_SIMPLE_PROTOCOL", c.Database.SimpleProtocol)

	c.Redis.Host = getEnv("REDIS_HOST", c.Redis.Host)
	if c.Redis.Port, err = getEnvInt("REDIS_PORT", c.Redis.Port); err != nil {
		return err
	}
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	if c.Redis.DB, err = getEnvInt("REDIS_DB", c.Redis.DB); err != nil {
		return err
	}
	c.Redis.TLSEnabled = getEnvBool("REDIS_TLS_ENABLED", c.Redis.TLSEnabled)

	c.Cache.Backend = getEnv("DIRECTIONS_CACHE_BACKEND", c.Cache.Backend)
	c.Cache.Dir = getEnv("DIRECTIONS_CACHE_DIR", c.Cache.Dir)
	if c.Cache.TTLDays, err = getEnvInt("DIRECTIONS_CACHE_TTL_DAYS", c.Cache.TTLDays); err != nil {
		return err
	}

	c.Directions.APIKey = getEnv("GOOGLE_MAPS_API_KEY", c.Directions.APIKey)
	if c.Directions.Timeout, err = getEnvDuration("GOOGLE_API_TIMEOUT", c.Directions.Timeout); err != nil {
		return err
	}

	c.RateLimits.Enabled = getEnvBool("RATE_LIMIT_ENABLED", c.RateLimits.Enabled)

	return nil
}

// Validate rejects settings the service cannot start with
func (c Config) Validate() error {
	switch c.Cache.Backend {
	case CacheBackendRedis, CacheBackendFile:
	default:
		return fmt.Errorf("cache.backend must be %q or %q, got %q", CacheBackendRedis, CacheBackendFile, c.Cache.Backend)
	}
	if c.Cache.Backend == CacheBackendFile && c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required for the file backend")
	}
	if c.Cache.TTLDays <= 0 {
		return fmt.Errorf("cache.ttl_days must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Navigation.WalkThresholdMeters <= 0 {
		return fmt.Errorf("navigation.walk_threshold_meters must be positive")
	}
	if c.Navigation.WalkSpeed <= 0 {
		return fmt.Errorf("navigation.walk_speed_mps must be positive")
	}
	return nil
}

// IsProduction reports whether the service runs with production settings
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings or a bare number of seconds
func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
