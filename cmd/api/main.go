package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sincitytravels/navigator/internal/api"
	"github.com/sincitytravels/navigator/internal/cache"
	"github.com/sincitytravels/navigator/internal/config"
	"github.com/sincitytravels/navigator/internal/db"
	"github.com/sincitytravels/navigator/internal/directions"
	"github.com/sincitytravels/navigator/internal/logging"
	"github.com/sincitytravels/navigator/internal/middleware"
	"github.com/sincitytravels/navigator/internal/navigation"
	"github.com/sincitytravels/navigator/internal/observability"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", getEnv("NAVIGATOR_CONFIG", "navigator.toml"), "path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.NewNamed(cfg.Env, "navigator")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting navigator API", zap.Int("port", cfg.Server.Port))

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("database connection established")

	// Redis is optional: without it the cache falls back to disk and rate
	// limiting is disabled
	rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, continuing without it", zap.Error(err))
		rdb = nil
	} else {
		defer func() { _ = rdb.Close() }()
		log.Info("redis connection established")
	}

	metrics, err := observability.NewCollector(nil)
	if err != nil {
		log.Fatal("failed to register metrics", zap.Error(err))
	}

	dirCache := cache.New(cacheBackend(cfg, rdb, log), cfg.Cache.TTL(), log.Named("cache"), metrics)
	provider := directions.NewClient(cfg.Directions, dirCache, log.Named("directions"), metrics)
	if !provider.Available() {
		log.Warn("GOOGLE_MAPS_API_KEY not set, outdoor legs use straight-line geometry")
	}

	store := db.NewStore(pool)
	composer := navigation.NewComposer(store, provider, cfg.Fares.Estimator(), cfg.Navigation, log.Named("composer"), metrics)

	checks := healthChecks(pool, rdb)
	handler := api.NewHandler(composer, store, cfg.Navigation.WalkThresholdMeters, checks, log.Named("api"))

	app := api.NewApp(api.ServerOptions{
		Handler:      handler,
		Limiter:      middleware.NewRateLimiter(rdb, log.Named("ratelimit")),
		RateLimits:   cfg.RateLimits,
		Metrics:      metrics,
		Logger:       log.Named("http"),
		CORSOrigins:  cfg.Server.CORSOrigins,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info("shutting down gracefully")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			log.Error("error during shutdown", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("server listening", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("failed to start server", zap.Error(err))
	}
}

// cacheBackend picks the configured directions cache store. The Redis
// backend degrades to disk when no client is available.
func cacheBackend(cfg config.Config, rdb *redis.Client, log *zap.Logger) cache.Backend {
	if cfg.Cache.Backend == config.CacheBackendRedis && rdb != nil {
		// expire a day after the read-side TTL so stale keys are reclaimed
		return cache.NewRedisBackend(rdb, cfg.Cache.TTL()+24*time.Hour)
	}
	if cfg.Cache.Backend == config.CacheBackendRedis {
		log.Warn("directions cache falling back to disk", zap.String("dir", cfg.Cache.Dir))
	}
	return cache.NewFileBackend(cfg.Cache.Dir)
}

// healthChecks probes the database and, when configured, Redis. Running
// without Redis is a supported mode so it shows as disabled.
func healthChecks(pool *pgxpool.Pool, rdb *redis.Client) []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "database", Check: func(ctx context.Context) error { return db.HealthCheck(ctx, pool) }},
	}
	redisCheck := api.HealthCheck{Name: "redis"}
	if rdb != nil {
		redisCheck.Check = func(ctx context.Context) error { return cache.HealthCheck(ctx, rdb) }
	}
	return append(checks, redisCheck)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
