// Package app wires the store, lock, cache and service from configuration
// so every binary builds them the same way.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/medical-appointments/internal/api"
	"github.com/hackgods/medical-appointments/internal/appointment"
	"github.com/hackgods/medical-appointments/internal/config"
	"github.com/hackgods/medical-appointments/internal/db"
	"github.com/hackgods/medical-appointments/internal/metrics"
	redisclient "github.com/hackgods/medical-appointments/internal/redis"
)

type App struct {
	Config  config.Config
	Logger  zerolog.Logger
	Repo    appointment.Repository
	Service *appointment.Service
	Metrics *metrics.Collector
	Pool    *pgxpool.Pool // nil with the memory store
	Redis   *redis.Client // nil when redis is disabled

	closers []func()
}

// New connects to the configured backends and builds the service.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, serviceName string) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewCollector(serviceName),
	}

	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN,
			db.WithMaxConns(cfg.DBMaxConns),
			db.WithApplicationName(serviceName),
		)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		a.Repo = appointment.NewPgRepository(pool)
		logger.Info().Msg("connected to Postgres")
	default:
		a.Repo = appointment.NewMemoryRepository()
		logger.Warn().Msg("using in-memory store, data is lost on exit")
	}

	var (
		locker redisclient.Locker
		cache  redisclient.Cache = redisclient.NoopCache{}
	)
	if cfg.RedisEnabled() {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.ClientOptions{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			PoolSize: cfg.RedisPoolSize,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		})
		locker = redisclient.NewRedisDoctorLocker(rdb, cfg.LockTTL, cfg.LockWait)
		cache = redisclient.NewRedisCache(rdb, "clinic:")
		logger.Info().Msg("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker(cfg.LockWait)
		logger.Warn().Msg("redis disabled, using in-process doctor lock")
	}

	a.Service = appointment.NewService(a.Repo, locker, cfg, logger,
		appointment.WithAgendaCache(cache),
		appointment.WithRecorder(a.Metrics),
	)

	return a, nil
}

// HealthChecks lists the readiness checks for the connected backends.
// Postgres is critical; Redis only degrades the service.
func (a *App) HealthChecks() []api.HealthCheck {
	var checks []api.HealthCheck
	if a.Pool != nil {
		checks = append(checks, api.HealthCheck{
			Name:     "postgres",
			Critical: true,
			Ping:     a.Pool.Ping,
		})
	}
	if a.Redis != nil {
		checks = append(checks, api.HealthCheck{
			Name: "redis",
			Ping: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		})
	}
	return checks
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
