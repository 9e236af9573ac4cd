package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type poolSettings struct {
	maxConns int32
	appName  string
}

// PoolOption tunes the pgx pool built by ConnectPostgres.
type PoolOption func(*poolSettings)

func WithMaxConns(n int) PoolOption {
	return func(s *poolSettings) {
		if n > 0 {
			s.maxConns = int32(n)
		}
	}
}

// WithApplicationName tags connections in pg_stat_activity.
func WithApplicationName(name string) PoolOption {
	return func(s *poolSettings) { s.appName = name }
}

// ConnectPostgres opens a pool and pings it. Sessions run in UTC so that
// timestamptz values and the overlap constraint agree with the service.
func ConnectPostgres(ctx context.Context, dsn string, opts ...PoolOption) (*pgxpool.Pool, error) {
	settings := poolSettings{maxConns: 10, appName: "medical-appointments"}
	for _, opt := range opts {
		opt(&settings)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = settings.maxConns
	cfg.MinConns = 1
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 15 * time.Minute
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	if settings.appName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = settings.appName
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}
