// Package app opens the shared infrastructure used by the API and worker
// binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-pressing/internal/catalog"
	"github.com/noah-isme/backend-pressing/internal/config"
	"github.com/noah-isme/backend-pressing/internal/events"
	"github.com/noah-isme/backend-pressing/internal/health"
	"github.com/noah-isme/backend-pressing/internal/migrations"
	"github.com/noah-isme/backend-pressing/internal/obs"
	"github.com/noah-isme/backend-pressing/internal/resilience"
)

// Dependencies holds the connections shared across modules.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	DB     *pgxpool.Pool
	Redis  *redis.Client

	shutdownTracer func(context.Context) error
	shutdownMeter  func(context.Context) error
}

// New connects to Postgres and Redis, applies migrations when enabled and
// installs tracing. component names the binary in logs and the
// application_name of database sessions.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger, component string) (*Dependencies, error) {
	d := &Dependencies{Config: cfg, Logger: logger}

	shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:     cfg.TracingEnabled,
		ServiceName: cfg.ServiceName + "-" + component,
		Endpoint:    cfg.TracingEndpoint,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("tracing_init_failed")
		shutdown = func(context.Context) error { return nil }
	}
	d.shutdownTracer = shutdown

	shutdownMeter, err := obs.InitMeter(ctx, obs.MeterConfig{
		Enabled:     cfg.OTelMetricsEnabled,
		ServiceName: cfg.ServiceName + "-" + component,
		Endpoint:    cfg.OTelMetricsEndpoint,
		Interval:    cfg.OTelMetricsInterval,
		Environment: cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("meter_init_failed")
		shutdownMeter = func(context.Context) error { return nil }
	}
	d.shutdownMeter = shutdownMeter

	if cfg.RunMigrations {
		if err := migrations.Up(cfg.DatabaseURL, logger); err != nil {
			d.Close()
			return nil, err
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "pressing-" + component
	d.DB, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := d.DB.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	d.Redis = redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(d.Redis); err != nil {
		logger.Error().Err(err).Msg("redis_tracing_instrument_failed")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(d.Redis); err != nil {
			logger.Error().Err(err).Msg("redis_metrics_instrument_failed")
		}
	}
	if err := d.Redis.Ping(ctx).Err(); err != nil {
		d.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return d, nil
}

// AsynqRedis returns the connection options asynq needs for the same Redis.
func (d *Dependencies) AsynqRedis() (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(d.Config.RedisURL)
}

// EventStore persists domain events in Postgres.
func (d *Dependencies) EventStore() events.PGStore {
	return events.PGStore{DB: d.DB}
}

// CatalogLoader builds the cached, breaker-guarded catalog reader.
func (d *Dependencies) CatalogLoader() (*catalog.Loader, error) {
	breaker := resilience.NewBreaker(d.Config.CatalogBreakerMinReq, d.Config.CatalogBreakerRatio, d.Config.CatalogBreakerOpenFor).
		WithTarget("catalog")
	return catalog.NewLoader(catalog.LoaderConfig{
		Queries: catalog.PGQueries{DB: d.DB},
		Cache:   catalog.NewCache(d.Redis, d.Config.CatalogCacheTTL),
		Breaker: breaker,
		Logger:  d.Logger.With().Str("module", "catalog").Logger(),
	})
}

// Checkers lists readiness checks for the shared connections.
func (d *Dependencies) Checkers() []health.Checker {
	return []health.Checker{
		{Name: "postgres", Check: func(ctx context.Context) error {
			if d.DB == nil {
				return errors.New("db not configured")
			}
			return d.DB.Ping(ctx)
		}},
		{Name: "redis", Check: func(ctx context.Context) error {
			if d.Redis == nil {
				return errors.New("redis not configured")
			}
			return d.Redis.Ping(ctx).Err()
		}},
	}
}

// Close releases connections and flushes pending spans. Safe on a partially
// built value.
func (d *Dependencies) Close() {
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("redis_close_failed")
		}
	}
	if d.DB != nil {
		d.DB.Close()
	}
	if d.shutdownMeter != nil {
		if err := d.shutdownMeter(context.Background()); err != nil {
			d.Logger.Error().Err(err).Msg("meter_shutdown_failed")
		}
	}
	if d.shutdownTracer != nil {
		if err := d.shutdownTracer(context.Background()); err != nil {
			d.Logger.Error().Err(err).Msg("tracer_shutdown_failed")
		}
	}
}
