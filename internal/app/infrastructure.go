package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prperemyshlev/gamelib-auth/internal/config"
	"github.com/prperemyshlev/gamelib-auth/migrations"
	"github.com/prperemyshlev/gamelib-auth/pkg/database"
	"github.com/prperemyshlev/gamelib-auth/pkg/observability"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/zap"
)

type Infrastructure interface {
	Postgres() *database.Postgres
	Redis() *database.Redis
	Logger() *zap.Logger
	MetricsHandler() http.Handler
	MeterProvider() *metric.MeterProvider

	Shutdown(ctx context.Context) error
}

type infrastructure struct {
	postgres       *database.Postgres
	redis          *database.Redis
	logger         *zap.Logger
	metricsHandler http.Handler
	meterProvider  *metric.MeterProvider

	// closers release opened connections, last opened first
	closers []func() error
}

var _ Infrastructure = &infrastructure{}

// NewInfrastructure connects every backing service. On failure whatever was
// already opened is closed again.
func NewInfrastructure(ctx context.Context, cfg config.Config) (_ *infrastructure, err error) {
	i := &infrastructure{}
	defer func() {
		if err != nil {
			_ = i.closeAll()
		}
	}()

	i.logger, err = observability.InitLogger(cfg.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	i.postgres, err = database.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	i.closers = append(i.closers, i.postgres.Close)
	i.logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Postgres.Host),
		zap.String("database", cfg.Postgres.DBName),
	)

	if cfg.Postgres.MigrateOnBoot {
		version, err := database.Migrate(i.postgres, migrations.FS)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate PostgreSQL: %w", err)
		}
		i.logger.Info("Database schema is up to date", zap.Uint("version", version))
	}

	i.redis, err = database.NewRedis(ctx, redisOptions(cfg.Redis))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	i.closers = append(i.closers, i.redis.Close)
	i.logger.Info("Connected to Redis",
		zap.String("addr", i.redis.Addr()),
		zap.Int("pool_size", cfg.Redis.PoolSize),
	)

	i.meterProvider, i.metricsHandler, err = observability.InitTelemetry(serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	return i, nil
}

func redisOptions(cfg config.RedisConfig) database.RedisOptions {
	return database.RedisOptions{
		Addr:         cfg.Address(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout.Duration,
		ReadTimeout:  cfg.ReadTimeout.Duration,
		WriteTimeout: cfg.WriteTimeout.Duration,
	}
}

func (i *infrastructure) Postgres() *database.Postgres {
	return i.postgres
}

func (i *infrastructure) Redis() *database.Redis {
	return i.redis
}

func (i *infrastructure) Logger() *zap.Logger {
	return i.logger
}

func (i *infrastructure) MetricsHandler() http.Handler {
	return i.metricsHandler
}

func (i *infrastructure) MeterProvider() *metric.MeterProvider {
	return i.meterProvider
}

func (i *infrastructure) closeAll() error {
	var errs []error
	for n := len(i.closers) - 1; n >= 0; n-- {
		errs = append(errs, i.closers[n]())
	}
	i.closers = nil
	return errors.Join(errs...)
}

// Shutdown closes the connections, then flushes metrics and the logger
func (i *infrastructure) Shutdown(ctx context.Context) error {
	closeErr := i.closeAll()
	return errors.Join(closeErr, observability.Shutdown(ctx, i.meterProvider, i.logger))
}
