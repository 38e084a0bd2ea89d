package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OpenPostgres открывает пул и ждет базу с экспоненциальным бэкоффом.
// Ретраи живут только здесь, на старте процесса: сервисный слой не ретраит.
func OpenPostgres(ctx context.Context, cfg DatabaseConfig, logger *zap.Logger) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = waitFor(ctx, cfg.ConnectAttempts, logger.With(zap.String("resource", "postgres")), func(ctx context.Context) error {
		return db.PingContext(ctx)
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres unreachable: %w", err)
	}
	return db, nil
}

// OpenRedis создает клиента и проверяет соединение тем же способом.
func OpenRedis(ctx context.Context, cfg RedisConfig, attempts uint, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := waitFor(ctx, attempts, logger.With(zap.String("resource", "redis")), func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}
	return rdb, nil
}

func waitFor(ctx context.Context, attempts uint, logger *zap.Logger, ping func(ctx context.Context) error) error {
	if attempts == 0 {
		attempts = 1
	}
	var n uint
	r := retry.New(
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.DelayType(retry.BackOffDelay),
	)
	return r.Do(func() error {
		n++
		pCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()

		if err := ping(pCtx); err != nil {
			logger.Warn("dependency not ready", zap.Uint("attempt", n), zap.Error(err))
			return err
		}
		return nil
	})
}
