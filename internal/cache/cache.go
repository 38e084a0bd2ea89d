// Package cache - Token Cache: key/value с TTL на ключ.
//
// Бэкенды:
//   - Redis (распределенный, для продакшена)
//   - Memory (in-process, для разработки и тестов)
//
// Поверх Redis ставится Breaker, чтобы при падении кэша отвечать быстро, а не висеть на таймаутах.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

// Client - операции, которые нужны Session Manager.
type Client interface {
	// Get возвращает значение или ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set пишет значение. ttl == 0 - без истечения.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Delete удаляет ключ. Отсутствие ключа не ошибка.
	Delete(ctx context.Context, key string) error
}

var ErrNotFound = errors.New("cache: key not found")

// IsNotFound проверяет, что ключа нет (или он истек).
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// New собирает клиента кэша по конфигу. rdb нужен только драйверу redis.
func New(cfg infra.CacheConfig, rdb *redis.Client, metrics *infra.Metrics, logger *zap.Logger) (Client, error) {
	switch cfg.Driver {
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("cache: redis driver requires a redis client")
		}
		return NewBreaker(NewRedis(rdb, cfg.Prefix), BreakerSettings{
			MaxRequests: cfg.BreakerMaxRequests,
			Interval:    cfg.BreakerInterval,
			Timeout:     cfg.BreakerTimeout,
			Failures:    cfg.BreakerFailures,
		}, metrics, logger), nil
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("cache: unknown driver %q", cfg.Driver)
	}
}
