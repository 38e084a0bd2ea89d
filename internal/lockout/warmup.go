package lockout

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

// BlockedSource - источник правды о заблокированных пользователях (Postgres).
type BlockedSource interface {
	ListBlocked(ctx context.Context) ([]string, error)
}

// Warmup прогревает L1 из БД и, если Redis set пуст, заливает его.
// Заливку делает один инстанс: распределенная блокировка через SetNX.
func (m *Manager) Warmup(ctx context.Context, src BlockedSource) error {
	ids, err := src.ListBlocked(ctx)
	if err != nil {
		return fmt.Errorf("lockout: warmup source: %w", err)
	}

	// 1. L1
	for _, id := range ids {
		m.Apply(id, true)
	}
	if m.rdb == nil {
		return nil
	}

	// 2. Только один инстанс обновляет Redis
	ok, err := m.rdb.SetNX(ctx, infra.RedisKeyLockWarmup, "processing", 30*time.Second).Result()
	if err != nil || !ok {
		return nil // Либо ошибка сети, либо другой уже греет кэш
	}

	// 3. Проверка наполненности Redis
	count, err := m.rdb.SCard(ctx, infra.RedisKeyBlockedUsers).Result()
	if err != nil {
		count = 0
		m.logger.Warn("could not check Redis set size, proceeding with warm-up",
			zap.String("key", infra.RedisKeyBlockedUsers), zap.Error(err))
	}

	// 4. Redis пуст, а в БД блокировки есть - заливаем
	if count == 0 && len(ids) > 0 {
		m.logger.Info("blocked set is empty, performing warm-up from DB",
			zap.Int("count", len(ids)))

		pipe := m.rdb.Pipeline()
		for _, id := range ids {
			pipe.SAdd(ctx, infra.RedisKeyBlockedUsers, id)
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("lockout: warmup redis: %w", err)
		}
	}
	return nil
}
