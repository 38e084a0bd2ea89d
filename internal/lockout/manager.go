// Package lockout - kill switch аккаунтов.
//
// Источник правды - users.status в Postgres, рабочая копия - Redis set, а каждый инстанс
// держит L1-копию в памяти и обновляет ее по сигналам из Redis pub/sub.
// На горячем пути (Authenticate) проверяется только L1.
package lockout

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

type Manager struct {
	mu      sync.RWMutex
	blocked map[string]struct{}

	rdb    *redis.Client
	logger *zap.Logger
}

func NewManager(rdb *redis.Client, logger *zap.Logger) *Manager {
	return &Manager{
		blocked: make(map[string]struct{}),
		rdb:     rdb,
		logger:  logger.Named("lockout"),
	}
}

// IsBlocked - проверка по L1, без сетевых вызовов.
func (m *Manager) IsBlocked(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocked[userID]
	return ok
}

// Apply обновляет L1 для одного пользователя.
func (m *Manager) Apply(userID string, blocked bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if blocked {
		m.blocked[userID] = struct{}{}
		return
	}
	delete(m.blocked, userID)
}

// Replace целиком заменяет L1 (синхронизация после переподключения).
func (m *Manager) Replace(ids []string) {
	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	m.mu.Lock()
	m.blocked = next
	m.mu.Unlock()
}

// Count - размер L1.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocked)
}

// Init загружает текущее состояние блокировок из Redis
func (m *Manager) Init(ctx context.Context) error {
	if m.rdb == nil {
		return nil
	}
	ids, err := m.rdb.SMembers(ctx, infra.RedisKeyBlockedUsers).Result()
	if err != nil {
		return fmt.Errorf("lockout: load blocked set: %w", err)
	}
	m.Replace(ids)
	m.logger.Info("blocked set loaded", zap.Int("count", len(ids)))
	return nil
}

// Publish фиксирует блокировку в Redis и рассылает сигнал всем инстансам.
// Локальная копия обновляется сразу, не дожидаясь эха из pub/sub.
func (m *Manager) Publish(ctx context.Context, userID string, blocked bool) error {
	m.Apply(userID, blocked)
	if m.rdb == nil {
		return nil
	}

	pipe := m.rdb.TxPipeline()
	if blocked {
		pipe.SAdd(ctx, infra.RedisKeyBlockedUsers, userID)
	} else {
		pipe.SRem(ctx, infra.RedisKeyBlockedUsers, userID)
	}
	pipe.Publish(ctx, infra.RedisChanKillSwitch, formatSignal(userID, blocked))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("lockout: signal delivery: %w", err)
	}
	return nil
}
