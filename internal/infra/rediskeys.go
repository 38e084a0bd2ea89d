package infra

import "fmt"

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "wsapi"
)

// Ключи для Sets (состояние)
const (
	RedisKeyBlockedUsers = RedisNamespace + ":users:blocked_set"
	RedisKeyLockWarmup   = RedisNamespace + ":lock:warmup:blocked"
	RedisPrefixRateLimit = RedisNamespace + ":rl:"
)

// Каналы Pub/Sub (события)
const (
	RedisChanKillSwitch = RedisNamespace + ":users:kill-switch-signal"
)

// RefreshRecordKey - ключ refresh-записи принципала. Пространство ключей
// разбито по id принципала, блокировок не берем.
// Префикс кэша (cache.prefix) добавляется клиентом кэша.
func RefreshRecordKey(userID string) string {
	return fmt.Sprintf("refresh:%s", userID)
}
