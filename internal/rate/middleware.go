package rate

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
	"go.uber.org/zap"
)

// Логин-форма заведомо меньше; длинное тело не разбираем.
const maxEmailBody = 64 << 10

// KeyFunc выделяет из запроса ключ ограничения. Пустой ключ - запрос не ограничивается.
type KeyFunc func(r *http.Request) string

// Middleware ограничивает частоту запросов на эндпоинт по ключу.
// Ошибка лимитера (Redis недоступен) не блокирует вход: fail-open с предупреждением.
func Middleware(l Limiter, endpoint string, keyFn KeyFunc, metrics *infra.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("rate-limit")
	if keyFn == nil {
		keyFn = ByIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := keyFn(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			res, err := l.Allow(r.Context(), endpoint+":"+k)
			if err != nil {
				logger.Warn("limiter unavailable, request let through",
					zap.String("endpoint", endpoint), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				if metrics != nil {
					metrics.RateLimited.WithLabelValues(endpoint).Inc()
				}
				httpx.WriteTooManyRequests(w, res.RetryAfter)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ByIP - ключ по адресу клиента.
func ByIP(r *http.Request) string {
	return ClientIP(r)
}

// ByEmail - ключ по полю email JSON-тела (подбор пароля к одному аккаунту с разных IP).
// Тело возвращается в запрос нетронутым.
func ByEmail(r *http.Request) string {
	raw, full, err := httpx.PeekBody(r, maxEmailBody)
	if err != nil || !full || len(raw) == 0 {
		return ""
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

// ClientIP - адрес клиента. chi middleware.RealIP уже переписал RemoteAddr из X-Forwarded-For.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// New собирает лимитер по конфигу. redis-драйвер без клиента откатывается на local.
func New(cfg infra.RateLimitConfig, client *redis.Client) Limiter {
	if cfg.Driver == "redis" && client != nil {
		return NewRedisLimiter(client, infra.RedisPrefixRateLimit, cfg.Max, cfg.Window)
	}
	return NewLocalLimiter(cfg.Max, cfg.Window)
}
