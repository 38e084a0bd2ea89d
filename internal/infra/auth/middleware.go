package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
	"go.uber.org/zap"
)

// Authenticator - access-путь Session Manager: токен -> принципал.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*domain.Principal, error)
}

// NewMiddleware проверяет Bearer-токен и прокидывает принципала в контекст.
// Отсутствие или невалидность токена здесь не отказ: решение принимает гард
// маршрута, у неразмеченных операций доступ открыт.
func NewMiddleware(a Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("auth-middleware")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := a.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthenticated) {
					logger.Debug("bearer token rejected", zap.String("path", r.URL.Path))
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("authentication failed", zap.Error(err))
				httpx.WriteError(w, err)
				return
			}

			ctx := ContextWithPrincipal(r.Context(), principal)
			ctx = ContextWithToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken извлекает токен из заголовка "Bearer <token>".
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
