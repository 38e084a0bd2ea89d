package auth

import (
	"context"

	"github.com/xela07ax/workspace-api/internal/domain"
)

// Тип для ключа в контексте (избегаем коллизий)
type ctxKey int

const (
	principalKey ctxKey = iota
	tokenKey
)

// ContextWithPrincipal кладет аутентифицированного принципала в контекст.
func ContextWithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext достает принципала, если middleware его положил.
func PrincipalFromContext(ctx context.Context) (*domain.Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey).(*domain.Principal)
	return p, ok && p != nil
}

func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey, token)
}

func TokenFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}
