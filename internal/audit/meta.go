package audit

import (
	"context"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Meta - атрибуты запроса, которые попадают в каждое событие.
type Meta struct {
	RequestID string
	RemoteIP  string
}

type metaKey struct{}

func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func MetaFromContext(ctx context.Context) (Meta, bool) {
	m, ok := ctx.Value(metaKey{}).(Meta)
	return m, ok
}

// MetaMiddleware кладет request id и адрес клиента в контекст.
// Ставится после chi middleware.RequestID и middleware.RealIP.
func MetaMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		ctx := WithMeta(r.Context(), Meta{
			RequestID: middleware.GetReqID(r.Context()),
			RemoteIP:  ip,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
