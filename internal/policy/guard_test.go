package policy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"go.uber.org/zap"
)

type spyAuditor struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *spyAuditor) Record(_ context.Context, e audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// withPrincipal имитирует auth middleware.
func withPrincipal(p *domain.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p != nil {
				r = r.WithContext(auth.ContextWithPrincipal(r.Context(), p))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func newTestRouter(p *domain.Principal, spy *spyAuditor) http.Handler {
	g := NewGuard(newEvaluator(), infra.NewMetrics(nil), spy, zap.NewNop())
	wsAny := &domain.Requirement{
		WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceOwner, domain.WorkspaceAdmin, domain.WorkspaceMember},
		Operator:       domain.OperatorAny,
	}

	r := chi.NewRouter()
	r.Use(withPrincipal(p))
	r.Get("/open", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.With(g.Require(domain.Authenticated())).Get("/me", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(g.Require(wsAny)).Get("/workspaces/{workspaceId}/access", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.With(g.Require(wsAny)).Post("/documents", func(w http.ResponseWriter, r *http.Request) {
		// Тело должно остаться доступным обработчику
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	})
	return r
}

func TestGuard_Unauthenticated(t *testing.T) {
	h := newTestRouter(nil, &spyAuditor{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/open", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGuard_WorkspaceFromPath(t *testing.T) {
	spy := &spyAuditor{}
	h := newTestRouter(userPrincipal(), spy)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/W1/access", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/workspaces/W2/access", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "forbidden", body["error"])
	assert.Contains(t, body["message"], domain.CategoryWorkspaceRole)

	require.Len(t, spy.events, 1)
	assert.Equal(t, audit.ActionAuthorize, spy.events[0].Action)
	assert.Equal(t, audit.OutcomeDenied, spy.events[0].Outcome)
	assert.Equal(t, "u1", spy.events[0].UserID)
}

func TestGuard_WorkspaceFromBody(t *testing.T) {
	h := newTestRouter(userPrincipal(), &spyAuditor{})

	payload := `{"workspaceId":"W1","title":"doc"}`
	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"workspace_id":"W1"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Без workspace - отказ, а не пропуск
	req = httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(`{"title":"doc"}`))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGuard_OversizedBody(t *testing.T) {
	spy := &spyAuditor{}
	h := newTestRouter(userPrincipal(), spy)

	payload := `{"workspaceId":"W1","blob":"` + strings.Repeat("x", maxPeekBody) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/documents", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "payload_too_large", body["error"])
	assert.Empty(t, spy.events)
}

func TestDecision(t *testing.T) {
	assert.Equal(t, "allow", Decision(nil))
	assert.Equal(t, "unauthenticated", Decision(domain.ErrUnauthenticated))
	assert.Equal(t, "deny", Decision(&domain.ForbiddenError{Categories: []string{domain.CategoryRole}}))
	assert.Equal(t, "error", Decision(domain.ErrFatal))
}
