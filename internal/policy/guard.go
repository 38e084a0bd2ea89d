package policy

import (
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
	"go.uber.org/zap"
)

// WorkspaceParam - имя параметра пути с идентификатором workspace.
const WorkspaceParam = "workspaceId"

// Тело подглядываем не больше этого объема.
const maxPeekBody = 1 << 20

// Guard - middleware маршрута: принципал из контекста + Requirement -> решение.
// Требование прикрепляется при регистрации маршрута: r.With(guard.Require(req)).Post(...).
type Guard struct {
	enforcer Enforcer
	metrics  *infra.Metrics
	auditor  audit.Auditor
	logger   *zap.Logger
}

func NewGuard(enforcer Enforcer, metrics *infra.Metrics, auditor audit.Auditor, logger *zap.Logger) *Guard {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &Guard{
		enforcer: enforcer,
		metrics:  metrics,
		auditor:  auditor,
		logger:   logger.Named("guard"),
	}
}

// Require возвращает middleware для конкретного требования. nil - маршрут открыт.
func (g *Guard) Require(req *domain.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := auth.PrincipalFromContext(r.Context())
			rc := NewHTTPRequestContext(r)

			err := g.enforcer.Authorize(r.Context(), p, req, rc)
			g.observe(err)
			if err != nil {
				if rc.BodyTooLarge() {
					httpx.WritePayloadTooLarge(w)
					return
				}
				if p != nil && errors.Is(err, domain.ErrForbidden) {
					g.auditor.Record(r.Context(), audit.Event{
						UserID:  p.ID,
						Email:   p.Email,
						Action:  audit.ActionAuthorize,
						Outcome: audit.OutcomeDenied,
						Reason:  r.Method + " " + r.URL.Path + ": " + err.Error(),
					})
				}
				httpx.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Guard) observe(err error) {
	if g.metrics == nil {
		return
	}
	g.metrics.AuthzDecisions.WithLabelValues("http", Decision(err)).Inc()
}

// Decision - метка решения для метрик.
func Decision(err error) string {
	switch {
	case err == nil:
		return "allow"
	case errors.Is(err, domain.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, domain.ErrForbidden):
		return "deny"
	default:
		return "error"
	}
}

// HTTPRequestContext извлекает workspace из пути или, если его там нет, из JSON-тела.
type HTTPRequestContext struct {
	r *http.Request

	peeked   bool
	bodyWS   string
	tooLarge bool
}

func NewHTTPRequestContext(r *http.Request) *HTTPRequestContext {
	return &HTTPRequestContext{r: r}
}

// BodyTooLarge - workspace искали в теле, но оно длиннее лимита разбора.
func (c *HTTPRequestContext) BodyTooLarge() bool {
	return c.tooLarge
}

func (c *HTTPRequestContext) Param(name string) string {
	return chi.URLParam(c.r, name)
}

func (c *HTTPRequestContext) WorkspaceID() (string, bool) {
	if id := strings.TrimSpace(c.Param(WorkspaceParam)); id != "" {
		return id, true
	}
	if !c.peeked {
		c.bodyWS = c.peekBody()
		c.peeked = true
	}
	return c.bodyWS, c.bodyWS != ""
}

// peekBody читает тело, возвращает его обратно в запрос и ищет поле workspaceId / workspace_id.
func (c *HTTPRequestContext) peekBody() string {
	if c.r.Body == nil || c.r.Body == http.NoBody {
		return ""
	}
	if ct := c.r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil || mt != "application/json" {
			return ""
		}
	}

	raw, full, err := httpx.PeekBody(c.r, maxPeekBody)
	if err == nil && !full {
		c.tooLarge = true
	}
	if err != nil || len(raw) == 0 {
		return ""
	}

	var body struct {
		WorkspaceID      string `json:"workspaceId"`
		WorkspaceIDSnake string `json:"workspace_id"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if id := strings.TrimSpace(body.WorkspaceID); id != "" {
		return id
	}
	return strings.TrimSpace(body.WorkspaceIDSnake)
}
