package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
	"go.uber.org/zap"
)

// AccountAdmin - kill switch аккаунтов.
type AccountAdmin interface {
	Block(ctx context.Context, actor *domain.Principal, userID string) error
	Unblock(ctx context.Context, actor *domain.Principal, userID string) error
}

type AdminHandler struct {
	accounts AccountAdmin
	logger   *zap.Logger
}

func NewAdminHandler(a AccountAdmin, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{accounts: a, logger: logger.Named("admin-handler")}
}

func (h *AdminHandler) Block(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.accounts.Block, "block")
}

func (h *AdminHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.accounts.Unblock, "unblock")
}

func (h *AdminHandler) toggle(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, actor *domain.Principal, userID string) error,
	name string,
) {
	actor, _ := auth.PrincipalFromContext(r.Context())
	userID := chi.URLParam(r, "userId")

	// Ждем и БД, и сигнала в Redis: после ответа блокировка действует
	if err := action(r.Context(), actor, userID); err != nil {
		if status, _ := httpx.Classify(err); status >= http.StatusInternalServerError {
			h.logger.Error("account state change failed",
				zap.String("action", name), zap.String("user_id", userID), zap.Error(err))
		}
		httpx.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
