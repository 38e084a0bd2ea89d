package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
	"go.uber.org/zap"
)

// SessionManager - операции сессий, которые нужны HTTP-адаптеру.
type SessionManager interface {
	Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResult, error)
	Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.AuthResult, error)
	Logout(ctx context.Context, principalID string)
}

type AuthHandler struct {
	sessions SessionManager
	logger   *zap.Logger
}

func NewAuthHandler(s SessionManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{sessions: s, logger: logger.Named("auth-handler")}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	res, err := h.sessions.Register(r.Context(), req)
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}

	res, err := h.sessions.Login(r.Context(), req)
	if err != nil {
		// не уточняем, что именно неверно (логин или пароль) для защиты от перебора
		h.fail(w, "login", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		httpx.WriteError(w, fmt.Errorf("%w: refresh_token is required", domain.ErrInvalidInput))
		return
	}

	res, err := h.sessions.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// Logout - маршрут за гардом Authenticated, принципал в контексте есть.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, domain.ErrUnauthenticated)
		return
	}
	h.sessions.Logout(r.Context(), p.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, domain.ErrUnauthenticated)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p.View())
}

func (h *AuthHandler) fail(w http.ResponseWriter, op string, err error) {
	if status, _ := httpx.Classify(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	}
	httpx.WriteError(w, err)
}
