package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/workspace-api/internal/api/handler"
	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/policy"
	"github.com/xela07ax/workspace-api/internal/rate"
	"go.uber.org/zap"
)

// Deps - то, что собирает main.
type Deps struct {
	Authenticator auth.Authenticator
	Guard         *policy.Guard
	Limiter       rate.Limiter // nil - без ограничения частоты
	Metrics       *infra.Metrics

	AuthHandler      *handler.AuthHandler
	WorkspaceHandler *handler.WorkspaceHandler
	AdminHandler     *handler.AdminHandler
}

type Server struct {
	router *chi.Mux
	http   *http.Server
	deps   Deps
	logger *zap.Logger
}

func New(cfg infra.ServerConfig, deps Deps, logger *zap.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		deps:   deps,
		logger: logger.Named("http"),
	}
	s.routes()
	s.http = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() {
	r := s.router
	g := s.deps.Guard

	// Требования объявляются данными при регистрации маршрута
	authenticated := domain.Authenticated()
	workspaceMember := &domain.Requirement{
		WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceOwner, domain.WorkspaceAdmin, domain.WorkspaceMember},
		Operator:       domain.OperatorAny,
	}
	userAdmin := &domain.Requirement{
		Roles:       []domain.GlobalRole{domain.RoleAdmin},
		Permissions: []domain.Permission{domain.PermManageUsers},
		Operator:    domain.OperatorAll,
	}

	// --- 1. Глобальные инфраструктурные Middleware (для всех) ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(audit.MetaMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Принципал кладется в контекст, если токен валиден. Решение принимает гард маршрута.
	r.Route("/v1", func(r chi.Router) {
		r.Use(auth.NewMiddleware(s.deps.Authenticator, s.logger))

		r.Route("/auth", func(r chi.Router) {
			// --- ПУБЛИЧНЫЕ РОУТЫ с ограничением частоты ---
			r.With(s.limit("register", rate.ByIP)...).Post("/register", s.deps.AuthHandler.Register)
			r.With(append(s.limit("login", rate.ByIP), s.limit("login-account", rate.ByEmail)...)...).
				Post("/login", s.deps.AuthHandler.Login)
			r.With(s.limit("refresh", rate.ByIP)...).Post("/refresh", s.deps.AuthHandler.Refresh)

			r.With(g.Require(authenticated)).Post("/logout", s.deps.AuthHandler.Logout)
			r.With(g.Require(authenticated)).Get("/me", s.deps.AuthHandler.Me)
		})

		r.With(g.Require(workspaceMember)).Get("/workspaces/{workspaceId}/access", s.deps.WorkspaceHandler.Access)

		// Kill-switch аккаунтов
		r.Route("/admin/users/{userId}", func(r chi.Router) {
			r.Use(g.Require(userAdmin))
			r.Post("/block", s.deps.AdminHandler.Block)
			r.Post("/unblock", s.deps.AdminHandler.Unblock)
		})
	})
}

// limit - лимитеры эндпоинта. Без лимитера цепочка пустая.
func (s *Server) limit(endpoint string, key rate.KeyFunc) []func(http.Handler) http.Handler {
	if s.deps.Limiter == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{
		rate.Middleware(s.deps.Limiter, endpoint, key, s.deps.Metrics, s.logger),
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start блокирует до остановки. Штатная остановка ошибкой не считается.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
