package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra/auth"
	"github.com/xela07ax/workspace-api/internal/infra/httpx"
)

// PermissionResolver раскрывает роль в workspace в набор прав.
type PermissionResolver interface {
	PermissionsFor(role domain.WorkspaceRole) []domain.Permission
}

type WorkspaceHandler struct {
	perms PermissionResolver
}

func NewWorkspaceHandler(perms PermissionResolver) *WorkspaceHandler {
	return &WorkspaceHandler{perms: perms}
}

type WorkspaceAccess struct {
	WorkspaceID string               `json:"workspace_id"`
	Role        domain.WorkspaceRole `json:"role"`
	Permissions []domain.Permission  `json:"permissions"`
}

// Access - роль вызывающего в workspace и права, которые она дает.
// Членство уже проверено гардом маршрута.
func (h *WorkspaceHandler) Access(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, domain.ErrUnauthenticated)
		return
	}
	wsID := chi.URLParam(r, "workspaceId")
	role, member := p.WorkspaceRole(wsID)
	if !member {
		httpx.WriteError(w, &domain.ForbiddenError{Categories: []string{domain.CategoryWorkspaceRole}})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, WorkspaceAccess{
		WorkspaceID: wsID,
		Role:        role,
		Permissions: h.perms.PermissionsFor(role),
	})
}
