package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/workspace-api/internal/domain"
	"go.uber.org/zap"
)

// staticRC - контекст запроса с заранее известным workspace.
type staticRC struct {
	ws     string
	params map[string]string
}

func (s staticRC) WorkspaceID() (string, bool) { return s.ws, s.ws != "" }
func (s staticRC) Param(name string) string    { return s.params[name] }

func newEvaluator() *Evaluator {
	return NewEvaluator(DefaultPermissionTable(), zap.NewNop())
}

func userPrincipal() *domain.Principal {
	return &domain.Principal{
		ID:         "u1",
		Email:      "user@example.com",
		Roles:      []domain.GlobalRole{domain.RoleUser},
		Workspaces: []domain.Membership{{WorkspaceID: "W1", Role: domain.WorkspaceMember}},
	}
}

func unmet(t *testing.T, err error) []string {
	t.Helper()
	var fe *domain.ForbiddenError
	require.ErrorAs(t, err, &fe)
	require.ErrorIs(t, err, domain.ErrForbidden)
	return fe.Categories
}

func TestAuthorize_NoRequirementAllows(t *testing.T) {
	e := newEvaluator()
	assert.NoError(t, e.Authorize(context.Background(), nil, nil, nil))
}

func TestAuthorize_RequirementWithoutPrincipal(t *testing.T) {
	e := newEvaluator()
	err := e.Authorize(context.Background(), nil, domain.Authenticated(), nil)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
	assert.NotErrorIs(t, err, domain.ErrForbidden)
}

func TestAuthorize_AuthenticatedOnly(t *testing.T) {
	e := newEvaluator()
	assert.NoError(t, e.Authorize(context.Background(), userPrincipal(), domain.Authenticated(), nil))
}

func TestAuthorize_GlobalRoles(t *testing.T) {
	e := newEvaluator()
	p := userPrincipal()

	err := e.Authorize(context.Background(), p, &domain.Requirement{
		Roles:    []domain.GlobalRole{domain.RoleAdmin},
		Operator: domain.OperatorAll,
	}, nil)
	assert.Equal(t, []string{domain.CategoryRole}, unmet(t, err))

	err = e.Authorize(context.Background(), p, &domain.Requirement{
		Roles:    []domain.GlobalRole{domain.RoleAdmin, domain.RoleUser},
		Operator: domain.OperatorAny,
	}, nil)
	assert.NoError(t, err)

	// ALL требует надмножество
	err = e.Authorize(context.Background(), p, &domain.Requirement{
		Roles: []domain.GlobalRole{domain.RoleAdmin, domain.RoleUser},
	}, nil)
	assert.Error(t, err)
}

func TestAuthorize_RolesAreCaseSensitiveClosedEnum(t *testing.T) {
	e := newEvaluator()
	p := &domain.Principal{ID: "u2", Roles: []domain.GlobalRole{"SUPERUSER", "admin"}}

	for _, req := range []*domain.Requirement{
		{Roles: []domain.GlobalRole{"admin"}},
		{Roles: []domain.GlobalRole{"SUPERUSER"}},
		{Roles: []domain.GlobalRole{domain.RoleAdmin}, Operator: domain.OperatorAny},
	} {
		assert.Error(t, e.Authorize(context.Background(), p, req, nil))
	}
}

func TestAuthorize_WorkspaceRoles(t *testing.T) {
	e := newEvaluator()
	p := userPrincipal()
	req := &domain.Requirement{WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceAdmin, domain.WorkspaceOwner}}

	t.Run("member denied on W1", func(t *testing.T) {
		err := e.Authorize(context.Background(), p, req, staticRC{ws: "W1"})
		assert.Equal(t, []string{domain.CategoryWorkspaceRole}, unmet(t, err))
	})

	t.Run("unresolvable workspace denied", func(t *testing.T) {
		anyMember := &domain.Requirement{
			WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceMember},
			Operator:       domain.OperatorAny,
		}
		assert.Error(t, e.Authorize(context.Background(), p, anyMember, staticRC{}))
		assert.Error(t, e.Authorize(context.Background(), p, anyMember, nil))
	})

	t.Run("not a member of W2", func(t *testing.T) {
		anyMember := &domain.Requirement{
			WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceMember, domain.WorkspaceAdmin, domain.WorkspaceOwner},
			Operator:       domain.OperatorAny,
		}
		assert.Error(t, e.Authorize(context.Background(), p, anyMember, staticRC{ws: "W2"}))
		assert.NoError(t, e.Authorize(context.Background(), p, anyMember, staticRC{ws: "W1"}))
	})

	t.Run("global admin is a separate axis", func(t *testing.T) {
		admin := &domain.Principal{ID: "a1", Roles: []domain.GlobalRole{domain.RoleAdmin}}
		assert.Error(t, e.Authorize(context.Background(), admin, &domain.Requirement{
			WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceAdmin},
		}, staticRC{ws: "W1"}))

		// Явное объединение осей через ANY
		assert.NoError(t, e.Authorize(context.Background(), admin, &domain.Requirement{
			Roles:          []domain.GlobalRole{domain.RoleAdmin},
			WorkspaceRoles: []domain.WorkspaceRole{domain.WorkspaceAdmin},
			Operator:       domain.OperatorAny,
		}, staticRC{ws: "W1"}))
	})
}

func TestAuthorize_Permissions(t *testing.T) {
	e := newEvaluator()
	user := userPrincipal()
	admin := &domain.Principal{ID: "a1", Roles: []domain.GlobalRole{domain.RoleAdmin}}

	readWrite := &domain.Requirement{Permissions: []domain.Permission{domain.PermRead, domain.PermWrite}}
	assert.NoError(t, e.Authorize(context.Background(), user, readWrite, nil))

	manage := &domain.Requirement{Permissions: []domain.Permission{domain.PermManageUsers}}
	assert.Equal(t, []string{domain.CategoryPermission}, unmet(t, e.Authorize(context.Background(), user, manage, nil)))
	assert.NoError(t, e.Authorize(context.Background(), admin, manage, nil))

	transfer := &domain.Requirement{Permissions: []domain.Permission{domain.PermTransferOwnership}}
	assert.Error(t, e.Authorize(context.Background(), admin, transfer, nil))

	owner := &domain.Principal{
		ID:         "o1",
		Roles:      []domain.GlobalRole{domain.RoleUser},
		Workspaces: []domain.Membership{{WorkspaceID: "W1", Role: domain.WorkspaceOwner}},
	}
	assert.NoError(t, e.Authorize(context.Background(), owner, transfer, staticRC{ws: "W1"}))
	assert.Error(t, e.Authorize(context.Background(), owner, transfer, staticRC{ws: "W2"}))
}

func TestAuthorize_Conditions(t *testing.T) {
	e := newEvaluator()
	p := userPrincipal()

	yes := func(context.Context, *domain.Principal, domain.RequestContext) (bool, error) { return true, nil }
	no := func(context.Context, *domain.Principal, domain.RequestContext) (bool, error) { return false, nil }
	boom := func(context.Context, *domain.Principal, domain.RequestContext) (bool, error) {
		return true, errors.New("store down")
	}
	isSelf := func(_ context.Context, p *domain.Principal, rc domain.RequestContext) (bool, error) {
		return rc.Param("userId") == p.ID, nil
	}

	// Только условия: роли и права не участвуют
	assert.NoError(t, e.Authorize(context.Background(), p, &domain.Requirement{Conditions: []domain.Condition{yes}}, nil))
	assert.NoError(t, e.Authorize(context.Background(), p,
		&domain.Requirement{Conditions: []domain.Condition{isSelf}},
		staticRC{params: map[string]string{"userId": "u1"}}))

	err := e.Authorize(context.Background(), p, &domain.Requirement{Conditions: []domain.Condition{yes, no}}, nil)
	assert.Equal(t, []string{domain.CategoryCondition}, unmet(t, err))

	assert.NoError(t, e.Authorize(context.Background(), p, &domain.Requirement{
		Conditions: []domain.Condition{no, yes},
		Operator:   domain.OperatorAny,
	}, nil))

	// Ошибка предиката - отказ
	assert.Error(t, e.Authorize(context.Background(), p, &domain.Requirement{Conditions: []domain.Condition{boom}}, nil))
}

func TestAuthorize_CombinesCategories(t *testing.T) {
	e := newEvaluator()
	p := userPrincipal()
	req := &domain.Requirement{
		Roles:       []domain.GlobalRole{domain.RoleAdmin},
		Permissions: []domain.Permission{domain.PermRead},
	}

	err := e.Authorize(context.Background(), p, req, nil)
	assert.Equal(t, []string{domain.CategoryRole}, unmet(t, err))

	req.Operator = domain.OperatorAny
	assert.NoError(t, e.Authorize(context.Background(), p, req, nil))

	req.Permissions = []domain.Permission{domain.PermDelete}
	err = e.Authorize(context.Background(), p, req, nil)
	assert.Equal(t, []string{domain.CategoryRole, domain.CategoryPermission}, unmet(t, err))
	assert.NotContains(t, err.Error(), "ADMIN")
}

func TestAuthorize_UnknownOperatorActsAsAll(t *testing.T) {
	e := newEvaluator()
	req := &domain.Requirement{
		Roles:    []domain.GlobalRole{domain.RoleAdmin, domain.RoleUser},
		Operator: "SOME",
	}
	assert.Error(t, e.Authorize(context.Background(), userPrincipal(), req, nil))
}

func TestPermissionsFor(t *testing.T) {
	e := newEvaluator()
	assert.Contains(t, e.PermissionsFor(domain.WorkspaceOwner), domain.PermTransferOwnership)
	assert.Empty(t, e.PermissionsFor(domain.WorkspaceMember))
	assert.Empty(t, e.PermissionsFor("GUEST"))
}
