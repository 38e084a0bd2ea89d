package domain

// GlobalRole - глобальная роль пользователя. Закрытое перечисление.
type GlobalRole string

const (
	RoleUser  GlobalRole = "USER"
	RoleAdmin GlobalRole = "ADMIN"
)

func (r GlobalRole) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// WorkspaceRole - роль внутри конкретного workspace. Закрытое перечисление.
type WorkspaceRole string

const (
	WorkspaceOwner  WorkspaceRole = "OWNER"
	WorkspaceAdmin  WorkspaceRole = "ADMIN"
	WorkspaceMember WorkspaceRole = "MEMBER"
)

func (r WorkspaceRole) Valid() bool {
	return r == WorkspaceOwner || r == WorkspaceAdmin || r == WorkspaceMember
}

// Membership - членство принципала в workspace.
type Membership struct {
	WorkspaceID string        `json:"workspace_id"`
	Role        WorkspaceRole `json:"role"`
}

// Principal - аутентифицированная личность запроса.
// Собирается заново на каждый запрос и никогда не сохраняется: это представление, а не запись.
type Principal struct {
	ID         string
	Email      string
	Name       string
	Roles      []GlobalRole
	Workspaces []Membership
}

// NewPrincipal собирает принципала из записи пользователя и его членств.
func NewPrincipal(u *User, memberships []Membership) *Principal {
	p := &Principal{
		ID:         u.ID,
		Email:      u.Email,
		Name:       u.Name,
		Workspaces: memberships,
	}
	if u.Role != "" {
		p.Roles = []GlobalRole{u.Role}
	}
	if p.Workspaces == nil {
		p.Workspaces = []Membership{}
	}
	return p
}

// HasRole - точное, регистрозависимое сравнение.
func (p *Principal) HasRole(role GlobalRole) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// WorkspaceRole возвращает роль принципала в workspace, если он в нем состоит.
func (p *Principal) WorkspaceRole(workspaceID string) (WorkspaceRole, bool) {
	for _, m := range p.Workspaces {
		if m.WorkspaceID == workspaceID {
			return m.Role, true
		}
	}
	return "", false
}

// PrimaryRole - роль, которая кладется в claim "role".
func (p *Principal) PrimaryRole() GlobalRole {
	if len(p.Roles) == 0 {
		return ""
	}
	return p.Roles[0]
}

// View - безопасное для отдачи наружу представление.
func (p *Principal) View() PrincipalView {
	roles := make([]GlobalRole, len(p.Roles))
	copy(roles, p.Roles)
	ws := make([]Membership, len(p.Workspaces))
	copy(ws, p.Workspaces)
	return PrincipalView{
		ID:         p.ID,
		Email:      p.Email,
		Name:       p.Name,
		Roles:      roles,
		Workspaces: ws,
	}
}

type PrincipalView struct {
	ID         string       `json:"id"`
	Email      string       `json:"email"`
	Name       string       `json:"name"`
	Roles      []GlobalRole `json:"roles"`
	Workspaces []Membership `json:"workspaces"`
}
