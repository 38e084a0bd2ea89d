package policy

import "github.com/xela07ax/workspace-api/internal/domain"

// PermissionTable - статическое отображение роли в набор прав.
// Ключ - имя роли: глобальной (USER/ADMIN) или роли в workspace (OWNER/ADMIN/MEMBER).
type PermissionTable map[string][]domain.Permission

// DefaultPermissionTable возвращает таблицу по умолчанию. Каждый вызов - новая копия.
func DefaultPermissionTable() PermissionTable {
	admin := []domain.Permission{
		domain.PermRead,
		domain.PermWrite,
		domain.PermDelete,
		domain.PermManageUsers,
		domain.PermManageWorkspaces,
	}
	owner := append(append([]domain.Permission{}, admin...), domain.PermTransferOwnership)

	return PermissionTable{
		string(domain.RoleAdmin):      admin,
		string(domain.RoleUser):       {domain.PermRead, domain.PermWrite},
		string(domain.WorkspaceOwner): owner,
	}
}

// For возвращает права роли. Неизвестная роль прав не дает.
func (t PermissionTable) For(role string) []domain.Permission {
	perms := t[role]
	out := make([]domain.Permission, len(perms))
	copy(out, perms)
	return out
}

// expand собирает объединение прав для набора ролей.
func (t PermissionTable) expand(roles []string) map[domain.Permission]struct{} {
	set := make(map[domain.Permission]struct{})
	for _, r := range roles {
		for _, p := range t[r] {
			set[p] = struct{}{}
		}
	}
	return set
}
