package domain

import "context"

// Operator определяет, как комбинируются проверки требования.
type Operator string

const (
	OperatorAll Operator = "ALL" // Должно выполниться всё (по умолчанию)
	OperatorAny Operator = "ANY" // Достаточно одного
)

// Permission - абстрактное право, выводится из ролей через статическую таблицу.
type Permission string

const (
	PermRead              Permission = "read"
	PermWrite             Permission = "write"
	PermDelete            Permission = "delete"
	PermManageUsers       Permission = "manage_users"
	PermManageWorkspaces  Permission = "manage_workspaces"
	PermTransferOwnership Permission = "transfer_ownership"
)

// RequestContext - то, что транспорт знает о запросе.
// HTTP берет workspace из пути или тела, gRPC - из метаданных.
type RequestContext interface {
	// WorkspaceID возвращает идентификатор workspace, если его удалось извлечь.
	WorkspaceID() (string, bool)
	// Param возвращает параметр пути (HTTP) или значение метаданных (gRPC).
	Param(name string) string
}

// Condition - пользовательский предикат. Может ходить в хранилища, поэтому принимает ctx.
type Condition func(ctx context.Context, p *Principal, rc RequestContext) (bool, error)

// Requirement - декларативное правило доступа, прикрепляется к операции при регистрации маршрута.
// Пустые поля не участвуют в проверке.
type Requirement struct {
	Roles          []GlobalRole
	WorkspaceRoles []WorkspaceRole
	Permissions    []Permission
	Conditions     []Condition
	Operator       Operator
}

// Op возвращает оператор с учетом значения по умолчанию.
func (r *Requirement) Op() Operator {
	if r == nil || r.Operator == "" {
		return OperatorAll
	}
	return r.Operator
}

// Authenticated - требование "нужен любой валидный принципал".
func Authenticated() *Requirement {
	return &Requirement{}
}
