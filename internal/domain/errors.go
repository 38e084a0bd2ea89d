package domain

import (
	"errors"
	"strings"
)

// Таксономия ошибок, которую видят транспортные адаптеры.
// Все ошибки хранилищ нормализуются к ней до выхода из сервисного слоя.
var (
	ErrInvalidInput    = errors.New("invalid input")     // 400
	ErrUnauthenticated = errors.New("unauthenticated")   // 401
	ErrForbidden       = errors.New("forbidden")         // 403
	ErrConflict        = errors.New("resource conflict") // 409
	ErrFatal           = errors.New("internal error")    // 500: хранилище недоступно

	// ErrInvalidToken возвращает кодек. Не различает "истек" и "битый".
	ErrInvalidToken = errors.New("invalid token")

	// ErrNotFound используется только внутри репозиториев.
	ErrNotFound = errors.New("not found")
)

// Категории требований, которые попадают в сообщение об отказе.
const (
	CategoryRole          = "role"
	CategoryWorkspaceRole = "workspaceRole"
	CategoryPermission    = "permission"
	CategoryCondition     = "condition"
)

// ForbiddenError сообщает, какие категории требования не выполнены.
// Значения ролей и прав других пользователей сюда не попадают.
type ForbiddenError struct {
	Categories []string
}

func (e *ForbiddenError) Error() string {
	if len(e.Categories) == 0 {
		return ErrForbidden.Error()
	}
	return ErrForbidden.Error() + ": unmet " + strings.Join(e.Categories, ", ")
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}
