package policy

import (
	"context"

	"github.com/xela07ax/workspace-api/internal/domain"
)

// Enforcer принимает решение allow/deny. nil - доступ разрешен.
// Отказ: domain.ErrUnauthenticated (нет принципала) или *domain.ForbiddenError.
type Enforcer interface {
	Authorize(ctx context.Context, p *domain.Principal, req *domain.Requirement, rc domain.RequestContext) error
}
