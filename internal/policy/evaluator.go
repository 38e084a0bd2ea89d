package policy

import (
	"context"

	"github.com/xela07ax/workspace-api/internal/domain"
	"go.uber.org/zap"
)

// Evaluator - единственная точка принятия решения по Requirement.
// Состояния не держит: таблица прав неизменяемая, все остальное приходит в аргументах.
type Evaluator struct {
	perms  PermissionTable
	logger *zap.Logger
}

func NewEvaluator(perms PermissionTable, logger *zap.Logger) *Evaluator {
	if perms == nil {
		perms = DefaultPermissionTable()
	}
	return &Evaluator{
		perms:  perms,
		logger: logger.Named("authz"),
	}
}

// categoryResult - итог одной категории требования.
type categoryResult struct {
	name string
	ok   bool
}

// Authorize реализует Enforcer.
func (e *Evaluator) Authorize(ctx context.Context, p *domain.Principal, req *domain.Requirement, rc domain.RequestContext) error {
	// 1. Неразмеченная операция открыта
	if req == nil {
		return nil
	}
	// 2. Разметка есть - нужен принципал
	if p == nil {
		return domain.ErrUnauthenticated
	}

	op := req.Op()
	if op != domain.OperatorAll && op != domain.OperatorAny {
		e.logger.Warn("unknown operator, falling back to ALL", zap.String("operator", string(op)))
		op = domain.OperatorAll
	}

	// 3. Каждая заполненная категория считается независимо
	var results []categoryResult
	if len(req.Roles) > 0 {
		results = append(results, categoryResult{domain.CategoryRole, e.checkRoles(p, req.Roles, op)})
	}
	if len(req.WorkspaceRoles) > 0 {
		results = append(results, categoryResult{domain.CategoryWorkspaceRole, e.checkWorkspaceRoles(p, req.WorkspaceRoles, op, rc)})
	}
	if len(req.Permissions) > 0 {
		results = append(results, categoryResult{domain.CategoryPermission, e.checkPermissions(p, req.Permissions, op, rc)})
	}
	if len(req.Conditions) > 0 {
		results = append(results, categoryResult{domain.CategoryCondition, e.checkConditions(ctx, p, req.Conditions, op, rc)})
	}

	// Пустое требование: достаточно аутентификации
	if len(results) == 0 {
		return nil
	}

	// 4. Комбинация категорий верхнеуровневым оператором
	var failed []string
	anyOK := false
	for _, r := range results {
		if r.ok {
			anyOK = true
			continue
		}
		failed = append(failed, r.name)
	}

	allowed := len(failed) == 0
	if op == domain.OperatorAny {
		allowed = anyOK
	}
	if allowed {
		return nil
	}

	// 5. Отказ: называем категории, но не значения
	e.logger.Debug("access denied",
		zap.String("principal_id", p.ID),
		zap.Strings("unmet", failed),
		zap.String("operator", string(op)))
	return &domain.ForbiddenError{Categories: failed}
}

func (e *Evaluator) checkRoles(p *domain.Principal, required []domain.GlobalRole, op domain.Operator) bool {
	held := make(map[string]struct{}, len(p.Roles))
	for _, r := range p.Roles {
		// Значения вне перечисления не совпадают никогда
		if r.Valid() {
			held[string(r)] = struct{}{}
		}
	}
	want := make([]string, 0, len(required))
	for _, r := range required {
		want = append(want, string(r))
	}
	return match(held, want, op)
}

func (e *Evaluator) checkWorkspaceRoles(p *domain.Principal, required []domain.WorkspaceRole, op domain.Operator, rc domain.RequestContext) bool {
	role, ok := resolveWorkspaceRole(p, rc)
	if !ok {
		// Не смогли определить workspace: отказ, а не пропуск
		return false
	}
	held := map[string]struct{}{string(role): {}}
	want := make([]string, 0, len(required))
	for _, r := range required {
		want = append(want, string(r))
	}
	return match(held, want, op)
}

func (e *Evaluator) checkPermissions(p *domain.Principal, required []domain.Permission, op domain.Operator, rc domain.RequestContext) bool {
	var roles []string
	for _, r := range p.Roles {
		if r.Valid() {
			roles = append(roles, string(r))
		}
	}
	// Роль в текущем workspace тоже дает права (OWNER -> transfer_ownership)
	if role, ok := resolveWorkspaceRole(p, rc); ok {
		roles = append(roles, string(role))
	}

	granted := e.perms.expand(roles)
	held := make(map[string]struct{}, len(granted))
	for perm := range granted {
		held[string(perm)] = struct{}{}
	}
	want := make([]string, 0, len(required))
	for _, perm := range required {
		want = append(want, string(perm))
	}
	return match(held, want, op)
}

func (e *Evaluator) checkConditions(ctx context.Context, p *domain.Principal, conds []domain.Condition, op domain.Operator, rc domain.RequestContext) bool {
	for i, cond := range conds {
		ok, err := e.evalCondition(ctx, cond, p, rc)
		if err != nil {
			// Ошибка предиката - это отказ (fail closed)
			e.logger.Warn("condition failed with error",
				zap.Int("index", i), zap.String("principal_id", p.ID), zap.Error(err))
			ok = false
		}
		if op == domain.OperatorAny && ok {
			return true
		}
		if op == domain.OperatorAll && !ok {
			return false
		}
	}
	return op == domain.OperatorAll
}

func (e *Evaluator) evalCondition(ctx context.Context, cond domain.Condition, p *domain.Principal, rc domain.RequestContext) (bool, error) {
	if cond == nil {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return cond(ctx, p, rc)
}

// PermissionsFor - права, которые роль в workspace дает сама по себе.
func (e *Evaluator) PermissionsFor(role domain.WorkspaceRole) []domain.Permission {
	if !role.Valid() {
		return []domain.Permission{}
	}
	return e.perms.For(string(role))
}

func resolveWorkspaceRole(p *domain.Principal, rc domain.RequestContext) (domain.WorkspaceRole, bool) {
	if rc == nil {
		return "", false
	}
	wsID, ok := rc.WorkspaceID()
	if !ok || wsID == "" {
		return "", false
	}
	role, ok := p.WorkspaceRole(wsID)
	if !ok || !role.Valid() {
		return "", false
	}
	return role, true
}

// match: ANY - пересечение непусто, ALL - held содержит все требуемые.
func match(held map[string]struct{}, want []string, op domain.Operator) bool {
	if op == domain.OperatorAny {
		for _, w := range want {
			if _, ok := held[w]; ok {
				return true
			}
		}
		return false
	}
	for _, w := range want {
		if _, ok := held[w]; !ok {
			return false
		}
	}
	return true
}
