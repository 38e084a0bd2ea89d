package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/workspace-api/internal/audit"
	"github.com/xela07ax/workspace-api/internal/cache"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

// StatusStore - запись статуса пользователя в источник правды.
type StatusStore interface {
	UpdateStatus(ctx context.Context, id string, status domain.UserStatus) error
}

// LockoutPublisher рассылает сигнал kill switch всем инстансам.
type LockoutPublisher interface {
	Publish(ctx context.Context, userID string, blocked bool) error
}

// UserService - административные действия над аккаунтами (kill switch).
type UserService struct {
	users   StatusStore
	lockout LockoutPublisher
	cache   cache.Client
	auditor audit.Auditor
	logger  *zap.Logger
}

func NewUserService(users StatusStore, lockout LockoutPublisher, c cache.Client, auditor audit.Auditor, logger *zap.Logger) *UserService {
	if auditor == nil {
		auditor = audit.Nop{}
	}
	return &UserService{
		users:   users,
		lockout: lockout,
		cache:   c,
		auditor: auditor,
		logger:  logger.Named("user-service"),
	}
}

func (s *UserService) Block(ctx context.Context, actor *domain.Principal, userID string) error {
	if actor != nil && actor.ID == userID {
		return fmt.Errorf("%w: cannot block yourself", domain.ErrInvalidInput)
	}
	if err := s.updateState(ctx, actor, userID, domain.UserBlocked, audit.ActionBlock); err != nil {
		return err
	}
	// Живая refresh-цепочка умирает сразу, access-токены отсекает L1
	if err := s.cache.Delete(ctx, infra.RefreshRecordKey(userID)); err != nil {
		s.logger.Warn("failed to drop refresh record of blocked user",
			zap.String("user_id", userID), zap.Error(err))
	}
	return nil
}

func (s *UserService) Unblock(ctx context.Context, actor *domain.Principal, userID string) error {
	return s.updateState(ctx, actor, userID, domain.UserActive, audit.ActionUnblock)
}

// updateState - унифицированный механизм переключения состояния.
// Обновляет БД и транслирует сигнал в Redis.
func (s *UserService) updateState(ctx context.Context, actor *domain.Principal, userID string, status domain.UserStatus, action audit.Action) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}

	// 1. Persistence Layer
	if err := s.users.UpdateStatus(ctx, userID, status); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("%w: user not found", domain.ErrInvalidInput)
		}
		s.logger.Error("failed to update user status in DB",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err))
		return fmt.Errorf("%w: %s", domain.ErrFatal, action)
	}

	// 2. Real-time Signaling: БД уже обновлена, инстансы догонят при переподключении
	if err := s.lockout.Publish(ctx, userID, status == domain.UserBlocked); err != nil {
		s.logger.Warn("runtime signal delivery failed",
			zap.String("action", string(action)),
			zap.Error(err))
	} else {
		s.logger.Info("user state updated successfully",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.String("new_status", string(status)))
	}

	e := audit.Event{UserID: userID, Action: action, Outcome: audit.OutcomeSuccess}
	if actor != nil {
		e.Reason = "by " + actor.ID
	}
	s.auditor.Record(ctx, e)
	return nil
}
