package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/xela07ax/workspace-api/internal/domain"
	"gorm.io/gorm"
)

type workspaceMemberModel struct {
	WorkspaceID string    `gorm:"column:workspace_id;primaryKey"`
	UserID      string    `gorm:"column:user_id;primaryKey"`
	Role        string    `gorm:"column:role"`
	CreatedAt   time.Time `gorm:"column:created_at"`
}

func (workspaceMemberModel) TableName() string {
	return "workspace_members"
}

// MembershipRepo читает членства в workspace. CRUD workspace живет в другом сервисе.
type MembershipRepo struct {
	db *gorm.DB
}

func NewMembershipRepo(db *gorm.DB) *MembershipRepo {
	return &MembershipRepo{db: db}
}

// ListByUser возвращает членства в порядке вступления.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	var rows []workspaceMemberModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at, workspace_id").
		Find(&rows).
		Error
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list memberships: %w", err)
	}

	out := make([]domain.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.Membership{
			WorkspaceID: row.WorkspaceID,
			Role:        domain.WorkspaceRole(row.Role),
		})
	}
	return out, nil
}
