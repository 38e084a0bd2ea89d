package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/workspace-api/internal/cache"
	"github.com/xela07ax/workspace-api/internal/domain"
	"github.com/xela07ax/workspace-api/internal/infra"
	"go.uber.org/zap"
)

type spyPublisher struct {
	signals map[string]bool
	err     error
}

func (s *spyPublisher) Publish(_ context.Context, userID string, blocked bool) error {
	if s.signals == nil {
		s.signals = map[string]bool{}
	}
	s.signals[userID] = blocked
	return s.err
}

func seedUser(t *testing.T, users *memUsers) string {
	t.Helper()
	id := uuid.NewString()
	_, err := users.Create(context.Background(), domain.NewUser{
		ID: id, Email: id + "@example.com", Name: "U", PasswordHash: "x", Role: domain.RoleUser,
	})
	require.NoError(t, err)
	return id
}

func TestUserService_BlockAndUnblock(t *testing.T) {
	users := newMemUsers()
	pub := &spyPublisher{}
	c := cache.NewMemory("test")
	svc := NewUserService(users, pub, c, nil, zap.NewNop())
	admin := &domain.Principal{ID: "admin-1", Roles: []domain.GlobalRole{domain.RoleAdmin}}
	ctx := context.Background()

	id := seedUser(t, users)
	require.NoError(t, c.Set(ctx, infra.RefreshRecordKey(id), "fp", time.Hour))

	require.NoError(t, svc.Block(ctx, admin, id))
	assert.Equal(t, domain.UserBlocked, users.byID[id].Status)
	assert.True(t, pub.signals[id])
	_, err := c.Get(ctx, infra.RefreshRecordKey(id))
	assert.True(t, cache.IsNotFound(err))

	require.NoError(t, svc.Unblock(ctx, admin, id))
	assert.Equal(t, domain.UserActive, users.byID[id].Status)
	assert.False(t, pub.signals[id])
}

func TestUserService_BlockRejectsBadInput(t *testing.T) {
	users := newMemUsers()
	svc := NewUserService(users, &spyPublisher{}, cache.NewMemory(""), nil, zap.NewNop())
	ctx := context.Background()

	id := seedUser(t, users)
	self := &domain.Principal{ID: id}

	assert.ErrorIs(t, svc.Block(ctx, self, id), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Block(ctx, nil, "not-a-uuid"), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.Block(ctx, nil, uuid.NewString()), domain.ErrInvalidInput)
}

func TestUserService_SignalFailureDoesNotFail(t *testing.T) {
	users := newMemUsers()
	pub := &spyPublisher{err: errors.New("redis down")}
	svc := NewUserService(users, pub, cache.NewMemory(""), nil, zap.NewNop())

	id := seedUser(t, users)
	require.NoError(t, svc.Block(context.Background(), nil, id))
	assert.Equal(t, domain.UserBlocked, users.byID[id].Status)
}
