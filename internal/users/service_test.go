package users

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovista-erp/agrovista-erp/internal/shared"
	_ "github.com/agrovista-erp/agrovista-erp/testing"
)

type mockRepository struct {
	users map[int64]*User
}

func newMockRepository(users ...User) *mockRepository {
	m := &mockRepository{users: make(map[int64]*User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	result := *user
	return &result, nil
}

func (m *mockRepository) Count(ctx context.Context) (int, error) {
	return len(m.users), nil
}

func (m *mockRepository) List(ctx context.Context, limit, offset int) ([]User, error) {
	var all []User
	for _, u := range m.users {
		all = append(all, *u)
	}
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *mockRepository) SetRole(ctx context.Context, userID int64, roleID *int64) error {
	user, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	user.RoleID = roleID
	return nil
}

func (m *mockRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	user, ok := m.users[userID]
	if !ok {
		return shared.ErrNotFound
	}
	user.IsActive = active
	return nil
}

func TestActor(t *testing.T) {
	ctx := context.Background()
	roleID := int64(3)
	repo := newMockRepository(
		User{ID: 7, Email: "supervisor@agrovista.test", RoleID: &roleID, IsActive: true},
		User{ID: 8, Email: "gerente@agrovista.test", IsAdmin: true, IsActive: true},
		User{ID: 9, Email: "exempleado@agrovista.test", RoleID: &roleID, IsActive: false},
	)
	svc := NewService(repo)

	t.Run("active user resolves with role and admin flags", func(t *testing.T) {
		actor, err := svc.Actor(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(7), actor.ID)
		require.NotNil(t, actor.RoleID)
		assert.Equal(t, roleID, *actor.RoleID)
		assert.False(t, actor.IsAdmin)

		actor, err = svc.Actor(ctx, 8)
		require.NoError(t, err)
		assert.True(t, actor.IsAdmin)
	})

	t.Run("deactivated account does not resolve", func(t *testing.T) {
		_, err := svc.Actor(ctx, 9)
		assert.ErrorIs(t, err, shared.ErrAccountDisabled)
	})

	t.Run("deactivation cuts off an account mid-session", func(t *testing.T) {
		_, err := svc.Actor(ctx, 7)
		require.NoError(t, err)

		require.NoError(t, svc.SetActive(ctx, 7, false))
		_, err = svc.Actor(ctx, 7)
		assert.ErrorIs(t, err, shared.ErrAccountDisabled)

		require.NoError(t, svc.SetActive(ctx, 7, true))
		_, err = svc.Actor(ctx, 7)
		assert.NoError(t, err)
	})

	t.Run("unknown user maps to not found", func(t *testing.T) {
		_, err := svc.Actor(ctx, 99)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestListPagination(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	for i := int64(1); i <= 45; i++ {
		repo.users[i] = &User{ID: i, IsActive: true, CreatedAt: time.Now()}
	}
	svc := NewService(repo)

	list, pagination, err := svc.List(ctx, 2, 20)
	require.NoError(t, err)
	assert.Len(t, list, 20)
	assert.Equal(t, 2, pagination.Page)
	assert.Equal(t, 45, pagination.Total)
	assert.Equal(t, 3, pagination.TotalPages)

	list, pagination, err = svc.List(ctx, 0, 0)
	require.NoError(t, err)
	assert.Len(t, list, 20)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PerPage)
}
