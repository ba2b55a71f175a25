package authz

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
	_ "github.com/agrovista-erp/agrovista-erp/testing"
)

const testCatalog = `
capabilities:
  - key: dashboard
    kind: navigation
    label: Dashboard
  - key: inventario
    kind: navigation
    label: Inventario
  - key: inventario.insumos
    kind: navigation
    parent: inventario
    label: Insumos
  - key: finanzas.pagos
    kind: navigation
    label: Pagos
  - key: reportes
    kind: navigation
    label: Reportes
  - key: inventario.ajuste.negativo
    kind: action
    parent: inventario
    label: Ajuste negativo
  - key: finanzas.pago.anular
    kind: action
    label: Anular pago
    manual: true
`

type mockRepository struct {
	grants      map[int64][]string
	actionPerms map[int64]map[string]*RoleActionPermission
	overrides   map[int64][]UserOverride

	grantReads int
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		grants:      make(map[int64][]string),
		actionPerms: make(map[int64]map[string]*RoleActionPermission),
		overrides:   make(map[int64][]UserOverride),
	}
}

func (m *mockRepository) RoleGrantKeys(ctx context.Context, roleID int64) ([]string, error) {
	m.grantReads++
	return m.grants[roleID], nil
}

func (m *mockRepository) ActionPermission(ctx context.Context, roleID int64, actionKey string) (*RoleActionPermission, error) {
	perms, ok := m.actionPerms[roleID]
	if !ok {
		return nil, ErrNotFound
	}
	perm, ok := perms[actionKey]
	if !ok {
		return nil, ErrNotFound
	}
	return perm, nil
}

func (m *mockRepository) ActionPermissions(ctx context.Context, roleID int64) ([]RoleActionPermission, error) {
	var out []RoleActionPermission
	for _, perm := range m.actionPerms[roleID] {
		out = append(out, *perm)
	}
	return out, nil
}

func (m *mockRepository) Overrides(ctx context.Context, userID int64) ([]UserOverride, error) {
	return m.overrides[userID], nil
}

func (m *mockRepository) SetRoleGrants(ctx context.Context, roleID int64, capabilityKeys []string) error {
	m.grants[roleID] = append([]string(nil), capabilityKeys...)
	return nil
}

func (m *mockRepository) UpsertActionPermission(ctx context.Context, perm RoleActionPermission) error {
	if m.actionPerms[perm.RoleID] == nil {
		m.actionPerms[perm.RoleID] = make(map[string]*RoleActionPermission)
	}
	stored := perm
	m.actionPerms[perm.RoleID][perm.ActionKey] = &stored
	return nil
}

func (m *mockRepository) DeleteActionPermission(ctx context.Context, roleID int64, actionKey string) error {
	delete(m.actionPerms[roleID], actionKey)
	return nil
}

func (m *mockRepository) UpsertOverride(ctx context.Context, override UserOverride) error {
	existing := m.overrides[override.UserID]
	for i, o := range existing {
		if o.CapabilityKey == override.CapabilityKey {
			existing[i] = override
			return nil
		}
	}
	m.overrides[override.UserID] = append(existing, override)
	return nil
}

func (m *mockRepository) DeleteOverride(ctx context.Context, userID int64, capabilityKey string) (bool, error) {
	existing := m.overrides[userID]
	for i, o := range existing {
		if o.CapabilityKey == capabilityKey {
			m.overrides[userID] = append(existing[:i], existing[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type mockActorSource struct {
	actors map[int64]Actor
}

func (m *mockActorSource) Actor(ctx context.Context, userID int64) (Actor, error) {
	actor, ok := m.actors[userID]
	if !ok {
		return Actor{}, ErrNotFound
	}
	return actor, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo *mockRepository, actors *mockActorSource) *Service {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewEffectiveCache(client, time.Minute)

	if actors == nil {
		actors = &mockActorSource{actors: map[int64]Actor{}}
	}
	return NewService(repo, cat, actors, cache, nil, nil, testLogger())
}

func roleID(id int64) *int64 { return &id }

func TestEffectiveSet(t *testing.T) {
	ctx := context.Background()

	t.Run("admin sees the whole catalog", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		effective, err := svc.EffectiveSet(ctx, Actor{ID: 1, IsAdmin: true})
		require.NoError(t, err)
		assert.Len(t, effective, svc.Catalog().Len())
	})

	t.Run("role grants merged with overrides", func(t *testing.T) {
		repo := newMockRepository()
		repo.grants[3] = []string{"dashboard", "finanzas.pagos"}
		repo.overrides[7] = []UserOverride{
			{UserID: 7, CapabilityKey: "finanzas.pagos", CanView: false},
			{UserID: 7, CapabilityKey: "reportes", CanView: true},
		}
		svc := newTestService(t, repo, nil)

		effective, err := svc.EffectiveSet(ctx, Actor{ID: 7, RoleID: roleID(3)})
		require.NoError(t, err)
		assert.Contains(t, effective, "dashboard")
		assert.Contains(t, effective, "reportes")
		assert.NotContains(t, effective, "finanzas.pagos")
	})

	t.Run("no role means overrides only", func(t *testing.T) {
		repo := newMockRepository()
		repo.overrides[9] = []UserOverride{{UserID: 9, CapabilityKey: "dashboard", CanView: true}}
		svc := newTestService(t, repo, nil)

		effective, err := svc.EffectiveSet(ctx, Actor{ID: 9})
		require.NoError(t, err)
		assert.Len(t, effective, 1)
		assert.Contains(t, effective, "dashboard")
	})

	t.Run("second resolution is served from cache", func(t *testing.T) {
		repo := newMockRepository()
		repo.grants[3] = []string{"dashboard"}
		svc := newTestService(t, repo, nil)
		actor := Actor{ID: 7, RoleID: roleID(3)}

		_, err := svc.EffectiveSet(ctx, actor)
		require.NoError(t, err)
		reads := repo.grantReads
		_, err = svc.EffectiveSet(ctx, actor)
		require.NoError(t, err)
		assert.Equal(t, reads, repo.grantReads)
	})
}

func TestCanView(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.grants[3] = []string{"dashboard"}
	svc := newTestService(t, repo, nil)
	actor := Actor{ID: 7, RoleID: roleID(3)}

	ok, err := svc.CanView(ctx, actor, "dashboard")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.CanView(ctx, actor, "reportes")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.CanView(ctx, actor, "contabilidad")
	assert.ErrorIs(t, err, catalog.ErrUnknownCapability)
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	const action = "inventario.ajuste.negativo"

	t.Run("admin is always allowed", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		decision, err := svc.Authorize(ctx, Actor{ID: 1, IsAdmin: true}, action)
		require.NoError(t, err)
		assert.Equal(t, DecisionAllowed, decision)
	})

	t.Run("no role is denied", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		decision, err := svc.Authorize(ctx, Actor{ID: 7}, action)
		require.NoError(t, err)
		assert.Equal(t, DecisionDenied, decision)
	})

	t.Run("missing action row needs approval", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		decision, err := svc.Authorize(ctx, Actor{ID: 7, RoleID: roleID(3)}, action)
		require.NoError(t, err)
		assert.Equal(t, DecisionNeedsApproval, decision)
	})

	t.Run("explicit false row needs approval", func(t *testing.T) {
		repo := newMockRepository()
		require.NoError(t, repo.UpsertActionPermission(ctx, RoleActionPermission{RoleID: 3, ActionKey: action, CanExecute: false}))
		svc := newTestService(t, repo, nil)
		decision, err := svc.Authorize(ctx, Actor{ID: 7, RoleID: roleID(3)}, action)
		require.NoError(t, err)
		assert.Equal(t, DecisionNeedsApproval, decision)
	})

	t.Run("true row is allowed", func(t *testing.T) {
		repo := newMockRepository()
		require.NoError(t, repo.UpsertActionPermission(ctx, RoleActionPermission{RoleID: 3, ActionKey: action, CanExecute: true}))
		svc := newTestService(t, repo, nil)
		decision, err := svc.Authorize(ctx, Actor{ID: 7, RoleID: roleID(3)}, action)
		require.NoError(t, err)
		assert.Equal(t, DecisionAllowed, decision)
	})
}

func TestNavigation(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.grants[3] = []string{"inventario.insumos"}
	svc := newTestService(t, repo, nil)

	tree, err := svc.Navigation(ctx, Actor{ID: 7, RoleID: roleID(3)})
	require.NoError(t, err)
	require.Len(t, tree, 1)
	assert.Equal(t, "inventario", tree[0].Key)
	require.Len(t, tree[0].Children, 1)
	assert.Equal(t, "inventario.insumos", tree[0].Children[0].Key)
}

func TestSetRoleGrants(t *testing.T) {
	ctx := context.Background()
	admin := Actor{ID: 1, IsAdmin: true}

	t.Run("accepts navigation keys", func(t *testing.T) {
		repo := newMockRepository()
		svc := newTestService(t, repo, nil)
		require.NoError(t, svc.SetRoleGrants(ctx, admin, 3, []string{"dashboard", "inventario"}))
		assert.Equal(t, []string{"dashboard", "inventario"}, repo.grants[3])
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		err := svc.SetRoleGrants(ctx, admin, 3, []string{"contabilidad"})
		assert.ErrorIs(t, err, catalog.ErrUnknownCapability)
	})

	t.Run("rejects action keys", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		err := svc.SetRoleGrants(ctx, admin, 3, []string{"inventario.ajuste.negativo"})
		assert.Error(t, err)
	})

	t.Run("invalidates cached effective sets", func(t *testing.T) {
		repo := newMockRepository()
		repo.grants[3] = []string{"dashboard"}
		svc := newTestService(t, repo, nil)
		actor := Actor{ID: 7, RoleID: roleID(3)}

		effective, err := svc.EffectiveSet(ctx, actor)
		require.NoError(t, err)
		assert.NotContains(t, effective, "reportes")

		require.NoError(t, svc.SetRoleGrants(ctx, admin, 3, []string{"dashboard", "reportes"}))

		effective, err = svc.EffectiveSet(ctx, actor)
		require.NoError(t, err)
		assert.Contains(t, effective, "reportes")
	})
}

func TestSetActionPermission(t *testing.T) {
	ctx := context.Background()
	admin := Actor{ID: 1, IsAdmin: true}

	t.Run("rejects navigation keys", func(t *testing.T) {
		svc := newTestService(t, newMockRepository(), nil)
		err := svc.SetActionPermission(ctx, admin, 3, "dashboard", true)
		assert.Error(t, err)
	})

	t.Run("stores the row", func(t *testing.T) {
		repo := newMockRepository()
		svc := newTestService(t, repo, nil)
		require.NoError(t, svc.SetActionPermission(ctx, admin, 3, "inventario.ajuste.negativo", true))
		perm, err := repo.ActionPermission(ctx, 3, "inventario.ajuste.negativo")
		require.NoError(t, err)
		assert.True(t, perm.CanExecute)
	})
}

func TestSetUserOverride(t *testing.T) {
	ctx := context.Background()
	admin := Actor{ID: 1, IsAdmin: true}

	newFixture := func(t *testing.T) (*mockRepository, *Service) {
		repo := newMockRepository()
		repo.grants[3] = []string{"dashboard", "finanzas.pagos"}
		actors := &mockActorSource{actors: map[int64]Actor{
			7: {ID: 7, RoleID: roleID(3)},
			9: {ID: 9},
		}}
		return repo, newTestService(t, repo, actors)
	}

	t.Run("redundant grant is pruned, not stored", func(t *testing.T) {
		repo, svc := newFixture(t)
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "dashboard", true))
		assert.Empty(t, repo.overrides[7])
	})

	t.Run("redundant revoke is pruned, not stored", func(t *testing.T) {
		repo, svc := newFixture(t)
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "reportes", false))
		assert.Empty(t, repo.overrides[7])
	})

	t.Run("meaningful revoke is stored", func(t *testing.T) {
		repo, svc := newFixture(t)
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "finanzas.pagos", false))
		require.Len(t, repo.overrides[7], 1)
		assert.False(t, repo.overrides[7][0].CanView)
	})

	t.Run("meaningful grant is stored", func(t *testing.T) {
		repo, svc := newFixture(t)
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "reportes", true))
		require.Len(t, repo.overrides[7], 1)
		assert.True(t, repo.overrides[7][0].CanView)
	})

	t.Run("re-granting via role prunes a stale positive override", func(t *testing.T) {
		repo, svc := newFixture(t)
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "reportes", true))
		repo.grants[3] = append(repo.grants[3], "reportes")
		require.NoError(t, svc.SetUserOverride(ctx, admin, 7, "reportes", true))
		assert.Empty(t, repo.overrides[7])
	})

	t.Run("unknown capability is rejected", func(t *testing.T) {
		_, svc := newFixture(t)
		err := svc.SetUserOverride(ctx, admin, 7, "contabilidad", true)
		assert.ErrorIs(t, err, catalog.ErrUnknownCapability)
	})
}

func TestClearUserOverride(t *testing.T) {
	ctx := context.Background()
	admin := Actor{ID: 1, IsAdmin: true}
	repo := newMockRepository()
	repo.overrides[7] = []UserOverride{{UserID: 7, CapabilityKey: "reportes", CanView: true}}
	svc := newTestService(t, repo, nil)

	require.NoError(t, svc.ClearUserOverride(ctx, admin, 7, "reportes"))
	assert.Empty(t, repo.overrides[7])

	// Clearing a missing override is a quiet no-op.
	require.NoError(t, svc.ClearUserOverride(ctx, admin, 7, "reportes"))
}
