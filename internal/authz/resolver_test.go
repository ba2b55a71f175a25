package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveEffective(t *testing.T) {
	t.Run("role keys pass through without overrides", func(t *testing.T) {
		effective := ResolveEffective([]string{"dashboard", "campos"}, nil)
		assert.Contains(t, effective, "dashboard")
		assert.Contains(t, effective, "campos")
		assert.Len(t, effective, 2)
	})

	t.Run("negative override removes a role key", func(t *testing.T) {
		effective := ResolveEffective(
			[]string{"dashboard", "finanzas.pagos"},
			[]UserOverride{{UserID: 7, CapabilityKey: "finanzas.pagos", CanView: false}},
		)
		assert.Contains(t, effective, "dashboard")
		assert.NotContains(t, effective, "finanzas.pagos")
	})

	t.Run("positive override adds a key the role lacks", func(t *testing.T) {
		effective := ResolveEffective(
			[]string{"dashboard"},
			[]UserOverride{{UserID: 7, CapabilityKey: "reportes", CanView: true}},
		)
		assert.Contains(t, effective, "dashboard")
		assert.Contains(t, effective, "reportes")
	})

	t.Run("no role and no overrides means empty set", func(t *testing.T) {
		effective := ResolveEffective(nil, nil)
		assert.Empty(t, effective)
	})

	t.Run("negative override on an absent key is a no-op", func(t *testing.T) {
		effective := ResolveEffective(
			[]string{"dashboard"},
			[]UserOverride{{UserID: 7, CapabilityKey: "reportes", CanView: false}},
		)
		assert.Len(t, effective, 1)
		assert.Contains(t, effective, "dashboard")
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		roleKeys := []string{"dashboard", "campos", "cultivos"}
		overrides := []UserOverride{
			{UserID: 7, CapabilityKey: "campos", CanView: false},
			{UserID: 7, CapabilityKey: "reportes", CanView: true},
		}
		first := ResolveEffective(roleKeys, overrides)
		second := ResolveEffective(roleKeys, overrides)
		assert.Equal(t, first, second)
	})

	t.Run("last override wins on duplicates", func(t *testing.T) {
		effective := ResolveEffective(
			nil,
			[]UserOverride{
				{UserID: 7, CapabilityKey: "reportes", CanView: true},
				{UserID: 7, CapabilityKey: "reportes", CanView: false},
			},
		)
		assert.NotContains(t, effective, "reportes")
	})
}
