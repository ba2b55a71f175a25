package approvals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovista-erp/agrovista-erp/internal/catalog"
)

func noopExecutor(ctx context.Context, contextID *string, contextData map[string]string) error {
	return nil
}

func TestRegistryValidate(t *testing.T) {
	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	t.Run("covered registry passes, manual actions exempt", func(t *testing.T) {
		// finanzas.pago.anular is manual and deliberately left unregistered.
		registry := NewRegistry()
		registry.Register("inventario.ajuste.negativo", noopExecutor)
		registry.Register("exportacion.kanban.advance_without_docs", noopExecutor)
		assert.NoError(t, registry.Validate(cat))
	})

	t.Run("missing executor for a gated action", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("inventario.ajuste.negativo", noopExecutor)
		err := registry.Validate(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exportacion.kanban.advance_without_docs")
	})

	t.Run("executor on an unknown key", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("inventario.ajuste.negativo", noopExecutor)
		registry.Register("exportacion.kanban.advance_without_docs", noopExecutor)
		registry.Register("contabilidad.cierre.forzar", noopExecutor)
		err := registry.Validate(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "contabilidad.cierre.forzar")
	})

	t.Run("executor on a navigation key", func(t *testing.T) {
		registry := NewRegistry()
		registry.Register("inventario.ajuste.negativo", noopExecutor)
		registry.Register("exportacion.kanban.advance_without_docs", noopExecutor)
		registry.Register("inventario", noopExecutor)
		err := registry.Validate(cat)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "inventario")
	})
}

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry()
	_, ok := registry.Lookup("inventario.ajuste.negativo")
	assert.False(t, ok)

	registry.Register("inventario.ajuste.negativo", noopExecutor)
	exec, ok := registry.Lookup("inventario.ajuste.negativo")
	assert.True(t, ok)
	assert.NotNil(t, exec)
}
