package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/agrovista-erp/agrovista-erp/testing"
)

const testDocument = `
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
  - key: inventario.movimientos
    kind: navigation
    parent: inventario
    label: Movimientos
  - key: inventario.ajuste.negativo
    kind: action
    parent: inventario
    label: Ajuste negativo de stock
  - key: finanzas.pago.anular
    kind: action
    label: Anular pago
    manual: true
`

func TestParse(t *testing.T) {
	cat, err := Parse([]byte(testDocument))
	require.NoError(t, err)
	assert.Equal(t, 6, cat.Len())

	node, err := cat.Lookup("inventario.ajuste.negativo")
	require.NoError(t, err)
	assert.Equal(t, KindAction, node.Kind)
	assert.False(t, node.Manual)

	node, err = cat.Lookup("finanzas.pago.anular")
	require.NoError(t, err)
	assert.True(t, node.Manual)

	assert.True(t, cat.Known("dashboard"))
	assert.False(t, cat.Known("contabilidad"))

	_, err = cat.Lookup("contabilidad")
	assert.ErrorIs(t, err, ErrUnknownCapability)
}

func TestParseRejectsInvalidDocuments(t *testing.T) {
	cases := []struct {
		name string
		doc  string
	}{
		{
			name: "empty document",
			doc:  `capabilities: []`,
		},
		{
			name: "empty key",
			doc: `
capabilities:
  - key: ""
    kind: navigation
    label: Broken
`,
		},
		{
			name: "invalid kind",
			doc: `
capabilities:
  - key: dashboard
    kind: widget
    label: Dashboard
`,
		},
		{
			name: "duplicate key",
			doc: `
capabilities:
  - key: dashboard
    kind: navigation
    label: Dashboard
  - key: dashboard
    kind: navigation
    label: Dashboard again
`,
		},
		{
			name: "missing parent",
			doc: `
capabilities:
  - key: inventario.insumos
    kind: navigation
    parent: inventario
    label: Insumos
`,
		},
		{
			name: "action as parent",
			doc: `
capabilities:
  - key: finanzas.pago.anular
    kind: action
    label: Anular pago
  - key: finanzas.pagos
    kind: navigation
    parent: finanzas.pago.anular
    label: Pagos
`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadEmbeddedDocument(t *testing.T) {
	cat, err := Load()
	require.NoError(t, err)
	assert.Greater(t, cat.Len(), 0)

	for _, key := range cat.Keys(KindAction) {
		node, err := cat.Lookup(key)
		require.NoError(t, err)
		assert.Equal(t, KindAction, node.Kind)
	}
}

func TestKeysFilterByKind(t *testing.T) {
	cat, err := Parse([]byte(testDocument))
	require.NoError(t, err)

	nav := cat.Keys(KindNavigation)
	actions := cat.Keys(KindAction)
	assert.Len(t, nav, 4)
	assert.Len(t, actions, 2)
	assert.Equal(t, cat.Len(), len(nav)+len(actions))
}

func TestBuildTree(t *testing.T) {
	cat, err := Parse([]byte(testDocument))
	require.NoError(t, err)

	t.Run("leaf visibility pulls in the parent group", func(t *testing.T) {
		effective := map[string]struct{}{"inventario.insumos": {}}
		tree := cat.BuildTree(effective)
		require.Len(t, tree, 1)
		assert.Equal(t, "inventario", tree[0].Key)
		require.Len(t, tree[0].Children, 1)
		assert.Equal(t, "inventario.insumos", tree[0].Children[0].Key)
	})

	t.Run("invisible branches are pruned", func(t *testing.T) {
		effective := map[string]struct{}{"dashboard": {}}
		tree := cat.BuildTree(effective)
		require.Len(t, tree, 1)
		assert.Equal(t, "dashboard", tree[0].Key)
	})

	t.Run("actions never appear", func(t *testing.T) {
		effective := map[string]struct{}{
			"inventario":                 {},
			"inventario.ajuste.negativo": {},
			"finanzas.pago.anular":       {},
		}
		tree := cat.BuildTree(effective)
		require.Len(t, tree, 1)
		assert.Equal(t, "inventario", tree[0].Key)
		assert.Empty(t, tree[0].Children)
	})

	t.Run("empty effective set yields empty tree", func(t *testing.T) {
		tree := cat.BuildTree(map[string]struct{}{})
		assert.Empty(t, tree)
	})
}
