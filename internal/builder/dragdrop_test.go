package builder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShimmerHandmade/modernbuilder/pkg/ids"
)

// seqGen hands out e1, e2, ... so tests can predict new element ids.
type seqGen struct{ n int }

func (g *seqGen) NewID() string {
	g.n++
	return "e" + string(rune('0'+g.n))
}

func newReconciler(t *testing.T) (*Reconciler, *TreeStore) {
	t.Helper()
	tree := loadedStore(t)
	return NewReconciler(tree, &seqGen{}, nil), tree
}

func TestDropNewElementFromPalette(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{Type: "button"}, DropTarget{})
	require.NoError(t, err)

	roots := tree.Elements()
	require.Len(t, roots, 4)
	dropped := roots[3]
	assert.Equal(t, "e1", dropped.ID)
	assert.Equal(t, "button", dropped.Type)
	assert.Equal(t, "Click me", dropped.Props["text"])
	assert.Equal(t, "primary", dropped.Props["variant"])
	assert.Nil(t, dropped.Children)
}

func TestDropNewElementMergesOverrides(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{
		Type:  "productsList",
		Props: map[string]any{"columns": float64(4)},
	}, DropTarget{})
	require.NoError(t, err)

	dropped := tree.Elements()[3]
	assert.Equal(t, float64(4), dropped.Props["columns"])
	assert.Equal(t, float64(12), dropped.Props["itemsPerPage"])
	assert.Equal(t, true, dropped.Props["showPagination"])
}

func TestDropNewContainerGetsChildren(t *testing.T) {
	r, tree := newReconciler(t)

	require.NoError(t, r.Drop(DragPayload{Type: "section"}, DropTarget{}))

	dropped := tree.Elements()[3]
	require.NotNil(t, dropped.Children)
	assert.Empty(t, dropped.Children)
}

func TestDropNewElementBeforeTarget(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{Type: "text"}, DropTarget{
		ElementID: "B",
		Index:     1,
		Half:      DropBefore,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "e1", "B", "C"}, rootIDs(tree))
}

func TestDropNewElementAfterTarget(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{Type: "text"}, DropTarget{
		ElementID: "B",
		Index:     1,
		Half:      DropAfter,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "e1", "C"}, rootIDs(tree))
}

func TestDropExistingSameContainerAdjustsIndex(t *testing.T) {
	r, tree := newReconciler(t)

	// Drag A below C: pre-removal destination 3, post-removal 2.
	err := r.Drop(DragPayload{ID: "A"}, DropTarget{
		ElementID: "C",
		Index:     2,
		Half:      DropAfter,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, rootIDs(tree))
}

func TestDropExistingSameContainerBackward(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{ID: "C"}, DropTarget{
		ElementID: "A",
		Index:     0,
		Half:      DropBefore,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "B"}, rootIDs(tree))
}

func TestDropExistingWithoutTargetAppends(t *testing.T) {
	r, tree := newReconciler(t)

	require.NoError(t, r.Drop(DragPayload{ID: "A"}, DropTarget{}))
	assert.Equal(t, []string{"B", "C", "A"}, rootIDs(tree))
}

func TestDropExistingCrossContainer(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{ID: "A"}, DropTarget{
		ContainerID: "C",
		ElementID:   "C1",
		Index:       0,
		Half:        DropBefore,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "C"}, rootIDs(tree))
	c, ok := tree.Find("C")
	require.True(t, ok)
	require.Len(t, c.Children, 2)
	assert.Equal(t, "A", c.Children[0].ID)
}

func TestDropIgnoresStalePayloadHints(t *testing.T) {
	r, tree := newReconciler(t)

	// The payload claims A sits at index 2; the tree says 0 and wins.
	stale := 2
	err := r.Drop(DragPayload{ID: "A", SourceIndex: &stale}, DropTarget{
		ElementID: "B",
		Index:     1,
		Half:      DropAfter,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, rootIDs(tree))
}

func TestDropOntoSelfIsNoOp(t *testing.T) {
	r, tree := newReconciler(t)

	require.NoError(t, r.Drop(DragPayload{ID: "C"}, DropTarget{ElementID: "C", Index: 2}))
	require.NoError(t, r.Drop(DragPayload{ID: "C"}, DropTarget{ContainerID: "C"}))
	assert.Equal(t, []string{"A", "B", "C"}, rootIDs(tree))
	assert.False(t, tree.Dirty())
}

func TestDropIntoOwnSubtreeRejected(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.Drop(DragPayload{ID: "C"}, DropTarget{ContainerID: "C1"})
	assert.ErrorIs(t, err, ErrInvalidMove)
	assert.Equal(t, []string{"A", "B", "C"}, rootIDs(tree))
}

func TestDropVanishedElementIsNoOp(t *testing.T) {
	r, tree := newReconciler(t)

	require.NoError(t, r.Drop(DragPayload{ID: "gone"}, DropTarget{ElementID: "B", Index: 1}))
	assert.Equal(t, []string{"A", "B", "C"}, rootIDs(tree))
	assert.False(t, tree.Dirty())
}

func TestHandleDropMalformedPayload(t *testing.T) {
	r, tree := newReconciler(t)

	assert.ErrorIs(t, r.HandleDrop(nil, DropTarget{}), ErrMalformedPayload)
	assert.ErrorIs(t, r.HandleDrop([]byte("{not json"), DropTarget{}), ErrMalformedPayload)
	assert.ErrorIs(t, r.HandleDrop([]byte(`{}`), DropTarget{}), ErrMalformedPayload)
	assert.Equal(t, []string{"A", "B", "C"}, rootIDs(tree))
	assert.False(t, tree.Dirty())
}

func TestHandleDropDecodesPayload(t *testing.T) {
	r, tree := newReconciler(t)

	err := r.HandleDrop([]byte(`{"type":"heading","content":"Title"}`), DropTarget{})
	require.NoError(t, err)

	dropped := tree.Elements()[3]
	assert.Equal(t, "heading", dropped.Type)
	assert.Equal(t, "Title", dropped.Content)
	assert.Equal(t, float64(2), dropped.Props["level"])
}

func TestDefaultGeneratorProducesUniqueIDs(t *testing.T) {
	tree := NewTreeStore(nil, nil)
	tree.Load("site-1", "page-1", nil)
	r := NewReconciler(tree, ids.ULIDGenerator{}, nil)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Drop(DragPayload{Type: "text"}, DropTarget{}))
	}

	seen := map[string]bool{}
	for _, el := range tree.Elements() {
		require.NotEmpty(t, el.ID)
		require.False(t, seen[el.ID], "duplicate id %s", el.ID)
		seen[el.ID] = true
	}
	assert.Len(t, seen, 5)
}
