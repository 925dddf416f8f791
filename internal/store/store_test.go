package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Both implementations must satisfy the same contract.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	gs, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemory(),
		"gorm":   gs,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Get(ctx, ColProducts, "missing")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Put(ctx, ColProducts, "p1", json.RawMessage(`{"id":"p1","name":"rice"}`)))
			raw, err := st.Get(ctx, ColProducts, "p1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"p1","name":"rice"}`, string(raw))

			// Overwrite semantics
			require.NoError(t, st.Put(ctx, ColProducts, "p1", json.RawMessage(`{"id":"p1","name":"sugar"}`)))
			raw, err = st.Get(ctx, ColProducts, "p1")
			require.NoError(t, err)
			assert.JSONEq(t, `{"id":"p1","name":"sugar"}`, string(raw))

			// Collections are isolated namespaces
			_, err = st.Get(ctx, ColPartners, "p1")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, st.Put(ctx, ColProducts, "p2", json.RawMessage(`{"id":"p2"}`)))
			keys, err := st.Keys(ctx, ColProducts)
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"p1", "p2"}, keys)

			recs, err := st.Scan(ctx, ColProducts)
			require.NoError(t, err)
			assert.Len(t, recs, 2)

			require.NoError(t, st.Delete(ctx, ColProducts, "p1"))
			_, err = st.Get(ctx, ColProducts, "p1")
			assert.ErrorIs(t, err, ErrNotFound)

			// Delete is idempotent
			assert.NoError(t, st.Delete(ctx, ColProducts, "p1"))
		})
	}
}

func TestTypedHelpers(t *testing.T) {
	ctx := context.Background()
	st := NewMemory()

	type doc struct {
		ID    string `json:"id"`
		Count int    `json:"count"`
	}

	require.NoError(t, PutAs(ctx, st, ColMeta, "d1", &doc{ID: "d1", Count: 3}))
	got, err := GetAs[doc](ctx, st, ColMeta, "d1")
	require.NoError(t, err)
	assert.Equal(t, 3, got.Count)

	require.NoError(t, PutAs(ctx, st, ColMeta, "d2", &doc{ID: "d2", Count: 7}))
	all, err := ScanAs[doc](ctx, st, ColMeta)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
