package reembed

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/stretchr/testify/require"
)

const (
	oldDim = 16
	newDim = 32
)

var (
	v1Chunks = storage.Partition{Kind: core.ContentChunk, Generation: "v1", Dimension: oldDim}
	v2Chunks = storage.Partition{Kind: core.ContentChunk, Generation: "v2", Dimension: newDim}
)

func testProvider() *mock.MockProvider {
	spaces := ai.DefaultSpaces("mock", oldDim)
	spaces = append(spaces, ai.EmbeddingSpace{
		Kind: core.ContentChunk, Generation: "v2", Model: "mock-2", Dimension: newDim,
	})
	return mock.NewMockProviderWithSpaces(spaces...)
}

func newStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seed stores a document of tenant with n v1 chunks.
func seed(t *testing.T, store storage.Store, tenant core.TenantID, title string, n int) *storage.DocumentTree {
	t.Helper()
	tree := &storage.DocumentTree{Document: &core.Document{Tenant: tenant, Title: title}}
	for i := 0; i < n; i++ {
		text := fmt.Sprintf("%s passage %d", title, i)
		tree.Records = append(tree.Records, &core.Record{
			Kind:       core.ContentChunk,
			Position:   i,
			Text:       text,
			Vector:     mock.TermVector(text, oldDim),
			Dimension:  oldDim,
			Generation: "v1",
		})
	}
	stored, err := store.AddDocumentTree(context.Background(), tree)
	require.NoError(t, err)
	return stored
}

// partitionIDs lists the record IDs of a partition in storage order.
func partitionIDs(t *testing.T, store storage.Store, tenant core.TenantID, p storage.Partition) []core.ID {
	t.Helper()
	var ids []core.ID
	err := store.ForEachRecord(context.Background(), tenant, p, 0, func(r *core.Record) error {
		ids = append(ids, r.Id)
		return nil
	})
	require.NoError(t, err)
	return ids
}
