package badger

import (
	"context"
	"slices"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimilaritySearch_RanksByCosine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	addDocument(t, store, "org-a", "Segmentation",
		chunk("far", 0, 1, 0),
		chunk("near", 1, 0.1, 0),
		chunk("exact", 2, 0, 0),
	)

	results, err := store.SimilaritySearch(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1, Limit: 2}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].Record.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
	assert.Equal(t, "near", results[1].Record.Text)
}

func TestSimilaritySearch_MinScore(t *testing.T) {
	store := newTestStore(t)
	addDocument(t, store, "org-a", "Doc", chunk("orthogonal", 0, 1, 0), chunk("aligned", 1, 0, 0))

	results, err := store.SimilaritySearch(context.Background(),
		storage.Query{Tenant: "org-a", Partition: chunkV1, MinScore: 0.7}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "aligned", results[0].Record.Text)
}

func TestSimilaritySearch_TenantIsolation(t *testing.T) {
	store := newTestStore(t)
	addDocument(t, store, "org-a", "Mine", chunk("mine", 1, 0, 0))
	addDocument(t, store, "org-b", "Theirs", chunk("theirs", 1, 0, 0))

	results, err := store.SimilaritySearch(context.Background(),
		storage.Query{Tenant: "org-a", Partition: chunkV1}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.TenantID("org-a"), results[0].Record.Tenant)

	matches, err := store.MatchText(context.Background(),
		storage.Query{Tenant: "org-a", Partition: chunkV1}, "theirs", storage.MatchTerms)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestSimilaritySearch_RejectsUnscopedQuery(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SimilaritySearch(context.Background(), storage.Query{Partition: chunkV1}, []float32{1, 0, 0})
	assert.ErrorIs(t, err, storage.ErrUnscopedQuery)
	assert.ErrorIs(t, err, core.ErrMissingTenant)
}

func TestSimilaritySearch_DimensionSafety(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	wide := &core.Record{Kind: core.ContentChunk, Text: "wide", Vector: []float32{1, 0, 0, 0}, Dimension: 4, Generation: "v2"}
	addDocument(t, store, "org-a", "Doc", chunk("narrow", 1, 0, 0), wide)

	// A 3-dimensional query against the 3-dimensional partition never sees the 4-dimensional record.
	results, err := store.SimilaritySearch(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Record.Dimension)

	// A vector routed to the wrong partition is an error, not an empty result.
	_, err = store.SimilaritySearch(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1}, []float32{1, 0, 0, 0})
	var mismatch *core.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 4, mismatch.Got)
}

func TestSimilaritySearch_DocumentRestriction(t *testing.T) {
	store := newTestStore(t)
	first := addDocument(t, store, "org-a", "First", chunk("a1", 1, 0, 0), chunk("a2", 0.5, 0.5, 0))
	addDocument(t, store, "org-a", "Second", chunk("b1", 1, 0, 0))

	results, err := store.SimilaritySearch(context.Background(),
		storage.Query{Tenant: "org-a", Partition: chunkV1, DocumentID: first.Id}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, first.Id, r.Record.DocumentId)
	}
}

func TestMatchText(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	formulas := storage.Partition{Kind: core.ContentFormula, Generation: "v1", Dimension: 2}

	addDocument(t, store, "org-a", "Doc",
		chunk("We use cross-entropy loss for segmentation", 1, 0, 0),
		chunk("Dice loss only", 0, 1, 0),
		&core.Record{Kind: core.ContentFormula, Text: "cross entropy", Vector: []float32{1, 0}, Dimension: 2, Generation: "v1",
			Attributes: map[string]string{core.AttrExpression: "L = - \\sum y \\log p"}},
	)

	terms, err := store.MatchText(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1}, "cross-entropy segmentation", storage.MatchTerms)
	require.NoError(t, err)
	require.Len(t, terms, 1)
	assert.Contains(t, terms[0].Record.Text, "cross-entropy")

	exact, err := store.MatchText(ctx, storage.Query{Tenant: "org-a", Partition: formulas}, "L=-\\sum y\\log p", storage.MatchExact)
	require.NoError(t, err)
	require.Len(t, exact, 1)

	_, err = store.MatchText(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1}, "x", storage.MatchMode(42))
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestAddRecords_Validation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := addDocument(t, store, "org-a", "Doc")

	_, err := store.AddRecords(ctx, &core.Record{Tenant: "org-a", DocumentId: doc.Id, Kind: core.ContentChunk, Text: "no vector"})
	assert.ErrorIs(t, err, storage.ErrMissingEmbedding)

	_, err = store.AddRecords(ctx, &core.Record{Tenant: "org-b", DocumentId: doc.Id, Kind: core.ContentChunk, Text: "x",
		Vector: []float32{1, 0, 0}, Dimension: 3, Generation: "v1"})
	assert.ErrorIs(t, err, storage.ErrNotFound, "records cannot attach to another tenant's document")

	_, err = store.AddRecords(ctx, &core.Record{Tenant: "org-a", DocumentId: doc.Id, Kind: core.ContentChunk, Text: "x",
		Vector: []float32{1, 0}, Dimension: 3, Generation: "v1"})
	assert.ErrorIs(t, err, core.ErrDimensionMismatch)
}

func TestForEachRecordAndPartitions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addDocument(t, store, "org-a", "Doc", chunk("one", 1, 0, 0), chunk("two", 0, 1, 0), chunk("three", 0, 0, 1),
		&core.Record{Kind: core.ContentMethods, Text: "methods", Vector: []float32{1}, Dimension: 1, Generation: "m1"})

	var seen []core.ID
	require.NoError(t, store.ForEachRecord(ctx, "org-a", chunkV1, 0, func(r *core.Record) error {
		seen = append(seen, r.Id)
		return nil
	}))
	require.Len(t, seen, 3)
	assert.True(t, slices.IsSorted(seen), "records are visited in ID order")

	var after []core.ID
	require.NoError(t, store.ForEachRecord(ctx, "org-a", chunkV1, seen[0], func(r *core.Record) error {
		after = append(after, r.Id)
		return nil
	}))
	assert.Equal(t, seen[1:], after)

	stop := assert.AnError
	err := store.ForEachRecord(ctx, "org-a", chunkV1, 0, func(*core.Record) error { return stop })
	assert.Equal(t, stop, err, "callback errors are returned unchanged")

	partitions, err := store.Partitions(ctx, "org-a")
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.Partition{
		chunkV1,
		{Kind: core.ContentMethods, Generation: "m1", Dimension: 1},
	}, partitions)

	count, err := store.CountRecords(ctx, "org-a", chunkV1)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	dropped, err := store.DropPartition(ctx, "org-a", chunkV1)
	require.NoError(t, err)
	assert.Equal(t, 3, dropped)

	count, err = store.CountRecords(ctx, "org-a", chunkV1)
	require.NoError(t, err)
	assert.Zero(t, count)
}
