package badger

import (
	"context"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddDocumentTree(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tree, err := store.AddDocumentTree(ctx, &storage.DocumentTree{
		Document: &core.Document{Tenant: "org-a", Title: "U-Net", Authors: []string{"Ronneberger"}, Tags: []string{"vision"}},
		Records:  []*core.Record{chunk("encoder decoder", 1, 0, 0)},
		Citations: []*core.Citation{
			{CitedTitle: "Fully Convolutional Networks", CitedAuthors: []string{"Long"}, ReferenceCount: 3},
		},
	})
	require.NoError(t, err)

	doc := tree.Document
	assert.Equal(t, core.DocumentID(doc), doc.Id)
	assert.Equal(t, []string{"tenant:org-a", "vision"}, doc.Tags)
	assert.False(t, doc.InsertedAt.IsZero())
	assert.Equal(t, doc.Id, tree.Records[0].DocumentId)
	assert.Equal(t, core.TenantID("org-a"), tree.Records[0].Tenant)

	got, err := store.GetDocument(ctx, "org-a", doc.Id)
	require.NoError(t, err)
	assert.Equal(t, "U-Net", got.Title)

	_, err = store.GetDocument(ctx, "org-b", doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	cites, err := store.Citations(ctx, "org-a", doc.Id, core.DirectionCites)
	require.NoError(t, err)
	require.Len(t, cites, 1)
	assert.False(t, cites[0].InCorpus())
}

func TestAddDocumentTree_RejectsForeignRecords(t *testing.T) {
	store := newTestStore(t)
	record := chunk("x", 1, 0, 0)
	record.Tenant = "org-b"

	_, err := store.AddDocumentTree(context.Background(), &storage.DocumentTree{
		Document: &core.Document{Tenant: "org-a", Title: "Doc"},
		Records:  []*core.Record{record},
	})
	assert.ErrorIs(t, err, core.ErrInvalidRecord)
}

func TestAddDocumentTree_ReplacesExisting(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	addDocument(t, store, "org-a", "Doc", chunk("old", 1, 0, 0), chunk("older", 0, 1, 0))
	addDocument(t, store, "org-a", "Doc", chunk("new", 1, 0, 0))

	count, err := store.CountRecords(ctx, "org-a", chunkV1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAddDocumentTree_ReplaceKeepsIncomingCitations(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	target := addDocument(t, store, "org-a", "Target", chunk("target text", 0, 1, 0))
	citing, err := store.AddDocumentTree(ctx, &storage.DocumentTree{
		Document:  &core.Document{Tenant: "org-a", Title: "Citing"},
		Citations: []*core.Citation{{CitedId: target.Id, CitedTitle: "Target", ReferenceCount: 1}},
	})
	require.NoError(t, err)

	again := addDocument(t, store, "org-a", "Target", chunk("revised target text", 1, 0, 0))
	require.Equal(t, target.Id, again.Id)

	fwd, err := store.Citations(ctx, "org-a", citing.Document.Id, core.DirectionCites)
	require.NoError(t, err)
	require.Len(t, fwd, 1)
	assert.Equal(t, target.Id, fwd[0].CitedId, "the edge still points at the stored document")

	rev, err := store.Citations(ctx, "org-a", target.Id, core.DirectionCitedBy)
	require.NoError(t, err)
	require.Len(t, rev, 1)
	assert.Equal(t, citing.Document.Id, rev[0].CitingId)

	// Deleting still turns the edge into a stub.
	require.NoError(t, store.DeleteDocument(ctx, "org-a", target.Id))
	fwd, err = store.Citations(ctx, "org-a", citing.Document.Id, core.DirectionCites)
	require.NoError(t, err)
	require.Len(t, fwd, 1)
	assert.False(t, fwd[0].InCorpus())
}

func TestUpdateTagsKeepsTenantTag(t *testing.T) {
	store := newTestStore(t)
	doc := addDocument(t, store, "org-a", "Doc")

	updated, err := store.UpdateTags(context.Background(), "org-a", doc.Id, []string{"reviewed", "tenant:org-b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"reviewed", "tenant:org-a"}, updated.Tags)

	_, err = store.UpdateTags(context.Background(), "org-a", 12345, nil)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocumentCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cited := addDocument(t, store, "org-a", "Cited", chunk("cited text", 0, 1, 0))
	citing, err := store.AddDocumentTree(ctx, &storage.DocumentTree{
		Document:  &core.Document{Tenant: "org-a", Title: "Citing"},
		Records:   []*core.Record{chunk("citing text", 1, 0, 0)},
		Citations: []*core.Citation{{CitedId: cited.Id, CitedTitle: "Cited", ReferenceCount: 2}},
	})
	require.NoError(t, err)

	rev, err := store.Citations(ctx, "org-a", cited.Id, core.DirectionCitedBy)
	require.NoError(t, err)
	require.Len(t, rev, 1)

	// Deleting the cited document turns the incoming edge into a stub.
	require.NoError(t, store.DeleteDocument(ctx, "org-a", cited.Id))
	fwd, err := store.Citations(ctx, "org-a", citing.Document.Id, core.DirectionCites)
	require.NoError(t, err)
	require.Len(t, fwd, 1)
	assert.False(t, fwd[0].InCorpus())
	assert.Equal(t, "Cited", fwd[0].CitedTitle)

	// Deleting the citing document removes its records and edges.
	require.NoError(t, store.DeleteDocument(ctx, "org-a", citing.Document.Id))
	count, err := store.CountRecords(ctx, "org-a", chunkV1)
	require.NoError(t, err)
	assert.Zero(t, count)
	fwd, err = store.Citations(ctx, "org-a", citing.Document.Id, core.DirectionCites)
	require.NoError(t, err)
	assert.Empty(t, fwd)

	assert.ErrorIs(t, store.DeleteDocument(ctx, "org-a", citing.Document.Id), storage.ErrNotFound)

	tenants, err := store.ListTenants(ctx)
	require.NoError(t, err)
	assert.Empty(t, tenants)
}

func TestReassignTenant(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	doc := addDocument(t, store, "org-a", "Movable", chunk("payload", 1, 0, 0))

	moved, err := store.ReassignTenant(ctx, "org-a", doc.Id, "org-b")
	require.NoError(t, err)
	assert.Equal(t, core.TenantID("org-b"), moved.Tenant)
	assert.Contains(t, moved.Tags, "tenant:org-b")
	assert.NotContains(t, moved.Tags, "tenant:org-a")

	_, err = store.GetDocument(ctx, "org-a", doc.Id)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	results, err := store.SimilaritySearch(ctx, storage.Query{Tenant: "org-a", Partition: chunkV1}, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.SimilaritySearch(ctx, storage.Query{Tenant: "org-b", Partition: chunkV1}, []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.TenantID("org-b"), results[0].Record.Tenant)
}

func TestListTenants(t *testing.T) {
	store := newTestStore(t)
	addDocument(t, store, "org-b", "B")
	addDocument(t, store, "org-a", "A1")
	addDocument(t, store, "org-a", "A2")
	addDocument(t, store, "org-a-2", "A3")

	tenants, err := store.ListTenants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.TenantID{"org-a", "org-a-2", "org-b"}, tenants)
}

func TestFindDocuments(t *testing.T) {
	store := newTestStore(t)
	addDocument(t, store, "org-a", "Deep Residual Learning")
	addDocument(t, store, "org-a", "Residual Attention Network")
	addDocument(t, store, "org-b", "Residual Flows")

	docs, err := store.FindDocuments(context.Background(), "org-a", "residual", 10)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, core.TenantID("org-a"), d.Tenant)
	}

	docs, err = store.FindDocuments(context.Background(), "org-a", "residual learning", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Deep Residual Learning", docs[0].Title)
}
