package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridLexicalBoost(t *testing.T) {
	f := newFixture(t)
	exact := f.addDoc(t, "org-a", "Exact", record(core.ContentChunk, "dice loss improves segmentation"))
	near := f.addDoc(t, "org-a", "Close", record(core.ContentChunk, "dice loss improves segmentation boundaries strongly"))

	out, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "dice loss segmentation"})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 2)

	for _, c := range out.Candidates {
		assert.True(t, c.Lexical)
		assert.InDelta(t, c.Similarity+f.services.Options.LexicalBoost, c.Score, 1e-6)
	}
	assert.Equal(t, []core.ID{exact.Id, near.Id}, keys(out.Candidates))
}

func TestHybridLexicalOnlyMatch(t *testing.T) {
	f := newFixture(t)
	f.services.Options.MinSimilarity = 0.99
	doc := f.addDoc(t, "org-a", "Long", record(core.ContentChunk, "transformer attention heads analysed across many layers and datasets"))

	out, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "attention heads"})
	require.NoError(t, err)
	require.Len(t, out.Candidates, 1)
	assert.Equal(t, doc.Id, out.Candidates[0].DocumentID)
	assert.Zero(t, out.Candidates[0].Similarity)
	assert.Equal(t, f.services.Options.LexicalBoost, out.Candidates[0].Score)
}

func TestHybridTieBreaksByRecency(t *testing.T) {
	f := newFixture(t)
	older := f.addDoc(t, "org-a", "Older", record(core.ContentChunk, "graph neural networks"))
	newer := f.addDoc(t, "org-a", "Newer", record(core.ContentChunk, "graph neural networks"))

	out, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "graph neural networks"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{newer.Id, older.Id}, keys(out.Candidates))
}

func TestHybridTenantIsolation(t *testing.T) {
	f := newFixture(t)
	mine := f.addDoc(t, "org-a", "Mine", record(core.ContentChunk, "contrastive learning"))
	f.addDoc(t, "org-b", "Theirs", record(core.ContentChunk, "contrastive learning"))

	out, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "contrastive learning"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{mine.Id}, keys(out.Candidates))
	assert.Equal(t, core.TenantID("org-a"), out.Candidates[0].Record.Tenant)
}

func TestHybridRequiresTenant(t *testing.T) {
	f := newFixture(t)
	_, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Text: "anything"})
	assert.ErrorIs(t, err, core.ErrMissingTenant)
}

func TestHybridSearchesEveryGenerationInItsOwnPartition(t *testing.T) {
	spaces := append(ai.DefaultSpaces("mock", testDim),
		ai.EmbeddingSpace{Kind: core.ContentChunk, Generation: "v0", Model: "small", Dimension: 8})
	f := newFixtureWithSpaces(t, spaces...)

	old := f.addDoc(t, "org-a", "Old", &core.Record{
		Kind:       core.ContentChunk,
		Text:       "variational autoencoder",
		Vector:     mock.TermVector("variational autoencoder", 8),
		Dimension:  8,
		Generation: "v0",
	})
	current := f.addDoc(t, "org-a", "Current", record(core.ContentChunk, "variational autoencoder"))

	out, err := (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "variational autoencoder"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []core.ID{old.Id, current.Id}, keys(out.Candidates))
	for _, c := range out.Candidates {
		assert.Len(t, c.Record.Vector, c.Record.Dimension)
	}

	small, err := f.provider.GetMockEmbedder(core.ContentChunk, "v0")
	require.NoError(t, err)
	large, err := f.provider.GetMockEmbedder(core.ContentChunk, "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, small.CallCount())
	assert.Equal(t, 1, large.CallCount())
}

func TestHybridAbortsOnDimensionMismatch(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "org-a", "Doc", record(core.ContentChunk, "anything at all"))

	embedder, err := f.provider.GetMockEmbedder(core.ContentChunk, "v1")
	require.NoError(t, err)
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return make([]float32, 12), nil
	}

	_, err = (&hybridExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "anything"})
	var mismatch *core.DimensionMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, testDim, mismatch.Expected)
	assert.Equal(t, 12, mismatch.Got)
}

func TestQueryEmbedderGenerations(t *testing.T) {
	f := newFixture(t)

	vectors, err := f.services.Embedder.Embed(context.Background(), "query", core.ContentFormula)
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, storage.Partition{Kind: core.ContentFormula, Generation: "v1", Dimension: testDim}, vectors[0].Partition())

	dim, err := f.services.Embedder.Dimension(core.ContentFormula, "v1")
	require.NoError(t, err)
	assert.Equal(t, testDim, dim)

	_, err = f.services.Embedder.EmbedGeneration(context.Background(), "q", core.ContentFormula, "v9")
	assert.Error(t, err)
}
