package reembed

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunkJob(tenant core.TenantID) Job {
	return Job{Tenant: tenant, Kind: core.ContentChunk, From: "v1", To: "v2"}
}

func count(t *testing.T, store storage.Store, tenant core.TenantID, p storage.Partition) int {
	t.Helper()
	n, err := store.CountRecords(context.Background(), tenant, p)
	require.NoError(t, err)
	return n
}

func TestNewReembedder(t *testing.T) {
	store := newStore(t)
	provider := testProvider()

	_, err := NewReembedder(nil, provider, nil, nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	_, err = NewReembedder(store, nil, nil, nil)
	assert.ErrorIs(t, err, ErrAIProviderRequired)

	_, err = NewReembedder(store, provider, &Config{BatchSize: 0, MaxRetries: 1}, nil)
	assert.ErrorIs(t, err, ErrInvalidJob)

	_, err = NewReembedder(store, provider, &Config{BatchSize: 10, MaxRetries: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	r, err := NewReembedder(store, provider, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestReembedderMigratesOneTenant(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 5)
	seed(t, store, "org-b", "Foreign", 2)

	var out bytes.Buffer
	r, err := NewReembedder(store, testProvider(), &Config{BatchSize: 2, ReportInterval: 1, MaxRetries: 1}, &out)
	require.NoError(t, err)

	result, err := r.Run(ctx, chunkJob("org-a"))
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Migrated)
	assert.False(t, result.Resumed)
	assert.Zero(t, result.Dropped)
	assert.Equal(t, v1Chunks, result.Source)
	assert.Equal(t, v2Chunks, result.Target)

	assert.Equal(t, 5, count(t, store, "org-a", v2Chunks))
	assert.Equal(t, 5, count(t, store, "org-a", v1Chunks), "old generation stays queryable")
	assert.Zero(t, count(t, store, "org-b", v2Chunks))

	checkpoint, err := store.LoadCheckpoint(ctx, chunkJob("org-a").checkpointKey())
	require.NoError(t, err)
	assert.Nil(t, checkpoint, "finished jobs leave no checkpoint")
	assert.Contains(t, out.String(), "Reembedding complete. Migrated 5 records")

	// The new partition answers similarity queries at its own dimension.
	hits, err := store.SimilaritySearch(ctx, storage.Query{Tenant: "org-a", Partition: v2Chunks, Limit: 1},
		mock.TermVector("Survey passage 3", newDim))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-5)
	assert.Equal(t, "v2", hits[0].Record.Generation)
}

func TestReembedderDropOld(t *testing.T) {
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 3)

	r, err := NewReembedder(store, testProvider(), nil, nil)
	require.NoError(t, err)

	job := chunkJob("org-a")
	job.DropOld = true
	result, err := r.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Dropped)
	assert.Zero(t, count(t, store, "org-a", v1Chunks))
	assert.Equal(t, 3, count(t, store, "org-a", v2Chunks))
}

func TestReembedderResumesFromCheckpoint(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	seed(t, store, "org-a", "Survey", 5)
	ids := partitionIDs(t, store, "org-a", v1Chunks)

	provider := testProvider()
	embedder, err := provider.GetMockEmbedder(core.ContentChunk, "v2")
	require.NoError(t, err)
	var calls atomic.Int32
	offline := errors.New("embedding service offline")
	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if calls.Add(1) == 2 {
			return nil, offline
		}
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = mock.TermVector(text, newDim)
		}
		return out, nil
	}

	r, err := NewReembedder(store, provider, &Config{BatchSize: 2, ReportInterval: 10, MaxRetries: 1}, nil)
	require.NoError(t, err)

	result, err := r.Run(ctx, chunkJob("org-a"))
	assert.ErrorIs(t, err, offline)
	assert.Equal(t, 2, result.Migrated)

	checkpoint, err := store.LoadCheckpoint(ctx, chunkJob("org-a").checkpointKey())
	require.NoError(t, err)
	require.NotNil(t, checkpoint)
	assert.Equal(t, ids[1], checkpoint.LastID)
	assert.Equal(t, 2, checkpoint.Processed)
	assert.Equal(t, core.TenantID("org-a"), checkpoint.Tenant)
	assert.Equal(t, 2, count(t, store, "org-a", v2Chunks))

	embedder.Reset()
	result, err = r.Run(ctx, chunkJob("org-a"))
	require.NoError(t, err)
	assert.True(t, result.Resumed)
	assert.Equal(t, 3, result.Migrated)
	assert.Len(t, embedder.Texts(), 3, "migrated records are not embedded again")
	assert.Equal(t, 5, count(t, store, "org-a", v2Chunks))
}

func TestReembedderEmptyPartition(t *testing.T) {
	var out bytes.Buffer
	r, err := NewReembedder(newStore(t), testProvider(), nil, &out)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), chunkJob("org-a"))
	require.NoError(t, err)
	assert.Zero(t, result.Total)
	assert.Contains(t, out.String(), "No records found")
}

func TestReembedderInvalidJobs(t *testing.T) {
	store := newStore(t)
	provider := testProvider()
	r, err := NewReembedder(store, provider, nil, nil)
	require.NoError(t, err)

	tests := []struct {
		name   string
		job    Job
		target error
	}{
		{"missing tenant", Job{Kind: core.ContentChunk, From: "v1", To: "v2"}, core.ErrMissingTenant},
		{"unknown kind", Job{Tenant: "org-a", Kind: "poem", From: "v1", To: "v2"}, ErrInvalidJob},
		{"same generation", Job{Tenant: "org-a", Kind: core.ContentChunk, From: "v1", To: "v1"}, ErrInvalidJob},
		{"unknown target", Job{Tenant: "org-a", Kind: core.ContentChunk, From: "v1", To: "v9"}, ai.ErrUnknownSpace},
		{"target not configured for kind", Job{Tenant: "org-a", Kind: core.ContentTable, From: "v1", To: "v2"}, ai.ErrUnknownSpace},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Run(context.Background(), tt.job)
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.Zero(t, provider.GetMockOracle().CallCount())
}
