package search

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/stretchr/testify/require"
)

const testDim = 256

// countingSearcher counts every storage call made through it.
type countingSearcher struct {
	storage.Searcher
	calls atomic.Int64
}

func (c *countingSearcher) SimilaritySearch(ctx context.Context, q storage.Query, vector []float32) ([]*core.ScoredRecord, error) {
	c.calls.Add(1)
	return c.Searcher.SimilaritySearch(ctx, q, vector)
}

func (c *countingSearcher) MatchText(ctx context.Context, q storage.Query, probe string, mode storage.MatchMode) ([]*core.ScoredRecord, error) {
	c.calls.Add(1)
	return c.Searcher.MatchText(ctx, q, probe, mode)
}

func (c *countingSearcher) Citations(ctx context.Context, tenant core.TenantID, document core.ID, dir core.Direction) ([]*core.Citation, error) {
	c.calls.Add(1)
	return c.Searcher.Citations(ctx, tenant, document, dir)
}

func (c *countingSearcher) GetDocument(ctx context.Context, tenant core.TenantID, id core.ID) (*core.Document, error) {
	c.calls.Add(1)
	return c.Searcher.GetDocument(ctx, tenant, id)
}

func (c *countingSearcher) FindDocuments(ctx context.Context, tenant core.TenantID, text string, limit int) ([]*core.Document, error) {
	c.calls.Add(1)
	return c.Searcher.FindDocuments(ctx, tenant, text, limit)
}

type env struct {
	orchestrator *Orchestrator
	store        storage.Store
	counter      *countingSearcher
	provider     *mock.MockProvider
	oracle       *mock.MockOracle
	clock        time.Time

	task        string
	paraphrases string
	validation  string
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := mock.NewMockProviderWithSpaces(ai.DefaultSpaces("mock", testDim)...)
	e := &env{
		store:      store,
		counter:    &countingSearcher{Searcher: store},
		provider:   provider,
		oracle:     provider.GetMockOracle(),
		clock:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		task:       "general",
		validation: "1.0",
	}
	// The oracle answers by prompt kind so one query can classify, paraphrase
	// and validate.
	e.oracle.CompleteFunc = func(ctx context.Context, prompt string) (string, error) {
		switch {
		case strings.HasPrefix(prompt, "Classify"):
			return e.task, nil
		case strings.HasPrefix(prompt, "Rewrite"):
			return e.paraphrases, nil
		}
		return e.validation, nil
	}

	o, err := NewOrchestrator(e.counter, provider, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	e.orchestrator = o
	return e
}

func chunk(text string) *core.Record {
	return &core.Record{
		Kind:       core.ContentChunk,
		Text:       text,
		Vector:     mock.TermVector(text, testDim),
		Dimension:  testDim,
		Generation: "v1",
	}
}

func (e *env) addDoc(t *testing.T, tenant core.TenantID, title string, citations []*core.Citation, records ...*core.Record) *core.Document {
	t.Helper()
	e.clock = e.clock.Add(time.Minute)
	for i, r := range records {
		r.Position = i
	}
	tree, err := e.store.AddDocumentTree(context.Background(), &storage.DocumentTree{
		Document:  &core.Document{Tenant: tenant, Title: title, InsertedAt: e.clock},
		Records:   records,
		Citations: citations,
	})
	require.NoError(t, err)
	return tree.Document
}

func resultIDs(results []*Result) []core.ID {
	ids := make([]core.ID, len(results))
	for i, r := range results {
		if r.Document != nil {
			ids[i] = r.Document.Id
		}
	}
	return ids
}
