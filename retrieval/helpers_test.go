package retrieval

import (
	"context"
	"log/slog"
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

type fixture struct {
	services *Services
	store    storage.Store
	provider *mock.MockProvider
	oracle   *mock.MockOracle
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithSpaces(t, ai.DefaultSpaces("mock", testDim)...)
}

func newFixtureWithSpaces(t *testing.T, spaces ...ai.EmbeddingSpace) *fixture {
	t.Helper()
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	provider := mock.NewMockProviderWithSpaces(spaces...)
	fanout, err := NewFanout(4, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(fanout.Release)

	return &fixture{
		services: &Services{
			Store:    store,
			Embedder: NewQueryEmbedder(provider, nil),
			Oracle:   provider.GetMockOracle(),
			Fanout:   fanout,
			Options:  DefaultOptions(),
			Logger:   slog.Default(),
		},
		store:    store,
		provider: provider,
		oracle:   provider.GetMockOracle(),
		clock:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func record(kind core.ContentType, text string, attrs ...string) *core.Record {
	r := &core.Record{
		Kind:       kind,
		Text:       text,
		Vector:     mock.TermVector(text, testDim),
		Dimension:  testDim,
		Generation: "v1",
	}
	if len(attrs) > 0 {
		r.Attributes = make(map[string]string)
		for i := 0; i+1 < len(attrs); i += 2 {
			r.Attributes[attrs[i]] = attrs[i+1]
		}
	}
	return r
}

// addDoc stores a document with records. Each call is one minute newer than the last.
func (f *fixture) addDoc(t *testing.T, tenant core.TenantID, title string, records ...*core.Record) *core.Document {
	return f.addTree(t, tenant, title, nil, records...)
}

func (f *fixture) addTree(t *testing.T, tenant core.TenantID, title string, citations []*core.Citation, records ...*core.Record) *core.Document {
	t.Helper()
	f.clock = f.clock.Add(time.Minute)
	for i, r := range records {
		r.Position = i
	}
	tree, err := f.store.AddDocumentTree(context.Background(), &storage.DocumentTree{
		Document:  &core.Document{Tenant: tenant, Title: title, InsertedAt: f.clock},
		Records:   records,
		Citations: citations,
	})
	require.NoError(t, err)
	return tree.Document
}

func (f *fixture) paraphrases(answer string) {
	f.oracle.Response = answer
}

func keys(candidates []*Candidate) []core.ID {
	ids := make([]core.ID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.DocumentID
	}
	return ids
}
