package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func section(heading, text string) *core.Record {
	return record(core.ContentSection, text, core.AttrHeading, heading)
}

func TestHierarchicalAttachesSectionsOfSameDocument(t *testing.T) {
	f := newFixture(t)
	survey := f.addDoc(t, "org-a", "Survey",
		record(core.ContentDocument, "attention mechanisms in transformers survey"),
		section("Intro", "attention mechanisms transformers"),
		section("Heads", "multi-head attention mechanisms"),
		section("Positions", "positional encodings transformers"),
		section("Training", "training schedule"),
	)
	heads := f.addDoc(t, "org-a", "Heads",
		record(core.ContentDocument, "attention heads in transformers"),
		section("Body", "attention heads in transformers"),
	)
	f.addDoc(t, "org-a", "Convolutions",
		record(core.ContentDocument, "convolutional networks"),
		section("Body", "attention mechanisms transformers"),
	)

	out, err := (&hierarchicalExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "attention mechanisms transformers"})
	require.NoError(t, err)
	require.Equal(t, []core.ID{survey.Id, heads.Id}, keys(out.Candidates))
	assert.False(t, out.Partial())

	sections := out.Candidates[0].Sections
	require.Len(t, sections, f.services.Options.SectionsPerDocument)
	assert.Equal(t, "attention mechanisms transformers", sections[0].Record.Text)
	for _, s := range sections {
		assert.Equal(t, survey.Id, s.Record.DocumentId)
		assert.Equal(t, core.ContentSection, s.Record.Kind)
	}
	for i := 1; i < len(sections); i++ {
		assert.GreaterOrEqual(t, sections[i-1].Score, sections[i].Score)
	}

	require.Len(t, out.Candidates[1].Sections, 1)
	assert.Equal(t, heads.Id, out.Candidates[1].Sections[0].Record.DocumentId)
}

func TestHierarchicalFallsBackToChunks(t *testing.T) {
	f := newFixture(t)
	doc := f.addDoc(t, "org-a", "Chunks only",
		record(core.ContentChunk, "attention mechanisms in transformers survey"),
		section("Intro", "attention mechanisms transformers"),
	)

	out, err := (&hierarchicalExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "attention mechanisms transformers"})
	require.NoError(t, err)
	require.Equal(t, []core.ID{doc.Id}, keys(out.Candidates))
	require.Len(t, out.Candidates[0].Sections, 1)
}

func TestHierarchicalStageOneWidth(t *testing.T) {
	f := newFixture(t)
	f.services.Options.StageOneWidth = 1
	f.addDoc(t, "org-a", "Older", record(core.ContentDocument, "attention heads in transformers"))
	best := f.addDoc(t, "org-a", "Best", record(core.ContentDocument, "attention mechanisms transformers"))

	out, err := (&hierarchicalExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "attention mechanisms transformers"})
	require.NoError(t, err)
	assert.Equal(t, []core.ID{best.Id}, keys(out.Candidates))
}

func TestHierarchicalSectionEmbeddingFailure(t *testing.T) {
	f := newFixture(t)
	f.addDoc(t, "org-a", "Survey",
		record(core.ContentDocument, "attention mechanisms in transformers survey"),
		section("Intro", "attention mechanisms transformers"),
	)
	sections, err := f.provider.GetMockEmbedder(core.ContentSection, "v1")
	require.NoError(t, err)
	sections.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("section model offline")
	}

	_, err = (&hierarchicalExecutor{f.services}).Retrieve(context.Background(), &Request{Tenant: "org-a", Text: "attention mechanisms transformers"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "section model offline")
}
