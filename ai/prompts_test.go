package ai

import (
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassificationPromptListsEveryTaskType(t *testing.T) {
	prompt := ClassificationPrompt("papers citing attention is all you need")

	for _, label := range []string{"general", "comparable_methods", "reproducibility", "formula", "synthesis", "citation"} {
		assert.Contains(t, prompt, label)
	}
	assert.Contains(t, prompt, "papers citing attention is all you need")
}

func TestClassificationPromptListsGivenTasks(t *testing.T) {
	prompt := ClassificationPrompt("which datasets were used", core.TaskGeneral, "dataset_lookup")

	assert.Contains(t, prompt, "- general: broad literature survey")
	assert.Contains(t, prompt, "- dataset_lookup\n")
	assert.Contains(t, prompt, "one of: general, dataset_lookup.")
	assert.NotContains(t, prompt, "formula")
}

func TestParseParaphrases(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   []string
	}{
		{
			name:   "json object",
			answer: `{"queries": ["segmentation loss functions", "cross entropy for pixel labeling"]}`,
			want:   []string{"segmentation loss functions", "cross entropy for pixel labeling"},
		},
		{
			name:   "fenced json with prose",
			answer: "Here you go:\n```json\n{\"queries\": [\"a\", \"b\"]}\n```",
			want:   []string{"a", "b"},
		},
		{
			name:   "bare array",
			answer: `["one", "two", "three"]`,
			want:   []string{"one", "two", "three"},
		},
		{
			name:   "numbered list",
			answer: "1. first query\n2) second query\n- third query",
			want:   []string{"first query", "second query", "third query"},
		},
		{
			name:   "duplicates and blanks dropped",
			answer: `{"queries": ["Dice loss", " ", "dice loss", "focal loss"]}`,
			want:   []string{"Dice loss", "focal loss"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseParaphrases(tt.answer)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("nothing usable", func(t *testing.T) {
		_, err := ParseParaphrases("I cannot help with that.")
		assert.ErrorIs(t, err, ErrEmptyResponse)
	})
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		answer string
		want   float64
	}{
		{"0.8", 0.8},
		{"Score: 0.25", 0.25},
		{"1", 1},
		{"1.7", 1},
		{"yes", 1},
		{"No.", 0},
		{"true", 1},
	}
	for _, tt := range tests {
		got, err := ParseScore(tt.answer)
		require.NoError(t, err, tt.answer)
		assert.InDelta(t, tt.want, got, 1e-9, tt.answer)
	}

	_, err := ParseScore("relevant")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, ExtractJSON("sure! {\"a\": 1} hope that helps"))
	assert.Equal(t, `[1, 2]`, ExtractJSON("```\n[1, 2]\n```"))
	assert.Equal(t, "plain", ExtractJSON("plain"))
	assert.Equal(t, `{"queries": ["a"]}`, ExtractJSON(`{queries": ["a"]}`))
	assert.Equal(t, `{"queries": ["loss, metric: dice", "b"]}`, ExtractJSON(`{queries: ["loss, metric: dice", "b"]}`))
	assert.Equal(t, `{"queries": ["say \"x, y: z\""]}`, ExtractJSON(`{"queries": ["say \"x, y: z\""]}`))
	assert.Equal(t, `[1, 2]`, ExtractJSON(`[1, 2]`))
}
