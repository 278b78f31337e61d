package strategy

import (
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		task         core.TaskType
		algorithms   []string
		enhancements []string
	}{
		{core.TaskGeneral, []string{MultiQuery}, []string{QueryExpansion, Rerank}},
		{core.TaskComparableMethods, []string{MultiQuery, Hybrid}, []string{Rerank}},
		{core.TaskReproducibility, []string{Contextual}, []string{AttachSections}},
		{core.TaskFormula, []string{Formula}, []string{Rerank}},
		{core.TaskSynthesis, []string{Hierarchical}, []string{SelfConsistency, Rerank}},
		{core.TaskCitation, []string{CitationGraph}, []string{AttachSections}},
	}

	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			plan := r.Resolve(tt.task)
			assert.Equal(t, tt.task, plan.Task)
			assert.Equal(t, tt.algorithms, plan.Algorithms)
			assert.Equal(t, tt.enhancements, plan.Enhancements)
			assert.NotEmpty(t, plan.ExpectedAccuracy)
			assert.NotEmpty(t, plan.ExpectedLatency)
			assert.GreaterOrEqual(t, plan.Budget, 3*time.Second)
			assert.LessOrEqual(t, plan.Budget, 20*time.Second)
		})
	}

	assert.Len(t, r.Tasks(), len(core.TaskTypes))
}

func TestResolveUnknownFallsBackToGeneral(t *testing.T) {
	plan := NewRegistry().Resolve("astrology")
	assert.Equal(t, core.TaskGeneral, plan.Task)
}

func TestResolveReturnsCopies(t *testing.T) {
	r := NewRegistry()
	plan := r.Resolve(core.TaskGeneral)
	plan.Algorithms[0] = "mutated"

	assert.Equal(t, MultiQuery, r.Resolve(core.TaskGeneral).Algorithms[0])
}

func TestRegisterAddsRow(t *testing.T) {
	r := NewRegistry()
	row := Row{
		Task:       "dataset_lookup",
		Algorithms: []string{Contextual, Hybrid},
		Accuracy:   "0.80-0.90",
		Latency:    "2-4s",
		Budget:     5 * time.Second,
	}
	require.NoError(t, r.Register(row))

	assert.True(t, r.Has("dataset_lookup"))
	plan := r.Resolve("dataset_lookup")
	assert.Equal(t, []string{Contextual, Hybrid}, plan.Algorithms)
	assert.Empty(t, plan.Enhancements)
	assert.Len(t, r.Rows(), len(core.TaskTypes)+1)
}

func TestRegisterRejectsInvalidRows(t *testing.T) {
	r := NewRegistry()
	assert.ErrorIs(t, r.Register(Row{Algorithms: []string{Hybrid}, Budget: time.Second}), ErrInvalidRow)
	assert.ErrorIs(t, r.Register(Row{Task: "x", Budget: time.Second}), ErrInvalidRow)
	assert.ErrorIs(t, r.Register(Row{Task: "x", Algorithms: []string{Hybrid}}), ErrInvalidRow)
}
