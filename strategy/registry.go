// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package strategy maps task types to retrieval plans.
//
// The mapping is a table of rows. Adding a task type means registering one more
// row; executors and enhancements are looked up by name and never branch on the
// task type themselves.
package strategy

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/quarry/core"
)

// Retrieval algorithm names.
const (
	Hybrid        = "hybrid"
	MultiQuery    = "multi_query"
	Formula       = "formula"
	Hierarchical  = "hierarchical"
	CitationGraph = "citation_graph"
	Contextual    = "contextual"
)

// Enhancement names.
const (
	QueryExpansion  = "query_expansion"
	Rerank          = "rerank"
	AttachSections  = "hierarchical"
	SelfConsistency = "self_consistency"
)

var (
	// ErrInvalidRow indicates a row that cannot be registered.
	ErrInvalidRow = errors.New("invalid strategy row")
)

// Row is one entry of the strategy table. Accuracy and Latency are descriptive
// bands for reporting. Budget is the soft time budget of the whole query.
type Row struct {
	Task         core.TaskType
	Algorithms   []string
	Enhancements []string
	Accuracy     string
	Latency      string
	Budget       time.Duration
}

// Plan is the per-query retrieval decision. It is never persisted.
type Plan struct {
	Task             core.TaskType
	Algorithms       []string
	Enhancements     []string
	ExpectedAccuracy string
	ExpectedLatency  string
	Budget           time.Duration
}

// DefaultRows returns the built-in strategy table.
func DefaultRows() []Row {
	return []Row{
		{
			Task:         core.TaskGeneral,
			Algorithms:   []string{MultiQuery},
			Enhancements: []string{QueryExpansion, Rerank},
			Accuracy:     "0.80-0.85",
			Latency:      "3-6s",
			Budget:       10 * time.Second,
		},
		{
			Task:         core.TaskComparableMethods,
			Algorithms:   []string{MultiQuery, Hybrid},
			Enhancements: []string{Rerank},
			Accuracy:     "0.85-0.90",
			Latency:      "5-10s",
			Budget:       12 * time.Second,
		},
		{
			Task:         core.TaskReproducibility,
			Algorithms:   []string{Contextual},
			Enhancements: []string{AttachSections},
			Accuracy:     "0.85-0.92",
			Latency:      "2-5s",
			Budget:       8 * time.Second,
		},
		{
			Task:         core.TaskFormula,
			Algorithms:   []string{Formula},
			Enhancements: []string{Rerank},
			Accuracy:     "0.90-0.95",
			Latency:      "1-3s",
			Budget:       5 * time.Second,
		},
		{
			Task:         core.TaskSynthesis,
			Algorithms:   []string{Hierarchical},
			Enhancements: []string{SelfConsistency, Rerank},
			Accuracy:     "0.88-0.93",
			Latency:      "10-20s",
			Budget:       20 * time.Second,
		},
		{
			Task:         core.TaskCitation,
			Algorithms:   []string{CitationGraph},
			Enhancements: []string{AttachSections},
			Accuracy:     "0.90-0.95",
			Latency:      "2-6s",
			Budget:       8 * time.Second,
		},
	}
}

// Registry resolves task types to plans. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	rows map[core.TaskType]Row
}

// NewRegistry creates a registry holding DefaultRows.
func NewRegistry() *Registry {
	r := &Registry{rows: make(map[core.TaskType]Row)}
	for _, row := range DefaultRows() {
		r.rows[row.Task] = row
	}
	return r
}

// Register adds or replaces the row of row.Task.
func (r *Registry) Register(row Row) error {
	if row.Task == "" {
		return fmt.Errorf("%w: task type is empty", ErrInvalidRow)
	}
	if len(row.Algorithms) == 0 {
		return fmt.Errorf("%w: %s has no algorithms", ErrInvalidRow, row.Task)
	}
	if row.Budget <= 0 {
		return fmt.Errorf("%w: %s budget must be positive", ErrInvalidRow, row.Task)
	}
	row.Algorithms = slices.Clone(row.Algorithms)
	row.Enhancements = slices.Clone(row.Enhancements)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[row.Task] = row
	return nil
}

// Resolve returns the plan of task. Unknown task types resolve to the general plan.
func (r *Registry) Resolve(task core.TaskType) Plan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[task]
	if !ok {
		row = r.rows[core.TaskGeneral]
	}
	return Plan{
		Task:             row.Task,
		Algorithms:       slices.Clone(row.Algorithms),
		Enhancements:     slices.Clone(row.Enhancements),
		ExpectedAccuracy: row.Accuracy,
		ExpectedLatency:  row.Latency,
		Budget:           row.Budget,
	}
}

// Has reports whether task has a row.
func (r *Registry) Has(task core.TaskType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rows[task]
	return ok
}

// Tasks returns every registered task type, sorted.
func (r *Registry) Tasks() []core.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tasks := make([]core.TaskType, 0, len(r.rows))
	for task := range r.rows {
		tasks = append(tasks, task)
	}
	slices.Sort(tasks)
	return tasks
}

// Rows returns a copy of every row, sorted by task type.
func (r *Registry) Rows() []Row {
	tasks := r.Tasks()
	rows := make([]Row, 0, len(tasks))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, task := range tasks {
		rows = append(rows, r.rows[task])
	}
	return rows
}
