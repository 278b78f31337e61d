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


package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/tenant"
)

// Request is the per-query input every executor and enhancement receives.
type Request struct {
	Tenant core.TenantID
	Text   string
	// Depth and Direction steer citation traversal. Zero values use the defaults.
	Depth     int
	Direction core.Direction
	// SeedDocument pins the citation traversal seed.
	SeedDocument core.ID
}

// Output is the ranked candidate list of one algorithm.
type Output struct {
	Algorithm  string
	Candidates []*Candidate
	// SubQueries lists the sub-queries a fan-out ran.
	SubQueries []string
	// Enhancements lists the enhancements applied, in order.
	Enhancements []string
	// Failed counts failed sub-calls; Err holds their errors.
	Failed int
	Err    error
}

// Partial reports whether some sub-call of the algorithm failed.
func (o *Output) Partial() bool {
	return o.Failed > 0
}

func (o *Output) fail(err error) {
	o.Failed++
	o.Err = multierror.Append(o.Err, err)
}

// Executor runs one retrieval algorithm.
type Executor interface {
	Name() string
	Retrieve(ctx context.Context, req *Request) (*Output, error)
}

// Enhancer refines the candidates of an algorithm after it ran.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, req *Request, out *Output) error
}

// Services holds the collaborators executors share. Retrieval never writes to Store.
type Services struct {
	Store    storage.Searcher
	Embedder *QueryEmbedder
	Oracle   ai.Oracle // nil disables paraphrasing and validation
	Fanout   *Fanout
	Options  Options
	Logger   *slog.Logger
}

// Executors returns every built-in executor keyed by algorithm name.
func Executors(s *Services) map[string]Executor {
	executors := []Executor{
		&hybridExecutor{s},
		&multiQueryExecutor{s},
		&formulaExecutor{s},
		&hierarchicalExecutor{s},
		&citationExecutor{s},
		&contextualExecutor{s},
	}
	byName := make(map[string]Executor, len(executors))
	for _, e := range executors {
		byName[e.Name()] = e
	}
	return byName
}

// Enhancers returns every built-in enhancement keyed by name.
func Enhancers(s *Services) map[string]Enhancer {
	enhancers := []Enhancer{
		&queryExpansion{s},
		&reranker{s},
		&sectionAttacher{s},
		&selfConsistency{s},
	}
	byName := make(map[string]Enhancer, len(enhancers))
	for _, e := range enhancers {
		byName[e.Name()] = e
	}
	return byName
}

// scoped builds a tenant-scoped query for one partition.
func scoped(id core.TenantID, v QueryVector, limit int, minScore float32) (storage.Query, error) {
	return tenant.Filter(id, storage.Query{
		Partition: v.Partition(),
		Limit:     limit,
		MinScore:  minScore,
	})
}

// allFailed builds the error of an algorithm whose every sub-call failed.
func allFailed(ctx context.Context, name string, out *Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fmt.Errorf("%s: %w: %w", name, core.ErrAllFanoutFailed, out.Err)
}
