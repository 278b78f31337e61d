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


package search

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/quarry/core"
)

// Request is one query.
type Request struct {
	Text   string
	Tenant core.TenantID
	// TaskType skips classification when set. An unknown value falls back to
	// general retrieval.
	TaskType core.TaskType
	// Limit caps the number of results. Zero uses the default limit.
	Limit int
	// Depth, Direction and SeedDocument steer citation traversal.
	Depth        int
	Direction    core.Direction
	SeedDocument core.ID
}

// Result is one ranked entry of a response. Exactly one of Document and Stub is set.
type Result struct {
	Document *core.Document
	// Stub is a cited work outside the corpus.
	Stub *core.Citation
	// Record is the best matching record, when the result came from a record search.
	Record   *core.Record
	Sections []*core.ScoredRecord

	Score      float32
	Similarity float32
	RankSum    int
	// Ranks maps algorithm name to the rank of the result in that algorithm's list.
	Ranks   map[string]int
	Hops    int
	Demoted bool
	// Provenance lists the algorithms, sub-queries and enhancements that produced
	// or touched the result.
	Provenance []string
}

// Title returns the document title or the cited title of a stub.
func (r *Result) Title() string {
	if r.Document != nil {
		return r.Document.Title
	}
	if r.Stub != nil {
		return r.Stub.CitedTitle
	}
	return ""
}

// PartialFailure reports sub-queries or algorithms that failed while others
// succeeded. A response without one is complete.
type PartialFailure struct {
	// Algorithms lists the algorithms that failed outright.
	Algorithms []string
	// SubQueries counts failed sub-queries inside algorithms that still returned.
	SubQueries int
	Err        error
}

func (p *PartialFailure) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "partial result: %d failed sub-queries", p.SubQueries)
	if len(p.Algorithms) > 0 {
		fmt.Fprintf(&b, ", failed algorithms %s", strings.Join(p.Algorithms, ","))
	}
	if p.Err != nil {
		fmt.Fprintf(&b, ": %v", p.Err)
	}
	return b.String()
}

func (p *PartialFailure) Unwrap() error {
	return p.Err
}

func (p *PartialFailure) empty() bool {
	return len(p.Algorithms) == 0 && p.SubQueries == 0
}

func (p *PartialFailure) algorithm(name string, err error) {
	if !slices.Contains(p.Algorithms, name) {
		p.Algorithms = append(p.Algorithms, name)
	}
	p.Err = multierror.Append(p.Err, err)
}

func (p *PartialFailure) subQueries(n int, err error) {
	p.SubQueries += n
	if err != nil {
		p.Err = multierror.Append(p.Err, err)
	}
}

// Response is the answer to one query together with the plan that produced it.
type Response struct {
	// QueryID identifies the query in logs and events.
	QueryID string
	Results []*Result

	TaskType         core.TaskType
	Strategies       []string
	Enhancements     []string
	ExpectedAccuracy string
	ExpectedLatency  string
	// SubQueries lists the paraphrases multi-query expansion searched.
	SubQueries []string

	// Partial is nil when every sub-query succeeded.
	Partial *PartialFailure
	Events  []Event
	Elapsed time.Duration
}

// IsPartial reports whether some sub-query failed.
func (r *Response) IsPartial() bool {
	return r.Partial != nil
}
