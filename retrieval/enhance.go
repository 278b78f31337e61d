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
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/strategy"
)

// queryExpansion adds the most frequent new terms of the top candidates to the
// query and searches again. Candidates found again gain a bonus; new candidates
// rank below every existing one.
type queryExpansion struct {
	s *Services
}

func (e *queryExpansion) Name() string { return strategy.QueryExpansion }

func (e *queryExpansion) Enhance(ctx context.Context, req *Request, out *Output) error {
	terms := feedbackTerms(req.Text, out.Candidates, e.s.Options.FeedbackCandidates, e.s.Options.ExpansionTerms)
	if len(terms) == 0 {
		return nil
	}
	expanded := req.Text + " " + strings.Join(terms, " ")
	e.s.Logger.Debug("expanded query", "expanded", expanded)

	found, err := e.s.hybridSearch(ctx, req.Tenant, expanded, e.Name())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out.fail(fmt.Errorf("%s: %w", e.Name(), err))
		return nil
	}

	floor := 0
	existing := make(map[string]*Candidate, len(out.Candidates))
	for i, c := range out.Candidates {
		existing[c.Key()] = c
		if i == 0 || c.Tier < floor {
			floor = c.Tier
		}
	}
	for _, c := range found {
		if have, ok := existing[c.Key()]; ok {
			have.Score += e.s.Options.ExpansionBonus
			have.addProvenance(e.Name())
			continue
		}
		c.Tier = floor - 1
		out.Candidates = append(out.Candidates, c)
	}
	SortCandidates(out.Candidates)
	return nil
}

// feedbackTerms returns up to n terms that occur most often in the top candidates
// and are not already part of the query. Ties break alphabetically.
func feedbackTerms(query string, candidates []*Candidate, top, n int) []string {
	if n <= 0 {
		return nil
	}
	inQuery := make(map[string]bool)
	for _, t := range core.Terms(query) {
		inQuery[t] = true
	}
	counts := make(map[string]int)
	for i, c := range candidates {
		if i >= top {
			break
		}
		seen := make(map[string]bool)
		for _, t := range core.Terms(c.Text()) {
			if inQuery[t] || seen[t] || len(t) < 3 {
				continue
			}
			seen[t] = true
			counts[t]++
		}
	}

	terms := make([]string, 0, len(counts))
	for t, count := range counts {
		if count >= 2 || len(candidates) == 1 {
			terms = append(terms, t)
		}
	}
	slices.SortFunc(terms, func(a, b string) int {
		if c := cmp.Compare(counts[b], counts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// reranker adds a term overlap bonus to scores. Tiers are left untouched, so the
// bonus only reorders candidates inside a tier.
type reranker struct {
	s *Services
}

func (e *reranker) Name() string { return strategy.Rerank }

func (e *reranker) Enhance(ctx context.Context, req *Request, out *Output) error {
	for _, c := range out.Candidates {
		overlap := core.TermOverlap(c.Text(), req.Text)
		if c.Document != nil && c.Record != nil {
			overlap = max(overlap, core.TermOverlap(c.Document.Title, req.Text))
		}
		c.Score += e.s.Options.RerankWeight * overlap
	}
	SortCandidates(out.Candidates)
	return nil
}

// sectionAttacher attaches the best sections of each top candidate document.
type sectionAttacher struct {
	s *Services
}

func (e *sectionAttacher) Name() string { return strategy.AttachSections }

func (e *sectionAttacher) Enhance(ctx context.Context, req *Request, out *Output) error {
	window := out.Candidates[:min(len(out.Candidates), e.s.Options.EnhanceWindow)]
	return e.s.attachSections(ctx, req, out, window)
}

// selfConsistency asks the oracle to score every section of the top candidates
// against the query. Sections below the reject threshold are removed; a candidate
// whose passages all score below the demote threshold is demoted one tier, and one
// whose passages were all rejected is dropped.
type selfConsistency struct {
	s *Services
}

func (e *selfConsistency) Name() string { return strategy.SelfConsistency }

type passage struct {
	candidate int
	record    *core.ScoredRecord
}

func (e *selfConsistency) Enhance(ctx context.Context, req *Request, out *Output) error {
	if e.s.Oracle == nil {
		return nil
	}
	window := min(len(out.Candidates), e.s.Options.EnhanceWindow)

	var passages []passage
	for i, c := range out.Candidates[:window] {
		if len(c.Sections) > 0 {
			for _, sr := range c.Sections {
				passages = append(passages, passage{candidate: i, record: sr})
			}
		} else if c.Record != nil {
			passages = append(passages, passage{candidate: i, record: &core.ScoredRecord{Record: c.Record, Score: c.Similarity}})
		}
	}
	if len(passages) == 0 {
		return nil
	}

	scores, errs := fanOut(ctx, e.s.Fanout, len(passages), func(ctx context.Context, i int) (float64, error) {
		answer, err := e.s.Oracle.Complete(ctx, ai.ValidationPrompt(req.Text, passages[i].record.Record.Text))
		if err != nil {
			return 0, err
		}
		return ai.ParseScore(answer)
	})

	type tally struct {
		kept, demoted, rejected, unvalidated int
		sections                             []*core.ScoredRecord
	}
	tallies := make([]tally, window)
	for i, p := range passages {
		t := &tallies[p.candidate]
		if errs[i] != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			out.fail(fmt.Errorf("%s: %w", e.Name(), errs[i]))
			t.unvalidated++
			t.sections = append(t.sections, p.record)
			continue
		}
		switch score := scores[i]; {
		case score < e.s.Options.RejectBelow:
			t.rejected++
			metrics.IncValidationVerdict("reject")
		case score < e.s.Options.DemoteBelow:
			t.demoted++
			t.sections = append(t.sections, p.record)
			metrics.IncValidationVerdict("demote")
		default:
			t.kept++
			t.sections = append(t.sections, p.record)
			metrics.IncValidationVerdict("keep")
		}
	}

	kept := out.Candidates[:0]
	for i, c := range out.Candidates {
		if i >= window {
			kept = append(kept, c)
			continue
		}
		t := tallies[i]
		switch {
		case t.kept+t.demoted+t.unvalidated == 0 && t.rejected > 0:
			e.s.Logger.Debug("rejected candidate", "key", c.Key())
			continue
		case t.kept == 0 && t.unvalidated == 0 && t.demoted > 0:
			c.Demoted = true
			c.Tier--
		}
		if len(c.Sections) > 0 {
			c.Sections = t.sections
		}
		c.addProvenance(e.Name())
		kept = append(kept, c)
	}
	out.Candidates = kept
	SortCandidates(out.Candidates)
	return nil
}
