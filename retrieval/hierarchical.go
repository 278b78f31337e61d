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
	"slices"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/strategy"
)

// hierarchicalExecutor retrieves a wide set of documents, then the best sections
// of each document concurrently.
type hierarchicalExecutor struct {
	s *Services
}

func (e *hierarchicalExecutor) Name() string { return strategy.Hierarchical }

func (e *hierarchicalExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	width := e.s.Options.StageOneWidth

	documents, err := e.s.semanticSearch(ctx, req.Tenant, req.Text, core.ContentDocument, width, e.s.Options.MinSimilarity, e.Name()+":documents")
	if err != nil {
		return nil, err
	}
	if len(documents) == 0 {
		// No document-level embeddings: group chunk matches by document instead.
		documents, err = e.s.semanticSearch(ctx, req.Tenant, req.Text, core.ContentChunk, e.s.Options.CandidateLimit, e.s.Options.MinSimilarity, e.Name()+":chunks")
		if err != nil {
			return nil, err
		}
	}
	if len(documents) > width {
		documents = documents[:width]
	}

	out := &Output{Algorithm: e.Name(), Candidates: documents}
	if err := e.s.attachSections(ctx, req, out, documents); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSections finds the best sections of every candidate document concurrently.
// A failed document keeps its candidate without sections and marks out partial.
func (s *Services) attachSections(ctx context.Context, req *Request, out *Output, candidates []*Candidate) error {
	var targets []*Candidate
	for _, c := range candidates {
		if c.DocumentID != 0 && len(c.Sections) == 0 {
			targets = append(targets, c)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	vectors, err := s.Embedder.Embed(ctx, req.Text, core.ContentSection)
	if err != nil {
		return err
	}

	limit := s.Options.SectionsPerDocument
	sections, errs := fanOut(ctx, s.Fanout, len(targets), func(ctx context.Context, i int) ([]*core.ScoredRecord, error) {
		found, err := s.searchVectors(ctx, req.Tenant, vectors, targets[i].DocumentID, limit, 0, "")
		if err != nil {
			return nil, err
		}
		SortCandidates(found)
		if len(found) > limit {
			found = found[:limit]
		}
		scored := make([]*core.ScoredRecord, len(found))
		for j, c := range found {
			scored[j] = &core.ScoredRecord{Record: c.Record, Score: c.Similarity}
		}
		return scored, nil
	})

	for i, err := range errs {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.Logger.Warn("section lookup failed", "document", targets[i].DocumentID, "err", err)
			out.fail(fmt.Errorf("sections of document %d: %w", targets[i].DocumentID, err))
			continue
		}
		targets[i].Sections = slices.Clip(sections[i])
	}
	return nil
}
