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
	"errors"
	"fmt"
	"slices"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/strategy"
	"github.com/poiesic/quarry/tenant"
)

// citationExecutor walks citation edges breadth-first from a seed document.
//
// Every hop is read through the tenant: an edge to a document the tenant cannot see
// ends the walk on that edge, and cited works outside the corpus are returned as
// bibliographic stubs without being traversed.
type citationExecutor struct {
	s *Services
}

func (e *citationExecutor) Name() string { return strategy.CitationGraph }

func (e *citationExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	if err := tenant.Require(req.Tenant); err != nil {
		return nil, err
	}
	depth := req.Depth
	if depth <= 0 {
		depth = e.s.Options.CitationDepth
	}
	dir := req.Direction
	if dir == "" {
		dir = e.s.Options.CitationDirection
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: unknown citation direction %q", storage.ErrInvalidQuery, dir)
	}

	out := &Output{Algorithm: e.Name()}
	seed, err := e.s.resolveSeed(ctx, req)
	if err != nil {
		return nil, err
	}
	if seed == nil {
		e.s.Logger.Debug("no citation seed found", "query", req.Text)
		return out, nil
	}

	visited := map[core.ID]bool{seed.Id: true}
	byKey := make(map[string]*Candidate)
	frontier := []core.ID{seed.Id}
	for hop := 1; hop <= depth && len(frontier) > 0; hop++ {
		var next []core.ID
		for _, node := range frontier {
			edges, err := e.s.Store.Citations(ctx, req.Tenant, node, dir)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				out.fail(fmt.Errorf("citations of %d: %w", node, err))
				continue
			}
			for _, edge := range edges {
				if id, ok := e.follow(ctx, req, out, edge, dir, hop, depth, visited, byKey); ok {
					next = append(next, id)
				}
			}
		}
		slices.Sort(next)
		frontier = next
	}

	candidates := make([]*Candidate, 0, len(byKey))
	for _, c := range byKey {
		candidates = append(candidates, c)
	}
	SortCandidates(candidates)
	out.Candidates = candidates
	return out, nil
}

// follow visits the far end of one edge. It returns the document ID to expand next
// when the edge reached a new document of the tenant.
func (e *citationExecutor) follow(ctx context.Context, req *Request, out *Output, edge *core.Citation,
	dir core.Direction, hop, depth int, visited map[core.ID]bool, byKey map[string]*Candidate) (core.ID, bool) {
	refs := float32(max(edge.ReferenceCount, 1))
	provenance := fmt.Sprintf("%s:%s:hop%d", e.Name(), dir, hop)
	tier := depth - hop + 1

	target := edge.CitedId
	if dir == core.DirectionCitedBy {
		target = edge.CitingId
	}

	if target == 0 {
		stub := &Candidate{Stub: edge, Tier: tier, Hops: hop, Score: refs, Provenance: []string{provenance}}
		if c, ok := byKey[stub.Key()]; ok {
			c.Score += refs
			return 0, false
		}
		byKey[stub.Key()] = stub
		return 0, false
	}

	if visited[target] {
		if c, ok := byKey[(&Candidate{DocumentID: target}).Key()]; ok {
			c.Score += refs
		}
		return 0, false
	}
	visited[target] = true

	doc, err := e.s.Store.GetDocument(ctx, req.Tenant, target)
	if errors.Is(err, storage.ErrNotFound) {
		e.s.Logger.Debug("citation leaves the tenant, stopping at edge", "from", edge.CitingId, "to", target)
		return 0, false
	}
	if err != nil {
		out.fail(fmt.Errorf("document %d: %w", target, err))
		return 0, false
	}
	if !tenant.Owns(req.Tenant, doc.Tenant) {
		return 0, false
	}

	c := &Candidate{
		DocumentID: doc.Id,
		Document:   doc,
		Tier:       tier,
		Hops:       hop,
		Score:      refs,
		Provenance: []string{provenance},
	}
	byKey[c.Key()] = c
	return doc.Id, true
}

// resolveSeed picks the traversal seed: the pinned document, else the newest
// document whose title or authors contain every query term, else the document of
// the top hybrid hit. Returns nil when nothing matches.
func (s *Services) resolveSeed(ctx context.Context, req *Request) (*core.Document, error) {
	if req.SeedDocument != 0 {
		doc, err := s.Store.GetDocument(ctx, req.Tenant, req.SeedDocument)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrSeedNotFound, req.SeedDocument)
		}
		return doc, err
	}

	docs, err := s.Store.FindDocuments(ctx, req.Tenant, req.Text, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) > 0 {
		return docs[0], nil
	}

	hits, err := s.hybridSearch(ctx, req.Tenant, req.Text, strategy.CitationGraph+":seed")
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}
	doc, err := s.Store.GetDocument(ctx, req.Tenant, hits[0].DocumentID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return doc, err
}
