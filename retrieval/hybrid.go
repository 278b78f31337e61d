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

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/strategy"
)

// hybridExecutor unions semantic chunk matches with chunks containing every query term.
type hybridExecutor struct {
	s *Services
}

func (e *hybridExecutor) Name() string { return strategy.Hybrid }

func (e *hybridExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	candidates, err := e.s.hybridSearch(ctx, req.Tenant, req.Text, strategy.Hybrid)
	if err != nil {
		return nil, err
	}
	return &Output{Algorithm: e.Name(), Candidates: candidates}, nil
}

// hybridSearch runs similarity search and term matching over every generation of the
// chunk space. A record found by both keeps its similarity plus the lexical boost;
// a lexical-only record scores the boost alone. The result holds the best record
// per document.
func (s *Services) hybridSearch(ctx context.Context, id core.TenantID, text, provenance string) ([]*Candidate, error) {
	vectors, err := s.Embedder.Embed(ctx, text, core.ContentChunk)
	if err != nil {
		return nil, err
	}

	byRecord := make(map[core.ID]*Candidate)
	for _, v := range vectors {
		q, err := scoped(id, v, s.Options.CandidateLimit, s.Options.MinSimilarity)
		if err != nil {
			return nil, err
		}
		semantic, err := s.Store.SimilaritySearch(ctx, q, v.Vector)
		if err != nil {
			return nil, err
		}
		for _, sr := range semantic {
			if c, ok := byRecord[sr.Record.Id]; ok {
				c.Similarity = max(c.Similarity, sr.Score)
				continue
			}
			byRecord[sr.Record.Id] = fromRecord(sr, provenance)
		}

		q.MinScore = 0
		lexical, err := s.Store.MatchText(ctx, q, text, storage.MatchTerms)
		if err != nil {
			return nil, err
		}
		for _, sr := range lexical {
			c, ok := byRecord[sr.Record.Id]
			if !ok {
				c = fromRecord(sr, provenance)
				byRecord[sr.Record.Id] = c
			}
			c.Lexical = true
		}
	}

	candidates := make([]*Candidate, 0, len(byRecord))
	for _, c := range byRecord {
		c.Score = c.Similarity
		if c.Lexical {
			c.Score += s.Options.LexicalBoost
		}
		candidates = append(candidates, c)
	}
	return collapse(candidates), nil
}

// semanticSearch ranks records of kind by similarity to text across every generation
// and returns the best record per document.
func (s *Services) semanticSearch(ctx context.Context, id core.TenantID, text string, kind core.ContentType, limit int, minScore float32, provenance string) ([]*Candidate, error) {
	vectors, err := s.Embedder.Embed(ctx, text, kind)
	if err != nil {
		return nil, err
	}
	candidates, err := s.searchVectors(ctx, id, vectors, 0, limit, minScore, provenance)
	if err != nil {
		return nil, err
	}
	return collapse(candidates), nil
}

// searchVectors runs similarity search for pre-embedded vectors, optionally
// restricted to one document.
func (s *Services) searchVectors(ctx context.Context, id core.TenantID, vectors []QueryVector, document core.ID, limit int, minScore float32, provenance string) ([]*Candidate, error) {
	byRecord := make(map[core.ID]*Candidate)
	for _, v := range vectors {
		q, err := scoped(id, v, limit, minScore)
		if err != nil {
			return nil, err
		}
		q.DocumentID = document
		matches, err := s.Store.SimilaritySearch(ctx, q, v.Vector)
		if err != nil {
			return nil, err
		}
		for _, sr := range matches {
			if c, ok := byRecord[sr.Record.Id]; ok {
				c.Similarity = max(c.Similarity, sr.Score)
				c.Score = c.Similarity
				continue
			}
			byRecord[sr.Record.Id] = fromRecord(sr, provenance)
		}
	}
	candidates := make([]*Candidate, 0, len(byRecord))
	for _, c := range byRecord {
		candidates = append(candidates, c)
	}
	return candidates, nil
}
