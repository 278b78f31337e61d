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
	"strings"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/strategy"
)

// multiQueryExecutor paraphrases the query, runs hybrid search per paraphrase
// concurrently and ranks documents by how many paraphrases surfaced them.
type multiQueryExecutor struct {
	s *Services
}

func (e *multiQueryExecutor) Name() string { return strategy.MultiQuery }

func (e *multiQueryExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	out := &Output{Algorithm: e.Name()}

	subQueries, err := e.s.paraphrase(ctx, req.Text)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		e.s.Logger.Warn("paraphrasing failed, searching the original query only", "err", err)
		out.fail(fmt.Errorf("paraphrase: %w", err))
		subQueries = []string{req.Text}
	}
	out.SubQueries = subQueries

	results, errs := fanOut(ctx, e.s.Fanout, len(subQueries), func(ctx context.Context, i int) ([]*Candidate, error) {
		return e.s.hybridSearch(ctx, req.Tenant, subQueries[i], fmt.Sprintf("%s:q%d", e.Name(), i+1))
	})

	succeeded := 0
	for i, err := range errs {
		if err != nil {
			e.s.Logger.Warn("sub-query failed", "sub_query", i+1, "err", err)
			out.fail(fmt.Errorf("sub-query %d %q: %w", i+1, subQueries[i], err))
			continue
		}
		succeeded++
	}
	if succeeded == 0 {
		return nil, allFailed(ctx, e.Name(), out)
	}

	out.Candidates = mergeByFrequency(results)
	return out, nil
}

// mergeByFrequency merges per-sub-query candidate lists. A document's tier is the
// number of sub-queries that surfaced it; within a tier the best single similarity
// wins. The lexical boost of hybrid search does not count toward this order.
func mergeByFrequency(lists [][]*Candidate) []*Candidate {
	byKey := make(map[string]*Candidate)
	var merged []*Candidate
	for _, list := range lists {
		for _, c := range list {
			best, ok := byKey[c.Key()]
			if !ok {
				c.Hits = 1
				byKey[c.Key()] = c
				merged = append(merged, c)
				continue
			}
			best.Hits++
			best.addProvenance(c.Provenance...)
			best.Lexical = best.Lexical || c.Lexical
			if c.Similarity > best.Similarity {
				best.Record = c.Record
				best.Similarity = c.Similarity
			}
		}
	}
	for _, c := range merged {
		c.Tier = c.Hits
		c.Score = c.Similarity
	}
	SortCandidates(merged)
	return merged
}

// paraphrase asks the oracle for sub-queries. Malformed answers, and answers that
// only repeat the query, are retried up to three times. A single usable paraphrase
// is paired with the original query.
func (s *Services) paraphrase(ctx context.Context, text string) ([]string, error) {
	if s.Oracle == nil {
		return nil, fmt.Errorf("%w: no oracle configured", ErrTooFewParaphrases)
	}
	n := min(max(s.Options.Paraphrases, 2), 4)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, s.Options.CallTimeout)
		answer, err := s.Oracle.Complete(callCtx, ai.ParaphrasePrompt(text, n))
		cancel()
		if err != nil {
			return nil, err
		}

		queries, err := ai.ParseParaphrases(answer)
		if err == nil && len(queries) == 1 {
			if strings.EqualFold(queries[0], strings.TrimSpace(text)) {
				err = fmt.Errorf("%w: the only paraphrase repeats the query", ErrTooFewParaphrases)
			} else {
				queries = append(queries, text)
			}
		}
		if err != nil {
			lastErr = err
			s.Logger.Warn("error parsing paraphrases", "attempt", attempt+1, "answer", answer, "err", err)
			continue
		}
		if len(queries) > n {
			queries = queries[:n]
		}
		s.Logger.Debug("generated sub-queries", "count", len(queries))
		return queries, nil
	}
	return nil, lastErr
}
