package retrieval

import (
	"context"
	"regexp"
	"strings"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/strategy"
)

// formulaExecutor unions exact expression matches with semantic matches above the
// formula floor. Exact matches always rank above semantic-only ones.
type formulaExecutor struct {
	s *Services
}

const tierExact = 1

func (e *formulaExecutor) Name() string { return strategy.Formula }

func (e *formulaExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	vectors, err := e.s.Embedder.Embed(ctx, req.Text, core.ContentFormula)
	if err != nil {
		return nil, err
	}

	byRecord := make(map[core.ID]*Candidate)
	for _, v := range vectors {
		q, err := scoped(req.Tenant, v, e.s.Options.CandidateLimit, e.s.Options.FormulaFloor)
		if err != nil {
			return nil, err
		}
		semantic, err := e.s.Store.SimilaritySearch(ctx, q, v.Vector)
		if err != nil {
			return nil, err
		}
		for _, sr := range semantic {
			if c, ok := byRecord[sr.Record.Id]; ok {
				c.Similarity = max(c.Similarity, sr.Score)
				c.Score = c.Similarity
				continue
			}
			byRecord[sr.Record.Id] = fromRecord(sr, e.Name()+":semantic")
		}

		q.MinScore = 0
		for _, probe := range formulaProbes(req.Text) {
			exact, err := e.s.Store.MatchText(ctx, q, probe, storage.MatchExact)
			if err != nil {
				return nil, err
			}
			for _, sr := range exact {
				c, ok := byRecord[sr.Record.Id]
				if !ok {
					c = fromRecord(sr, e.Name()+":exact")
					byRecord[sr.Record.Id] = c
				} else {
					c.addProvenance(e.Name() + ":exact")
				}
				c.Exact = true
				c.Tier = tierExact
			}
		}
	}

	candidates := make([]*Candidate, 0, len(byRecord))
	for _, c := range byRecord {
		candidates = append(candidates, c)
	}
	return &Output{Algorithm: e.Name(), Candidates: collapse(candidates)}, nil
}

var mathSpan = regexp.MustCompile("\\$\\$?([^$]+)\\$\\$?|`([^`]+)`")

// formulaProbes returns the strings tried as exact expressions: the whole query,
// any $...$ or backtick span, and the part after a colon when it holds an equation.
func formulaProbes(text string) []string {
	probes := []string{text}
	for _, m := range mathSpan.FindAllStringSubmatch(text, -1) {
		probes = append(probes, m[1]+m[2])
	}
	if _, after, ok := strings.Cut(text, ":"); ok && strings.Contains(after, "=") {
		probes = append(probes, after)
	}

	seen := make(map[string]bool, len(probes))
	out := probes[:0]
	for _, p := range probes {
		norm := core.NormalizeExpression(p)
		if norm == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, p)
	}
	return out
}
