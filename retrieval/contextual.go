package retrieval

import (
	"context"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/strategy"
)

// contextualExecutor searches methods records. Records carrying both architecture
// and dataset rank above incomplete ones regardless of similarity.
type contextualExecutor struct {
	s *Services
}

func (e *contextualExecutor) Name() string { return strategy.Contextual }

func (e *contextualExecutor) Retrieve(ctx context.Context, req *Request) (*Output, error) {
	vectors, err := e.s.Embedder.Embed(ctx, req.Text, core.ContentMethods)
	if err != nil {
		return nil, err
	}
	candidates, err := e.s.searchVectors(ctx, req.Tenant, vectors, 0, e.s.Options.CandidateLimit, e.s.Options.MinSimilarity, e.Name())
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		if c.Record.HasAttrs(core.AttrArchitecture, core.AttrDataset) {
			c.Tier = 1
		}
	}
	return &Output{Algorithm: e.Name(), Candidates: collapse(candidates)}, nil
}
