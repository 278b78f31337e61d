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

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// QueryVector is a query embedded into one generation of an embedding space.
type QueryVector struct {
	Kind       core.ContentType
	Generation string
	Dimension  int
	Vector     []float32
}

// Partition returns the storage partition the vector may be compared against.
func (v QueryVector) Partition() storage.Partition {
	return storage.Partition{Kind: v.Kind, Generation: v.Generation, Dimension: v.Dimension}
}

// QueryEmbedder embeds query text into the embedding spaces of a provider.
type QueryEmbedder struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// NewQueryEmbedder creates a query embedder over provider.
func NewQueryEmbedder(provider ai.AIProvider, logger *slog.Logger) *QueryEmbedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryEmbedder{
		provider: provider,
		logger:   logger.With("component", "query-embedder"),
	}
}

// Embed returns one vector per generation of the kind's embedding space, current
// generation first. Every vector is checked against its declared dimension.
func (e *QueryEmbedder) Embed(ctx context.Context, text string, kind core.ContentType) ([]QueryVector, error) {
	spaces := ai.SpacesFor(e.provider.Spaces(), kind)
	if len(spaces) == 0 {
		return nil, fmt.Errorf("%w: no space for %s", ai.ErrUnknownSpace, kind)
	}

	vectors := make([]QueryVector, 0, len(spaces))
	for _, space := range spaces {
		v, err := e.embed(ctx, text, space)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

// EmbedGeneration embeds text into one generation of the kind's space.
func (e *QueryEmbedder) EmbedGeneration(ctx context.Context, text string, kind core.ContentType, generation string) (QueryVector, error) {
	space, err := ai.FindSpace(e.provider.Spaces(), kind, generation)
	if err != nil {
		return QueryVector{}, err
	}
	return e.embed(ctx, text, space)
}

// Dimension returns the dimension declared for the kind's space at generation.
func (e *QueryEmbedder) Dimension(kind core.ContentType, generation string) (int, error) {
	space, err := ai.FindSpace(e.provider.Spaces(), kind, generation)
	if err != nil {
		return 0, err
	}
	return space.Dimension, nil
}

func (e *QueryEmbedder) embed(ctx context.Context, text string, space ai.EmbeddingSpace) (QueryVector, error) {
	embedder, err := e.provider.Embedder(space.Kind, space.Generation)
	if err != nil {
		return QueryVector{}, err
	}
	vector, err := embedder.EmbedText(ctx, text)
	if err != nil {
		return QueryVector{}, err
	}
	if len(vector) != space.Dimension {
		e.logger.Error("embedder returned vector of wrong dimension",
			"kind", space.Kind, "generation", space.Generation,
			"expected", space.Dimension, "got", len(vector))
		return QueryVector{}, &core.DimensionMismatchError{
			Kind:       space.Kind,
			Generation: space.Generation,
			Expected:   space.Dimension,
			Got:        len(vector),
		}
	}
	return QueryVector{
		Kind:       space.Kind,
		Generation: space.Generation,
		Dimension:  space.Dimension,
		Vector:     vector,
	}, nil
}
