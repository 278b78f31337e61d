package openai

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder for one embedding space using OpenAI-compatible
// embedding APIs.
type Embedder struct {
	embedder embeddings.Embedder
	space    ai.EmbeddingSpace
	timeout  time.Duration
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config, space ai.EmbeddingSpace) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken("none"),
		openai.WithEmbeddingModel(space.Model),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		space:    space,
		timeout:  config.CallTimeout,
		logger: slog.Default().With("component", "openai-embedder",
			"kind", space.Kind, "generation", space.Generation),
	}, nil
}

// NewEmbedder creates an embedder for one configured embedding space.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config, kind core.ContentType, generation string) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	space, err := ai.FindSpace(config.Spaces, kind, generation)
	if err != nil {
		return nil, err
	}
	return newEmbedder(config, space)
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		e.logger.Warn("embedder returned empty result")
		return nil, ai.ErrEmptyResponse
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
// Every returned vector must have the dimension declared for the space.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	for _, v := range vectors {
		if len(v) != e.space.Dimension {
			return nil, &core.DimensionMismatchError{
				Kind:       e.space.Kind,
				Generation: e.space.Generation,
				Expected:   e.space.Dimension,
				Got:        len(v),
			}
		}
	}
	return vectors, nil
}
