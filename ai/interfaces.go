package ai

import (
	"context"

	"github.com/poiesic/quarry/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Every vector an Embedder returns has the dimensionality of the EmbeddingSpace it
// was created for. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Oracle is a text-understanding model reached through one synchronous call.
// It classifies queries, paraphrases them and judges relevance; callers parse and
// validate its free-text output. Implementations must be thread-safe.
type Oracle interface {
	// Complete sends prompt and returns the model's raw text answer.
	Complete(ctx context.Context, prompt string) (string, error)
}

// EmbeddingSpace declares the embedding model used for one content kind at one
// generation. Several generations of a kind may coexist while a corpus migrates;
// exactly one of them is Current and receives new writes.
type EmbeddingSpace struct {
	Kind       core.ContentType `yaml:"kind"`
	Generation string           `yaml:"generation"`
	Model      string           `yaml:"model"`
	Dimension  int              `yaml:"dimension"`
	Current    bool             `yaml:"current"`
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates one Embedder per embedding space and a shared Oracle.
type AIProvider interface {
	// Embedder returns the embedding service for one kind and generation.
	// Returns ErrUnknownSpace when no such space is configured.
	Embedder(kind core.ContentType, generation string) (Embedder, error)

	// Spaces returns every configured embedding space.
	Spaces() []EmbeddingSpace

	// Oracle returns the text-understanding service.
	Oracle() Oracle

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
