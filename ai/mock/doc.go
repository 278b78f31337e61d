// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Oracle and
// ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	provider := mock.NewMockProviderWithSpaces(ai.DefaultSpaces("mock", 64)...)
//	provider.GetMockOracle().Response = "formula"
//
//	embedder, _ := provider.GetMockEmbedder(core.ContentChunk, "v1")
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns term-hashed unit vectors (see TermVector)
//   - MockOracle: Returns its Response field
//   - MockProvider: One embedder per space, sized to the space dimension
package mock
