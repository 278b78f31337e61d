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


// Package ai provides abstractions for AI services used in Quarry.
//
// This package defines interfaces for AI operations including text embeddings
// and free-text completion. It follows the dependency inversion principle,
// allowing the core domain and retrieval logic to depend on abstractions
// rather than concrete implementations.
//
// # Design Principles
//
// The package is designed around three key interfaces:
//
//   - Embedder: Generates vector embeddings for one embedding space
//   - Oracle: Answers a prompt with free text (classification, paraphrase, validation)
//   - AIProvider: Aggregates AI services for convenient initialization
//
// # Embedding Spaces
//
// Every content kind (chunk, formula, table, methods, section, document) is
// embedded by its own model. An EmbeddingSpace names the model and dimension of
// one kind at one generation. Several generations of a kind may coexist while a
// corpus migrates; exactly one is current and receives new writes.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, etc.) return
// INTERFACE types to enforce abstraction. Test utility constructors
// (mock.NewMockEmbedder, mock.NewMockOracle) return CONCRETE types to enable
// test assertions and behavior injection.
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//	oracle := mock.NewMockOracle("formula")     // returns *mock.MockOracle
//
// # Prompts
//
// Oracle answers are untrusted free text. ClassificationPrompt, ParaphrasePrompt and
// ValidationPrompt build the prompts; ParseParaphrases and ParseScore read the
// answers back and reject anything malformed.
package ai
