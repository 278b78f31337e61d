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


package openai

import (
	"log/slog"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// Provider implements ai.AIProvider using OpenAI-compatible services.
// It manages one embedder per embedding space and a shared oracle.
type Provider struct {
	config    *ai.Config
	embedders map[spaceKey]*Embedder
	oracle    *Oracle
	logger    *slog.Logger
}

type spaceKey struct {
	kind       core.ContentType
	generation string
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a new AI provider with OpenAI-compatible services.
// The config is validated and normalized before use.
//
// Returns ai.AIProvider interface (not *Provider) to enforce abstraction
// and prevent coupling to OpenAI-specific implementation details.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedders := make(map[spaceKey]*Embedder, len(config.Spaces))
	for _, space := range config.Spaces {
		embedder, err := newEmbedder(config, space)
		if err != nil {
			return nil, err
		}
		embedders[spaceKey{space.Kind, space.Generation}] = embedder
	}

	oracle, err := newOracle(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedders: embedders,
		oracle:    oracle,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

// Embedder returns the embedding service of one space.
func (p *Provider) Embedder(kind core.ContentType, generation string) (ai.Embedder, error) {
	embedder, ok := p.embedders[spaceKey{kind, generation}]
	if !ok {
		_, err := ai.FindSpace(p.config.Spaces, kind, generation)
		return nil, err
	}
	return embedder, nil
}

// Spaces returns the configured embedding spaces.
func (p *Provider) Spaces() []ai.EmbeddingSpace {
	return append([]ai.EmbeddingSpace(nil), p.config.Spaces...)
}

// Oracle returns the text-understanding service.
func (p *Provider) Oracle() ai.Oracle {
	return p.oracle
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying clients don't require explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
