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


package mock

import (
	"sync"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// MockProvider is a test double for ai.AIProvider. It hands out one MockEmbedder
// per configured space, sized to the space dimension.
type MockProvider struct {
	spaces []ai.EmbeddingSpace
	oracle *MockOracle

	mu        sync.Mutex
	embedders map[string]*MockEmbedder
	closed    bool
}

// NewMockProvider creates a provider with one 384-dimensional space per content
// kind and an oracle answering "general".
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithSpaces(ai.DefaultSpaces("mock", DefaultDimension)...)
}

// NewMockProviderWithSpaces creates a provider for the given spaces.
// Note: Returns concrete type so tests can reach the mock services.
func NewMockProviderWithSpaces(spaces ...ai.EmbeddingSpace) *MockProvider {
	return &MockProvider{
		spaces:    append([]ai.EmbeddingSpace(nil), spaces...),
		oracle:    NewMockOracle("general"),
		embedders: make(map[string]*MockEmbedder),
	}
}

// Embedder returns the mock embedder of a space.
func (p *MockProvider) Embedder(kind core.ContentType, generation string) (ai.Embedder, error) {
	return p.GetMockEmbedder(kind, generation)
}

// GetMockEmbedder returns the concrete mock embedder of a space, creating it on first use.
func (p *MockProvider) GetMockEmbedder(kind core.ContentType, generation string) (*MockEmbedder, error) {
	space, err := ai.FindSpace(p.spaces, kind, generation)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := string(kind) + "/" + generation
	if e, ok := p.embedders[key]; ok {
		return e, nil
	}
	e := NewMockEmbedderWithDimension(space.Dimension)
	p.embedders[key] = e
	return e, nil
}

// Spaces returns the configured spaces.
func (p *MockProvider) Spaces() []ai.EmbeddingSpace {
	return append([]ai.EmbeddingSpace(nil), p.spaces...)
}

// Oracle returns the mock oracle.
func (p *MockProvider) Oracle() ai.Oracle {
	return p.oracle
}

// GetMockOracle returns the concrete mock oracle.
func (p *MockProvider) GetMockOracle() *MockOracle {
	return p.oracle
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
