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


package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/quarry/core"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// ClassifierHost is the base URL for the oracle used for classification,
	// paraphrasing and validation.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	ClassifierHost string

	// ClassifierModel is the model identifier used by the oracle.
	// Example: "qwen2.5:3b", "gpt-4o-mini"
	ClassifierModel string

	// Spaces declares the embedding model of every content kind and generation.
	Spaces []EmbeddingSpace

	// CallTimeout bounds every single embedding or oracle call.
	// Default: 10s
	CallTimeout time.Duration

	// OracleRate caps oracle calls per second. Zero disables limiting.
	OracleRate float64

	// OracleBurst is the burst size allowed above OracleRate.
	// Default: 4
	OracleBurst int
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithClassifierHost sets the oracle service host URL.
func WithClassifierHost(host string) ConfigOption {
	return func(c *Config) {
		c.ClassifierHost = host
	}
}

// WithHost sets both embedding and oracle hosts to the same URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
		c.ClassifierHost = host
	}
}

// WithEmbeddingModel sets the model of every current embedding space.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		for i := range c.Spaces {
			if c.Spaces[i].Current {
				c.Spaces[i].Model = model
			}
		}
	}
}

// WithEmbeddingDimension sets the dimension of every current embedding space.
func WithEmbeddingDimension(dim int) ConfigOption {
	return func(c *Config) {
		for i := range c.Spaces {
			if c.Spaces[i].Current {
				c.Spaces[i].Dimension = dim
			}
		}
	}
}

// WithClassifierModel sets the oracle model identifier.
func WithClassifierModel(model string) ConfigOption {
	return func(c *Config) {
		c.ClassifierModel = model
	}
}

// WithSpaces replaces the declared embedding spaces.
func WithSpaces(spaces ...EmbeddingSpace) ConfigOption {
	return func(c *Config) {
		c.Spaces = append([]EmbeddingSpace(nil), spaces...)
	}
}

// WithSpace adds an embedding space. When the new space is current it replaces
// the current flag of any other space of the same kind.
func WithSpace(space EmbeddingSpace) ConfigOption {
	return func(c *Config) {
		kept := c.Spaces[:0]
		for _, s := range c.Spaces {
			if s.Kind == space.Kind && s.Generation == space.Generation {
				continue
			}
			if space.Current && s.Kind == space.Kind {
				s.Current = false
			}
			kept = append(kept, s)
		}
		c.Spaces = append(kept, space)
	}
}

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithOracleRateLimit caps oracle calls per second with the given burst.
func WithOracleRateLimit(perSecond float64, burst int) ConfigOption {
	return func(c *Config) {
		c.OracleRate = perSecond
		c.OracleBurst = burst
	}
}

// DefaultSpaces declares one current generation per content kind, all embedded by model.
func DefaultSpaces(model string, dim int) []EmbeddingSpace {
	spaces := make([]EmbeddingSpace, 0, len(core.ContentTypes))
	for _, kind := range core.ContentTypes {
		spaces = append(spaces, EmbeddingSpace{
			Kind:       kind,
			Generation: "v1",
			Model:      model,
			Dimension:  dim,
			Current:    true,
		})
	}
	return spaces
}

// DefaultConfig returns a Config with sensible defaults for local OpenAI-compatible services.
// By default, both embedding and oracle use the same host.
func DefaultConfig() *Config {
	defaultHost := "http://localhost:11434/v1"
	return &Config{
		EmbeddingHost:   defaultHost,
		ClassifierHost:  defaultHost,
		ClassifierModel: "qwen2.5:3b",
		Spaces:          DefaultSpaces("embeddinggemma", 768),
		CallTimeout:     10 * time.Second,
		OracleBurst:     4,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
// This is the recommended way to create a Config with custom settings.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithEmbeddingDimension(1536),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It automatically adds the /v1 suffix to hosts if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	c.EmbeddingHost = normalizeHost(c.EmbeddingHost)
	c.ClassifierHost = normalizeHost(c.ClassifierHost)
	if c.OracleBurst <= 0 {
		c.OracleBurst = 1
	}
}

func normalizeHost(host string) string {
	if host == "" || strings.HasSuffix(host, "/v1") {
		return host
	}
	return strings.TrimSuffix(host, "/") + "/v1"
}

// Validate checks that the configuration is valid and complete.
// It automatically normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return fmt.Errorf("%w: EmbeddingHost is required", ErrInvalidConfig)
	}
	if c.ClassifierHost == "" {
		return fmt.Errorf("%w: ClassifierHost is required", ErrInvalidConfig)
	}
	if c.ClassifierModel == "" {
		return fmt.Errorf("%w: ClassifierModel is required", ErrInvalidConfig)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: CallTimeout must be positive", ErrInvalidConfig)
	}
	if c.OracleRate < 0 {
		return fmt.Errorf("%w: OracleRate cannot be negative", ErrInvalidConfig)
	}
	return validateSpaces(c.Spaces)
}
