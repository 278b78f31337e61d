package ai

import (
	"testing"
	"time"

	"github.com/poiesic/quarry/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ClassifierHost)
	assert.Equal(t, "qwen2.5:3b", cfg.ClassifierModel)
	assert.Equal(t, 10*time.Second, cfg.CallTimeout)
	assert.Len(t, cfg.Spaces, len(core.ContentTypes))
	require.NoError(t, cfg.Validate())
}

func TestNewConfig(t *testing.T) {
	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ClassifierHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithClassifierHost("http://classify:9090/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://classify:9090/v1", cfg.ClassifierHost)
	})

	t.Run("with embedding model and dimension", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingModel("text-embedding-3-small"), WithEmbeddingDimension(1536))

		for _, s := range cfg.Spaces {
			assert.Equal(t, "text-embedding-3-small", s.Model)
			assert.Equal(t, 1536, s.Dimension)
		}
	})

	t.Run("adding a new current generation demotes the old one", func(t *testing.T) {
		cfg := NewConfig(WithSpace(EmbeddingSpace{
			Kind: core.ContentChunk, Generation: "v2", Model: "bge-m3", Dimension: 1024, Current: true,
		}))
		require.NoError(t, cfg.Validate())

		chunks := SpacesFor(cfg.Spaces, core.ContentChunk)
		require.Len(t, chunks, 2)
		assert.Equal(t, "v2", chunks[0].Generation)
		assert.True(t, chunks[0].Current)
		assert.False(t, chunks[1].Current)

		current, err := CurrentSpace(cfg.Spaces, core.ContentChunk)
		require.NoError(t, err)
		assert.Equal(t, 1024, current.Dimension)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"adds suffix", "http://localhost:11434", "http://localhost:11434/v1"},
		{"trims slash", "http://localhost:11434/", "http://localhost:11434/v1"},
		{"keeps suffix", "http://localhost:11434/v1", "http://localhost:11434/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithHost(tt.in))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
			assert.Equal(t, tt.want, cfg.ClassifierHost)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }},
		{"missing classifier host", func(c *Config) { c.ClassifierHost = "" }},
		{"missing classifier model", func(c *Config) { c.ClassifierModel = "" }},
		{"zero timeout", func(c *Config) { c.CallTimeout = 0 }},
		{"negative rate", func(c *Config) { c.OracleRate = -1 }},
		{"no spaces", func(c *Config) { c.Spaces = nil }},
		{"zero dimension", func(c *Config) { c.Spaces[0].Dimension = 0 }},
		{"unknown kind", func(c *Config) { c.Spaces[0].Kind = "poem" }},
		{"duplicate space", func(c *Config) { c.Spaces = append(c.Spaces, c.Spaces[0]) }},
		{"no current generation", func(c *Config) { c.Spaces[0].Current = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestFindSpace(t *testing.T) {
	spaces := DefaultSpaces("m", 8)

	s, err := FindSpace(spaces, core.ContentFormula, "v1")
	require.NoError(t, err)
	assert.Equal(t, 8, s.Dimension)

	_, err = FindSpace(spaces, core.ContentFormula, "v9")
	assert.ErrorIs(t, err, ErrUnknownSpace)

	_, err = CurrentSpace(nil, core.ContentFormula)
	assert.ErrorIs(t, err, ErrNoCurrentSpace)
}
