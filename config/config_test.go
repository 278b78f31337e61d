package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/reembed"
	"github.com/poiesic/quarry/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
storage:
  path: /var/lib/quarry
ai:
  embedding_host: http://embed:8080
  classifier_model: gpt-4o-mini
  call_timeout: 3s
  oracle_rate: 2.5
  spaces:
    - {kind: chunk, generation: v1, model: small, dimension: 384}
    - {kind: chunk, generation: v2, model: large, dimension: 1024, current: true}
search:
  default_limit: 20
  retrieval:
    lexical_boost: 0.25
    citation_direction: cited_by
    call_timeout: 2s
reembed:
  batch_size: 25
  retry_delay: 250ms
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/quarry", cfg.Storage.Path)
	assert.Equal(t, 20, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, float32(0.25), cfg.Search.Retrieval.LexicalBoost)
	assert.Equal(t, core.DirectionCitedBy, cfg.Search.Retrieval.CitationDirection)
	assert.Equal(t, 2*time.Second, cfg.Search.Retrieval.CallTimeout)
	assert.Equal(t, retrieval.DefaultOptions().FormulaFloor, cfg.Search.Retrieval.FormulaFloor)
	assert.Equal(t, 25, cfg.Reembed.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Reembed.RetryDelay)
	assert.Equal(t, reembed.DefaultConfig().MaxRetries, cfg.Reembed.MaxRetries)

	aiCfg := cfg.AIConfig()
	assert.Equal(t, "http://embed:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, "gpt-4o-mini", aiCfg.ClassifierModel)
	assert.Equal(t, 3*time.Second, aiCfg.CallTimeout)
	assert.Equal(t, 2.5, aiCfg.OracleRate)
	require.Len(t, aiCfg.Spaces, 2)
	current, err := ai.CurrentSpace(aiCfg.Spaces, core.ContentChunk)
	require.NoError(t, err)
	assert.Equal(t, "v2", current.Generation)
	assert.Equal(t, 1024, current.Dimension)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"unknown key", "storage:\n  pth: x\n"},
		{"malformed", "storage: [\n"},
		{"no storage", "storage:\n  path: \"\"\n"},
		{"bad limit", "search:\n  default_limit: 0\n"},
		{"bad paraphrases", "search:\n  retrieval:\n    paraphrases: 9\n"},
		{"bad timeout", "ai:\n  call_timeout: 0s\n"},
		{"bad workers", "ingest:\n  workers: 0\n"},
		{"bad retries", "reembed:\n  max_retries: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestInMemoryNeedsNoPath(t *testing.T) {
	cfg, err := Parse([]byte("storage:\n  path: \"\"\n  in_memory: true\n"))
	require.NoError(t, err)
	assert.True(t, cfg.Storage.InMemory)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search:\n  max_limit: 50\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.MaxLimit)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
