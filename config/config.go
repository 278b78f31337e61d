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


// Package config loads engine configuration from YAML files.
//
// A file only needs the keys it changes; everything else keeps its default.
//
//	storage:
//	  path: ./quarry.db
//	ai:
//	  embedding_host: http://localhost:11434
//	  classifier_model: qwen2.5:3b
//	  spaces:
//	    - {kind: chunk, generation: v2, model: nomic-embed-text, dimension: 768, current: true}
//	search:
//	  default_limit: 20
//	  retrieval:
//	    lexical_boost: 0.2
//	reembed:
//	  batch_size: 50
//	  retry_delay: 2s
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/reembed"
	"github.com/poiesic/quarry/search"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidConfig indicates a configuration file that cannot be used.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// File is the layout of a configuration file.
type File struct {
	Storage StorageConfig  `yaml:"storage"`
	AI      AIConfig       `yaml:"ai"`
	Search  search.Options `yaml:"search"`
	Ingest  IngestConfig   `yaml:"ingest"`
	Reembed reembed.Config `yaml:"reembed"`
}

// StorageConfig selects the badger database.
type StorageConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// AIConfig mirrors ai.Config.
type AIConfig struct {
	EmbeddingHost   string              `yaml:"embedding_host"`
	ClassifierHost  string              `yaml:"classifier_host"`
	ClassifierModel string              `yaml:"classifier_model"`
	Spaces          []ai.EmbeddingSpace `yaml:"spaces"`
	CallTimeout     time.Duration       `yaml:"call_timeout"`
	OracleRate      float64             `yaml:"oracle_rate"`
	OracleBurst     int                 `yaml:"oracle_burst"`
}

// IngestConfig tunes the ingestion loader.
type IngestConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// Default returns the configuration used when no file is given.
func Default() *File {
	aiCfg := ai.DefaultConfig()
	return &File{
		Storage: StorageConfig{Path: "quarry.db"},
		AI: AIConfig{
			EmbeddingHost:   aiCfg.EmbeddingHost,
			ClassifierHost:  aiCfg.ClassifierHost,
			ClassifierModel: aiCfg.ClassifierModel,
			Spaces:          aiCfg.Spaces,
			CallTimeout:     aiCfg.CallTimeout,
			OracleRate:      aiCfg.OracleRate,
			OracleBurst:     aiCfg.OracleBurst,
		},
		Search:  search.DefaultOptions(),
		Ingest:  IngestConfig{Workers: 4, BatchSize: 32},
		Reembed: *reembed.DefaultConfig(),
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Parse reads and validates configuration from data.
func Parse(data []byte) (*File, error) {
	return Read(bytes.NewReader(data))
}

// Read decodes configuration from r over the defaults and validates it.
// Unknown keys are an error.
func Read(r io.Reader) (*File, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AIConfig converts the ai section into a normalized ai.Config.
func (f *File) AIConfig() *ai.Config {
	cfg := &ai.Config{
		EmbeddingHost:   f.AI.EmbeddingHost,
		ClassifierHost:  f.AI.ClassifierHost,
		ClassifierModel: f.AI.ClassifierModel,
		Spaces:          append([]ai.EmbeddingSpace(nil), f.AI.Spaces...),
		CallTimeout:     f.AI.CallTimeout,
		OracleRate:      f.AI.OracleRate,
		OracleBurst:     f.AI.OracleBurst,
	}
	cfg.Normalize()
	return cfg
}

// Validate checks every section.
func (f *File) Validate() error {
	if f.Storage.Path == "" && !f.Storage.InMemory {
		return fmt.Errorf("%w: storage.path is required unless storage.in_memory is set", ErrInvalidConfig)
	}
	if f.Ingest.Workers <= 0 || f.Ingest.BatchSize <= 0 {
		return fmt.Errorf("%w: ingest workers and batch size must be positive", ErrInvalidConfig)
	}
	if err := f.AIConfig().Validate(); err != nil {
		return fmt.Errorf("%w: ai: %w", ErrInvalidConfig, err)
	}
	if err := f.Search.Validate(); err != nil {
		return fmt.Errorf("%w: search: %w", ErrInvalidConfig, err)
	}
	if err := f.Reembed.Validate(); err != nil {
		return fmt.Errorf("%w: reembed: %w", ErrInvalidConfig, err)
	}
	return nil
}
