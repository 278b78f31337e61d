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


// Package quarry is a multi-tenant retrieval engine over ingested research
// documents. An Engine owns the document store and the AI provider and hands
// out the components that read and write them: the query orchestrator, the
// ingestion loader and the embedding-generation migrator.
package quarry

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/openai"
	"github.com/poiesic/quarry/config"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/reembed"
	"github.com/poiesic/quarry/search"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
)

// Engine wires storage and AI services from one configuration.
type Engine struct {
	store    storage.Store
	provider ai.AIProvider
	config   *config.File
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithProvider uses provider instead of the OpenAI-compatible services named in
// the configuration. The engine takes ownership and closes it.
func WithProvider(provider ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// Open validates cfg, opens the badger store it names and creates the AI
// provider. A nil cfg means config.Default().
func Open(cfg *config.File, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &engineOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(cfg.Storage.Path, cfg.Storage.InMemory)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	store := badger.NewStore(backend)

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(cfg.AIConfig())
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	return &Engine{
		store:    store,
		provider: provider,
		config:   cfg,
		logger:   options.logger,
	}, nil
}

// Close closes the AI provider and then the store.
func (e *Engine) Close() error {
	var result *multierror.Error
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
		result = multierror.Append(result, err)
	}
	if err := e.store.Close(); err != nil {
		e.logger.Error("error closing store", "err", err)
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (e *Engine) Store() storage.Store {
	return e.store
}

func (e *Engine) Provider() ai.AIProvider {
	return e.provider
}

func (e *Engine) Config() *config.File {
	return e.config
}

// NewOrchestrator creates a query orchestrator tuned by the search section.
// Later options override the configured ones. The caller closes it.
func (e *Engine) NewOrchestrator(opts ...search.Option) (*search.Orchestrator, error) {
	base := []search.Option{
		search.WithLogger(e.logger),
		search.WithOptions(e.config.Search),
	}
	return search.NewOrchestrator(e.store, e.provider, append(base, opts...)...)
}

// NewLoader creates an ingestion loader tuned by the ingest section.
// The caller releases it.
func (e *Engine) NewLoader(opts ...ingestion.Option) (*ingestion.Loader, error) {
	base := []ingestion.Option{
		ingestion.WithLogger(e.logger),
		ingestion.WithPoolSize(e.config.Ingest.Workers),
		ingestion.WithBatchSize(e.config.Ingest.BatchSize),
	}
	return ingestion.NewLoader(e.store, e.provider, append(base, opts...)...)
}

// NewReembedder creates a generation migrator tuned by the reembed section,
// writing progress to progress.
func (e *Engine) NewReembedder(progress io.Writer) (*reembed.Reembedder, error) {
	cfg := e.config.Reembed
	return reembed.NewReembedder(e.store, e.provider, &cfg, progress)
}
