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


package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/tenant"
)

// Store is the part of storage the loader writes through.
type Store interface {
	AddDocumentTree(ctx context.Context, tree *storage.DocumentTree) (*storage.DocumentTree, error)
	GetDocument(ctx context.Context, tenant core.TenantID, id core.ID) (*core.Document, error)
}

// Loader embeds and stores bundles.
type Loader struct {
	store     Store
	provider  ai.AIProvider
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader) error

// WithPoolSize sets the number of concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			size = 1
		}
		if l.pool != nil {
			l.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		l.pool = pool
		return nil
	}
}

// WithBatchSize sets the number of texts sent to an embedder in one call.
func WithBatchSize(size int) Option {
	return func(l *Loader) error {
		if size < 1 {
			return fmt.Errorf("%w: batch size must be positive", ErrInvalidBundle)
		}
		l.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		if logger == nil {
			logger = slog.Default()
		}
		l.logger = logger.With("component", "ingestion")
		return nil
	}
}

// NewLoader creates a loader writing to store and embedding with provider.
func NewLoader(store Store, provider ai.AIProvider, opts ...Option) (*Loader, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		store:     store,
		provider:  provider,
		pool:      pool,
		batchSize: 32,
		logger:    slog.Default().With("component", "ingestion"),
	}
	for _, opt := range opts {
		if optErr := opt(l); optErr != nil {
			l.Release()
			return nil, optErr
		}
	}
	return l, nil
}

// Release releases the worker pool. The loader should not be used afterwards.
func (l *Loader) Release() {
	if l.pool != nil {
		l.pool.Release()
	}
}

// Load embeds every record of the bundle and stores the document tree.
// Nothing is stored when any record fails to embed.
//
// Citations are linked to documents of the same tenant that are already
// stored. A work loaded after the document citing it stays a stub.
func (l *Loader) Load(ctx context.Context, b *Bundle) (*storage.DocumentTree, error) {
	if err := tenant.Require(b.Tenant); err != nil {
		return nil, err
	}
	tree, err := b.Tree()
	if err != nil {
		return nil, err
	}
	logger := l.logger.With("tenant", b.Tenant, "title", tree.Document.Title)

	if err := l.embed(ctx, tree.Records); err != nil {
		return nil, fmt.Errorf("embedding %q: %w", tree.Document.Title, err)
	}
	linked, err := l.linkCitations(ctx, tree)
	if err != nil {
		return nil, err
	}

	stored, err := l.store.AddDocumentTree(ctx, tree)
	if err != nil {
		return nil, err
	}
	logger.Info("document stored", "document", stored.Document.Id,
		"records", len(stored.Records), "citations", len(stored.Citations), "linked", linked)
	return stored, nil
}

// LoadAll loads bundles in order and keeps going past failures.
// It returns the number stored and every failure.
func (l *Loader) LoadAll(ctx context.Context, bundles []*Bundle) (int, error) {
	var result *multierror.Error
	stored := 0
	for i, b := range bundles {
		if err := ctx.Err(); err != nil {
			return stored, multierror.Append(result, err).ErrorOrNil()
		}
		if _, err := l.Load(ctx, b); err != nil {
			l.logger.Warn("bundle not stored", "bundle", i+1, "err", err)
			result = multierror.Append(result, fmt.Errorf("bundle %d: %w", i+1, err))
			continue
		}
		stored++
	}
	return stored, result.ErrorOrNil()
}

type batch struct {
	space   ai.EmbeddingSpace
	records []*core.Record
}

// embed fills vector, dimension and generation of every record from the current
// space of its kind.
func (l *Loader) embed(ctx context.Context, records []*core.Record) error {
	spaces := l.provider.Spaces()
	byKind := make(map[core.ContentType][]*core.Record)
	var kinds []core.ContentType
	for _, r := range records {
		if _, ok := byKind[r.Kind]; !ok {
			kinds = append(kinds, r.Kind)
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}

	var batches []batch
	for _, kind := range kinds {
		space, err := ai.CurrentSpace(spaces, kind)
		if err != nil {
			return err
		}
		group := byKind[kind]
		for start := 0; start < len(group); start += l.batchSize {
			end := min(start+l.batchSize, len(group))
			batches = append(batches, batch{space: space, records: group[start:end]})
		}
	}

	errs := make([]error, len(batches))
	var wg sync.WaitGroup
	for i := range batches {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			errs[i] = l.embedBatch(ctx, batches[i])
		}
		if err := l.pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (l *Loader) embedBatch(ctx context.Context, b batch) error {
	embedder, err := l.provider.Embedder(b.space.Kind, b.space.Generation)
	if err != nil {
		return err
	}
	texts := make([]string, len(b.records))
	for i, r := range b.records {
		texts[i] = r.Text
	}
	vectors, err := embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(texts) {
		return fmt.Errorf("%s/%s embedder returned %d vectors for %d texts",
			b.space.Kind, b.space.Generation, len(vectors), len(texts))
	}
	for i, r := range b.records {
		if len(vectors[i]) != b.space.Dimension {
			return &core.DimensionMismatchError{
				Kind:       b.space.Kind,
				Generation: b.space.Generation,
				Expected:   b.space.Dimension,
				Got:        len(vectors[i]),
			}
		}
		r.Vector = vectors[i]
		r.Dimension = b.space.Dimension
		r.Generation = b.space.Generation
	}
	metrics.AddEmbedded("ingest", string(b.space.Kind), len(b.records))
	return nil
}

// linkCitations points citations at stored documents of the same tenant with the
// same bibliographic identity. Self-citations stay unlinked.
func (l *Loader) linkCitations(ctx context.Context, tree *storage.DocumentTree) (int, error) {
	self := core.DocumentID(tree.Document)
	linked := 0
	for _, c := range tree.Citations {
		if c.CitedId != 0 {
			continue
		}
		id := core.IDFromContent(c.CitedKey())
		if id == self {
			continue
		}
		doc, err := l.store.GetDocument(ctx, tree.Document.Tenant, id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return linked, err
		}
		if !tenant.Owns(tree.Document.Tenant, doc.Tenant) {
			continue
		}
		c.CitedId = doc.Id
		linked++
	}
	return linked, nil
}
