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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/tenant"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of records to process in each batch
	BatchSize int `yaml:"batch_size"`

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int `yaml:"report_interval"`

	// MaxRetries is the maximum number of attempts for one embedding or write call
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration `yaml:"retry_delay"`

	// MaxRetryDelay caps the backoff delay. Zero means no cap.
	MaxRetryDelay time.Duration `yaml:"max_retry_delay"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      100,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		MaxRetryDelay:  30 * time.Second,
	}
}

// Validate checks that the configuration can drive a migration.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidJob)
	case c.MaxRetries <= 0:
		return ErrInvalidMaxAttempts
	case c.RetryDelay < 0 || c.MaxRetryDelay < 0:
		return fmt.Errorf("%w: retry delays cannot be negative", ErrInvalidJob)
	}
	return nil
}

func (c *Config) backoff() Backoff {
	return Backoff{Attempts: c.MaxRetries, Delay: c.RetryDelay, MaxDelay: c.MaxRetryDelay}
}

// Store is the part of storage a migration needs.
type Store interface {
	RecordReader
	RecordWriter
	CountRecords(ctx context.Context, tenant core.TenantID, p storage.Partition) (int, error)
	DropPartition(ctx context.Context, tenant core.TenantID, p storage.Partition) (int, error)
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// Job names one migration: every record of Kind for Tenant moves from the From
// generation to the To generation.
type Job struct {
	Tenant core.TenantID
	Kind   core.ContentType
	From   string
	To     string
	// DropOld deletes the From partition once every record is migrated.
	DropOld bool
}

// checkpointKey identifies the checkpoint of a job. Jobs for different tenants,
// kinds or generation pairs never share progress.
func (j Job) checkpointKey() string {
	return fmt.Sprintf("reembed/%s/%s/%s->%s", j.Tenant, j.Kind, j.From, j.To)
}

// Result summarizes a finished migration.
type Result struct {
	Job    Job
	Source storage.Partition
	Target storage.Partition
	// Total is the number of records in the source partition.
	Total int
	// Migrated counts the records moved by this run.
	Migrated int
	// Resumed reports that the run continued from a checkpoint.
	Resumed bool
	// Dropped counts source records deleted by DropOld.
	Dropped int
	Elapsed time.Duration
}

// Reembedder migrates records between embedding generations.
type Reembedder struct {
	store    Store
	provider ai.AIProvider
	config   *Config
	progress io.Writer
	logger   *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(store Store, provider ai.AIProvider, config *Config, progress io.Writer) (*Reembedder, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}
	return &Reembedder{
		store:    store,
		provider: provider,
		config:   config,
		progress: progress,
		logger:   slog.Default().With("component", "reembed"),
	}, nil
}

// Run executes one migration. After every stored batch the last migrated record
// ID is checkpointed; a later Run of the same job continues after it.
func (r *Reembedder) Run(ctx context.Context, job Job) (*Result, error) {
	source, target, err := r.resolve(job)
	if err != nil {
		return nil, err
	}
	embedder, err := r.provider.Embedder(target.Kind, target.Generation)
	if err != nil {
		return nil, err
	}

	from := storage.Partition{Kind: source.Kind, Generation: source.Generation, Dimension: source.Dimension}
	to := storage.Partition{Kind: target.Kind, Generation: target.Generation, Dimension: target.Dimension}
	result := &Result{Job: job, Source: from, Target: to}
	logger := r.logger.With("tenant", job.Tenant, "from", from.String(), "to", to.String())

	total, err := r.store.CountRecords(ctx, job.Tenant, from)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	result.Total = total
	if total == 0 {
		fmt.Fprintf(r.progress, "No records found in %s for tenant %s (0 records)\n", from, job.Tenant)
		return result, nil
	}

	key := job.checkpointKey()
	checkpoint, err := r.store.LoadCheckpoint(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	var after core.ID
	done := 0
	if checkpoint != nil {
		after = checkpoint.LastID
		done = checkpoint.Processed
		result.Resumed = true
		logger.Info("resuming migration", "after", after, "processed", done)
	}

	fmt.Fprintf(r.progress, "Reembedding %d records of tenant %s from %s to %s (batch size: %d)\n",
		total, job.Tenant, from, to, r.config.BatchSize)

	tracker := NewProgressTracker(r.progress, string(job.Kind), total, r.config.ReportInterval)
	tracker.Start(done)

	processor := NewBatchProcessor(r.store, embedder, target, r.config.backoff(), logger)
	iterator := NewRecordIterator(r.store, job.Tenant, from, r.config.BatchSize)
	err = iterator.ForEach(ctx, after, func(records []*core.Record) error {
		if err := processor.Process(ctx, records); err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		done += len(records)
		result.Migrated += len(records)
		metrics.AddEmbedded("reembed", string(job.Kind), len(records))
		tracker.Update(done)
		return r.store.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType: key,
			Tenant:        job.Tenant,
			LastID:        records[len(records)-1].Id,
			Processed:     done,
		})
	})
	if err != nil {
		fmt.Fprintln(r.progress)
		logger.Error("migration interrupted", "migrated", result.Migrated, "err", err)
		return result, err
	}
	tracker.Finish()

	if err := r.store.DeleteCheckpoint(ctx, key); err != nil {
		return result, fmt.Errorf("failed to clear checkpoint: %w", err)
	}
	if job.DropOld {
		dropped, err := r.store.DropPartition(ctx, job.Tenant, from)
		if err != nil {
			return result, fmt.Errorf("failed to drop %s: %w", from, err)
		}
		result.Dropped = dropped
	}

	result.Elapsed = tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Migrated %d records in %v (%.1f records/sec)\n",
		result.Migrated, result.Elapsed.Round(time.Millisecond), float64(result.Migrated)/result.Elapsed.Seconds())
	logger.Info("migration complete", "migrated", result.Migrated, "resumed", result.Resumed, "dropped", result.Dropped)
	return result, nil
}

// resolve validates the job against the configured embedding spaces.
func (r *Reembedder) resolve(job Job) (ai.EmbeddingSpace, ai.EmbeddingSpace, error) {
	var none ai.EmbeddingSpace
	if err := tenant.Require(job.Tenant); err != nil {
		return none, none, err
	}
	if !job.Kind.Valid() {
		return none, none, fmt.Errorf("%w: %w: %q", ErrInvalidJob, core.ErrInvalidContentType, job.Kind)
	}
	if job.From == job.To {
		return none, none, fmt.Errorf("%w: source and target generation are both %q", ErrInvalidJob, job.From)
	}
	spaces := r.provider.Spaces()
	source, err := ai.FindSpace(spaces, job.Kind, job.From)
	if err != nil {
		return none, none, err
	}
	target, err := ai.FindSpace(spaces, job.Kind, job.To)
	if err != nil {
		return none, none, err
	}
	return source, target, nil
}
