package reembed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// RecordWriter is the part of storage a BatchProcessor writes through.
type RecordWriter interface {
	AddRecords(ctx context.Context, records ...*core.Record) ([]*core.Record, error)
}

// BatchProcessor embeds a batch of records with the target generation and
// stores the copies in the target partition. Source records are not modified.
type BatchProcessor struct {
	writer   RecordWriter
	embedder ai.Embedder
	target   ai.EmbeddingSpace
	backoff  Backoff
	logger   *slog.Logger
}

// NewBatchProcessor creates a processor writing records of the target space.
func NewBatchProcessor(writer RecordWriter, embedder ai.Embedder, target ai.EmbeddingSpace, backoff Backoff, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		writer:   writer,
		embedder: embedder,
		target:   target,
		backoff:  backoff,
		logger:   logger,
	}
}

// Process migrates one batch. The batch is stored only when every record
// embedded with the declared dimension of the target space.
func (bp *BatchProcessor) Process(ctx context.Context, records []*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	texts := make([]string, len(records))
	for i, record := range records {
		texts[i] = record.Text
	}

	var embeddings [][]float32
	err := bp.backoff.Retry(ctx, bp.logger, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		if err == nil && len(embeddings) != len(texts) {
			err = fmt.Errorf("embedding count mismatch: expected %d, got %d", len(texts), len(embeddings))
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to generate embeddings: %w", err)
	}

	migrated := make([]*core.Record, len(records))
	for i, record := range records {
		vector, err := conform(embeddings[i], bp.target)
		if err != nil {
			return err
		}
		clone := *record
		clone.Vector = vector
		clone.Dimension = bp.target.Dimension
		clone.Generation = bp.target.Generation
		migrated[i] = &clone
	}

	err = bp.backoff.Retry(ctx, bp.logger, func() error {
		_, err := bp.writer.AddRecords(ctx, migrated...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store records: %w", err)
	}
	return nil
}
