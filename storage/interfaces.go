package storage

import (
	"context"
	"fmt"

	"github.com/poiesic/quarry/core"
)

// Partition identifies one embedding space at one model generation. Records of
// different partitions are stored apart and are never compared with each other.
type Partition struct {
	Kind       core.ContentType
	Generation string
	Dimension  int
}

// PartitionOf returns the partition a record belongs to.
func PartitionOf(record *core.Record) Partition {
	return Partition{Kind: record.Kind, Generation: record.Generation, Dimension: record.Dimension}
}

func (p Partition) String() string {
	return fmt.Sprintf("%s/%s/%d", p.Kind, p.Generation, p.Dimension)
}

// Validate checks that the partition names a known kind and a positive dimension.
func (p Partition) Validate() error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidQuery, core.ErrInvalidContentType, p.Kind)
	}
	if p.Generation == "" {
		return fmt.Errorf("%w: generation is empty", ErrInvalidQuery)
	}
	if p.Dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", ErrInvalidQuery)
	}
	return nil
}

// Query scopes a search primitive. Tenant is mandatory; callers build queries
// through tenant.Filter.
type Query struct {
	Tenant core.TenantID
	Partition
	// DocumentID restricts matches to one document when non-zero.
	DocumentID core.ID
	// Limit caps the number of results. Zero means no cap.
	Limit int
	// MinScore discards semantic matches scoring below it.
	MinScore float32
}

// Validate checks that the query is tenant-scoped and addresses a valid partition.
func (q Query) Validate() error {
	if q.Tenant.IsZero() {
		return fmt.Errorf("%w: %w", ErrUnscopedQuery, core.ErrMissingTenant)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: negative limit", ErrInvalidQuery)
	}
	return q.Partition.Validate()
}

// MatchMode selects how MatchText compares the probe against stored text.
type MatchMode int

const (
	// MatchTerms matches records containing every non-stop-word term of the probe.
	MatchTerms MatchMode = iota
	// MatchExact matches records whose normalized expression equals the normalized probe.
	MatchExact
)

// Searcher exposes the read primitives retrieval is built on.
// Implementations must be thread-safe and support concurrent access.
type Searcher interface {
	// SimilaritySearch returns records of the query partition ranked by cosine
	// similarity to vector, highest first. Ties are ordered by insertion time,
	// newest first, then by ID. A vector whose length differs from the partition
	// dimension fails with *core.DimensionMismatchError.
	SimilaritySearch(ctx context.Context, q Query, vector []float32) ([]*core.ScoredRecord, error)

	// MatchText returns records of the query partition whose text matches probe.
	// Scores are zero. Results are ordered newest first, then by ID.
	MatchText(ctx context.Context, q Query, probe string, mode MatchMode) ([]*core.ScoredRecord, error)

	// Citations returns the citation edges touching document in the given direction,
	// restricted to citations recorded under tenant.
	Citations(ctx context.Context, tenant core.TenantID, document core.ID, dir core.Direction) ([]*core.Citation, error)

	// GetDocument retrieves a document of tenant.
	// Returns ErrNotFound if the document doesn't exist in that tenant.
	GetDocument(ctx context.Context, tenant core.TenantID, id core.ID) (*core.Document, error)

	// FindDocuments returns documents of tenant whose title or author list contains
	// every term of text, newest first.
	FindDocuments(ctx context.Context, tenant core.TenantID, text string, limit int) ([]*core.Document, error)
}

// DocumentTree is a document with every dependent entity, written atomically.
type DocumentTree struct {
	Document  *core.Document
	Records   []*core.Record
	Citations []*core.Citation
}

// DocumentRepository provides operations for managing documents and their lifecycle.
type DocumentRepository interface {
	// AddDocumentTree stores a document together with its records and citations
	// in one transaction. Documents with ID=0 get IDFromContent of their identity.
	// Sets InsertedAt timestamps and the tenant tag.
	AddDocumentTree(ctx context.Context, tree *DocumentTree) (*DocumentTree, error)

	// GetDocuments retrieves multiple documents of tenant.
	// Returns only the documents that exist (no error for missing documents).
	GetDocuments(ctx context.Context, tenant core.TenantID, ids ...core.ID) ([]*core.Document, error)

	// UpdateTags replaces the free-form tags of a document. The tenant tag is kept.
	// Returns ErrNotFound if the document doesn't exist.
	UpdateTags(ctx context.Context, tenant core.TenantID, id core.ID, tags []string) (*core.Document, error)

	// DeleteDocument removes a document and every dependent record and citation.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteDocument(ctx context.Context, tenant core.TenantID, id core.ID) error

	// ReassignTenant moves a document and all its dependents from one tenant to another.
	ReassignTenant(ctx context.Context, from core.TenantID, id core.ID, to core.TenantID) (*core.Document, error)

	// ListTenants returns every tenant with at least one document, sorted.
	ListTenants(ctx context.Context) ([]core.TenantID, error)
}

// RecordRepository provides write and bulk-read operations on records.
type RecordRepository interface {
	// AddRecords stores embedded records. Every record must carry a vector whose
	// length equals its Dimension.
	AddRecords(ctx context.Context, records ...*core.Record) ([]*core.Record, error)

	// GetRecords retrieves records of one partition by ID.
	// Returns only the records that exist.
	GetRecords(ctx context.Context, tenant core.TenantID, p Partition, ids ...core.ID) ([]*core.Record, error)

	// ForEachRecord calls fn for every record of the partition with ID greater than
	// after, in ascending ID order. Iteration stops at the first error from fn.
	ForEachRecord(ctx context.Context, tenant core.TenantID, p Partition, after core.ID, fn func(*core.Record) error) error

	// CountRecords returns the number of records in the partition.
	CountRecords(ctx context.Context, tenant core.TenantID, p Partition) (int, error)

	// Partitions lists the partitions holding records of tenant.
	Partitions(ctx context.Context, tenant core.TenantID) ([]Partition, error)

	// DropPartition deletes every record of the partition.
	DropPartition(ctx context.Context, tenant core.TenantID, p Partition) (int, error)
}

// CitationRepository provides write access to citation edges.
type CitationRepository interface {
	// AddCitations stores citation edges and their reverse index entries.
	AddCitations(ctx context.Context, citations ...*core.Citation) ([]*core.Citation, error)
}

// CheckpointRepository persists progress of resumable batch jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// Store combines every repository on one backend.
type Store interface {
	Searcher
	DocumentRepository
	RecordRepository
	CitationRepository
	CheckpointRepository

	// Close closes the storage backend and releases resources.
	Close() error
}
