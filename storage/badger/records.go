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


package badger

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// RecordRepository implements storage.RecordRepository and the record search
// primitives for BadgerDB.
type RecordRepository struct {
	backend *Backend
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(backend *Backend) *RecordRepository {
	return &RecordRepository{backend: backend}
}

// AddRecords adds embedded records to storage.
func (r *RecordRepository) AddRecords(ctx context.Context, records ...*core.Record) ([]*core.Record, error) {
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, record := range records {
			if err := putRecord(tx, record); err != nil {
				return err
			}
		}
		return nil
	})
	return records, err
}

// recordID derives a record ID from its identity inside its document.
func recordID(record *core.Record) core.ID {
	return core.IDFromContent(fmt.Sprintf("%d|%s|%d|%s", record.DocumentId, record.Kind, record.Position, record.Text))
}

// putRecord validates and writes a record plus its per-document index entry.
// The parent document must already exist in the record's tenant.
func putRecord(tx *badger.Txn, record *core.Record) error {
	if err := core.ValidateRecord(record); err != nil {
		return err
	}
	if len(record.Vector) == 0 {
		return fmt.Errorf("%w: record %d of document %d", storage.ErrMissingEmbedding, record.Id, record.DocumentId)
	}
	p := storage.PartitionOf(record)
	if err := p.Validate(); err != nil {
		return err
	}

	if _, err := tx.Get(makeDocumentKey(record.Tenant, record.DocumentId)); err != nil {
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: document %d in tenant %q", storage.ErrNotFound, record.DocumentId, record.Tenant)
		}
		return err
	}

	if record.Id == 0 {
		record.Id = recordID(record)
	}
	if record.InsertedAt.IsZero() {
		record.InsertedAt = time.Now().UTC()
	}

	if err := tx.Set(makeRecordKey(record.Tenant, p, record.Id), storage.MarshalRecord(record)); err != nil {
		return err
	}
	return tx.Set(makeDocumentRecordKey(record.Tenant, record.DocumentId, p, record.Id), nil)
}

// GetRecords retrieves records of one partition by ID.
func (r *RecordRepository) GetRecords(ctx context.Context, tenant core.TenantID, p storage.Partition, ids ...core.ID) ([]*core.Record, error) {
	if err := (storage.Query{Tenant: tenant, Partition: p}).Validate(); err != nil {
		return nil, err
	}
	var result []*core.Record
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			record, err := readValue(tx, makeRecordKey(tenant, p, id), storage.UnmarshalRecord)
			if err != nil {
				return err
			}
			if record != nil {
				result = append(result, record)
			}
		}
		return nil
	})
	return result, err
}

// ForEachRecord calls fn for every record of the partition after the given ID.
func (r *RecordRepository) ForEachRecord(ctx context.Context, tenant core.TenantID, p storage.Partition, after core.ID, fn func(*core.Record) error) error {
	if err := (storage.Query{Tenant: tenant, Partition: p}).Validate(); err != nil {
		return err
	}
	return r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(ctx, tx, makeRecordPartitionPrefix(tenant, p), false, func(item *badger.Item) error {
			if after != 0 && idFromKeySuffix(item.Key()) <= after {
				return nil
			}
			var record *core.Record
			if err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val)
				return err
			}); err != nil {
				return err
			}
			if err := fn(record); err != nil {
				return &callbackError{err: err}
			}
			return nil
		})
	})
}

// CountRecords returns the number of records in the partition.
func (r *RecordRepository) CountRecords(ctx context.Context, tenant core.TenantID, p storage.Partition) (int, error) {
	if err := (storage.Query{Tenant: tenant, Partition: p}).Validate(); err != nil {
		return 0, err
	}
	count := 0
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(ctx, tx, makeRecordPartitionPrefix(tenant, p), true, func(*badger.Item) error {
			count++
			return nil
		})
	})
	return count, err
}

// Partitions lists the partitions holding records of tenant.
func (r *RecordRepository) Partitions(ctx context.Context, tenant core.TenantID) ([]storage.Partition, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	seen := make(map[storage.Partition]struct{})
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(ctx, tx, makeRecordRootPrefix(tenant), true, func(item *badger.Item) error {
			if p, ok := partitionFromRecordKey(tenant, item.Key()); ok {
				seen[p] = struct{}{}
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	result := make([]storage.Partition, 0, len(seen))
	for p := range seen {
		result = append(result, p)
	}
	slices.SortFunc(result, func(a, b storage.Partition) int {
		return strings.Compare(a.String(), b.String())
	})
	return result, nil
}

// DropPartition deletes every record of the partition with its index entries.
func (r *RecordRepository) DropPartition(ctx context.Context, tenant core.TenantID, p storage.Partition) (int, error) {
	if err := (storage.Query{Tenant: tenant, Partition: p}).Validate(); err != nil {
		return 0, err
	}
	dropped := 0
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		var records []*core.Record
		err := scan(ctx, tx, makeRecordPartitionPrefix(tenant, p), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			})
		})
		if err != nil {
			return err
		}
		for _, record := range records {
			if err := tx.Delete(makeRecordKey(tenant, p, record.Id)); err != nil {
				return err
			}
			if err := tx.Delete(makeDocumentRecordKey(tenant, record.DocumentId, p, record.Id)); err != nil {
				return err
			}
		}
		dropped = len(records)
		return nil
	})
	return dropped, err
}

// SimilaritySearch ranks the records of the query partition by cosine similarity.
func (r *RecordRepository) SimilaritySearch(ctx context.Context, q storage.Query, vector []float32) ([]*core.ScoredRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if len(vector) != q.Dimension {
		return nil, &core.DimensionMismatchError{
			Kind:       q.Kind,
			Generation: q.Generation,
			Expected:   q.Dimension,
			Got:        len(vector),
		}
	}

	var results []*core.ScoredRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return r.eachCandidate(ctx, tx, q, func(record *core.Record) error {
			if len(record.Vector) != len(vector) {
				return &core.DimensionMismatchError{
					Kind:       record.Kind,
					Generation: record.Generation,
					Expected:   len(vector),
					Got:        len(record.Vector),
				}
			}
			similarity := cosineSimilarity(vector, record.Vector)
			if similarity >= q.MinScore {
				results = append(results, &core.ScoredRecord{Record: record, Score: similarity})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortScored(results)
	return limitScored(results, q.Limit), nil
}

// MatchText returns records of the query partition whose text matches probe.
func (r *RecordRepository) MatchText(ctx context.Context, q storage.Query, probe string, mode storage.MatchMode) ([]*core.ScoredRecord, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var match func(*core.Record) bool
	switch mode {
	case storage.MatchExact:
		want := core.NormalizeExpression(probe)
		if want == "" {
			return nil, nil
		}
		match = func(record *core.Record) bool {
			expr := record.Attr(core.AttrExpression)
			if expr == "" {
				expr = record.Text
			}
			return core.NormalizeExpression(expr) == want
		}
	case storage.MatchTerms:
		match = func(record *core.Record) bool {
			return core.ContainsAllTerms(record.Text, probe)
		}
	default:
		return nil, fmt.Errorf("%w: unknown match mode %d", storage.ErrInvalidQuery, mode)
	}

	var results []*core.ScoredRecord
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return r.eachCandidate(ctx, tx, q, func(record *core.Record) error {
			if match(record) {
				results = append(results, &core.ScoredRecord{Record: record})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sortScored(results)
	return limitScored(results, q.Limit), nil
}

// eachCandidate visits every record the query can see: the whole partition, or only
// the records of q.DocumentID when it is set.
func (r *RecordRepository) eachCandidate(ctx context.Context, tx *badger.Txn, q storage.Query, fn func(*core.Record) error) error {
	if q.DocumentID == 0 {
		return scan(ctx, tx, makeRecordPartitionPrefix(q.Tenant, q.Partition), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val)
				if err != nil {
					return err
				}
				return fn(record)
			})
		})
	}

	var ids []core.ID
	err := scan(ctx, tx, makeDocumentPartitionPrefix(q.Tenant, q.DocumentID, q.Partition), true, func(item *badger.Item) error {
		ids = append(ids, idFromKeySuffix(item.Key()))
		return nil
	})
	if err != nil {
		return err
	}
	for _, id := range ids {
		record, err := readValue(tx, makeRecordKey(q.Tenant, q.Partition, id), storage.UnmarshalRecord)
		if err != nil {
			return err
		}
		if record == nil {
			continue
		}
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}
