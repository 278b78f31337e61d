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
	"errors"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

const (
	// DefaultBatchSize is the default number of records to fetch in each batch
	DefaultBatchSize = 100
)

var errBatchFull = errors.New("batch full")

// RecordReader is the part of storage a RecordIterator pages through.
type RecordReader interface {
	ForEachRecord(ctx context.Context, tenant core.TenantID, p storage.Partition, after core.ID, fn func(*core.Record) error) error
}

// RecordIterator pages through one partition of one tenant in ascending ID
// order. Every page is read in its own storage call, so the callback may
// write to the store.
type RecordIterator struct {
	reader    RecordReader
	tenant    core.TenantID
	partition storage.Partition
	batchSize int
}

// NewRecordIterator creates an iterator over partition p of tenant.
func NewRecordIterator(reader RecordReader, tenant core.TenantID, p storage.Partition, batchSize int) *RecordIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &RecordIterator{
		reader:    reader,
		tenant:    tenant,
		partition: p,
		batchSize: batchSize,
	}
}

// ForEach calls fn with consecutive batches of records whose ID is greater
// than after. It stops at the first error from fn.
func (it *RecordIterator) ForEach(ctx context.Context, after core.ID, fn func([]*core.Record) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := it.next(ctx, after)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < it.batchSize {
			return nil
		}
		after = batch[len(batch)-1].Id
	}
}

func (it *RecordIterator) next(ctx context.Context, after core.ID) ([]*core.Record, error) {
	batch := make([]*core.Record, 0, it.batchSize)
	err := it.reader.ForEachRecord(ctx, it.tenant, it.partition, after, func(r *core.Record) error {
		batch = append(batch, r)
		if len(batch) >= it.batchSize {
			return errBatchFull
		}
		return nil
	})
	if err != nil && !errors.Is(err, errBatchFull) {
		return nil, err
	}
	return batch, nil
}
