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


// Package storage provides the storage abstraction layer for quarry.
//
// This package defines repository interfaces that decouple storage implementation
// from retrieval logic, plus the binary codec used to persist domain values.
//
// # Partitions
//
// Every record belongs to exactly one Partition: a content kind at one embedding
// model generation with a declared dimensionality. Similarity search runs inside a
// single partition, so a query vector is never compared against vectors of another
// dimensionality. A vector whose length differs from the partition dimension is
// rejected with *core.DimensionMismatchError rather than matching nothing.
//
// # Tenant Scoping
//
// Every read primitive takes the tenant as part of its arguments and backends
// refuse unscoped calls with ErrUnscopedQuery. Tenant filtering happens inside the
// primitive, never as a post-filter on fetched results.
//
// # Architecture
//
//   - Searcher: similarity, lexical and citation primitives used by retrieval
//   - DocumentRepository: document lifecycle (add, tag, cascade delete, reassign)
//   - RecordRepository: record writes and partition iteration
//   - CitationRepository: citation edges
//   - CheckpointRepository: resumable batch job progress
//   - Store: all of the above on one backend
//
// # Usage
//
//	store, err := badger.OpenStore("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
