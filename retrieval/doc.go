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


// Package retrieval implements the retrieval algorithms, their enhancements and
// the aggregation of their results.
//
// # Algorithms
//
//   - hybrid: chunk similarity search unioned with chunks containing every query term
//   - multi_query: oracle paraphrases searched concurrently, ranked by frequency
//   - formula: exact expression matches above semantic matches over a floor
//   - hierarchical: documents first, then their best sections concurrently
//   - citation_graph: bounded breadth-first walk over citation edges
//   - contextual: methods records, complete records first
//
// # Enhancements
//
//   - query_expansion: pseudo-relevance feedback terms appended to the query
//   - rerank: term overlap bonus inside a ranking tier
//   - hierarchical: best sections attached to top documents
//   - self_consistency: oracle validation of sections, rejecting or demoting weak ones
//
// Every storage call is built through tenant.Filter and compares a query vector
// only with the partition of its own generation and dimension. Retrieval never
// writes to storage. Fan-out runs on an ants pool; results are collected by index
// so the final order never depends on completion order.
package retrieval
