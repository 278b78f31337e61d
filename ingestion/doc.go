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


// Package ingestion stores already-extracted documents.
//
// A Bundle holds one document with its chunks, formulas, tables, methods,
// sections and citations. The Loader embeds every record with the current
// generation of its embedding space on a worker pool and writes the whole
// document tree in one transaction. Text extraction happens before this package.
package ingestion
