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


package search

import "errors"

var (
	// ErrStoreRequired is returned when a storage searcher is not provided.
	ErrStoreRequired = errors.New("storage searcher required")

	// ErrAIProviderRequired is returned when an AI provider is not provided.
	ErrAIProviderRequired = errors.New("AI provider required")

	// ErrEmptyQuery is returned for a query without text.
	ErrEmptyQuery = errors.New("query text is empty")

	// ErrInvalidOptions indicates options that cannot be used.
	ErrInvalidOptions = errors.New("invalid search options")

	// ErrUnknownAlgorithm is recorded when a plan names an algorithm or
	// enhancement with no registered implementation.
	ErrUnknownAlgorithm = errors.New("unknown retrieval algorithm")
)
