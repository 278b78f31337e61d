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


package core

import (
	"errors"
	"fmt"
)

// Retrieval errors
var (
	// ErrMissingTenant indicates a query or write without a tenant identifier.
	// It is always fatal and is raised before any storage access.
	ErrMissingTenant = errors.New("missing tenant identifier")

	// ErrUnrecognizedTaskType indicates a label outside the closed task type set.
	ErrUnrecognizedTaskType = errors.New("unrecognized task type")

	// ErrDimensionMismatch indicates a vector compared against a space of another dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorageUnavailable indicates the storage collaborator failed a call.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAllFanoutFailed indicates every sub-query of a query failed.
	ErrAllFanoutFailed = errors.New("all retrieval sub-queries failed")
)

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidCitation indicates a Citation failed validation.
	ErrInvalidCitation = errors.New("invalid citation")

	// ErrEmptyContent indicates the Text field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyTitle indicates the document Title field is empty.
	ErrEmptyTitle = errors.New("title cannot be empty")

	// ErrInvalidContentType indicates an unknown content type.
	ErrInvalidContentType = errors.New("invalid content type")
)

// DimensionMismatchError reports a vector whose length does not match the
// dimensionality declared for its embedding space and generation.
type DimensionMismatchError struct {
	Kind       ContentType
	Generation string
	Expected   int
	Got        int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: %s/%s expects %d dimensions, got %d",
		ErrDimensionMismatch, e.Kind, e.Generation, e.Expected, e.Got)
}

// Is makes errors.Is(err, ErrDimensionMismatch) match.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
