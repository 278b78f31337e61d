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
	"fmt"
	"strings"
)

// ValidateDocument validates a Document according to domain rules.
//
// Validation rules:
//   - Tenant must be present
//   - Title must not be empty
//
// NOT validated:
//   - ID (0 means "derive from content")
//   - Tags (the tenant tag is enforced by storage)
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if doc.Tenant.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrMissingTenant)
	}

	if strings.TrimSpace(doc.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyTitle)
	}

	return nil
}

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - Tenant must be present
//   - Kind must be a known content type
//   - Text must not be empty
//   - DocumentId must be set
//   - when a Vector is present its length must equal Dimension
//
// NOT validated (populated by the embedding step):
//   - Vector, Dimension and Generation may all be empty before embedding
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Tenant.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrMissingTenant)
	}

	if !record.Kind.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidRecord, ErrInvalidContentType, record.Kind)
	}

	if strings.TrimSpace(record.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyContent)
	}

	if record.DocumentId == 0 {
		return fmt.Errorf("%w: document id is zero", ErrInvalidRecord)
	}

	if len(record.Vector) > 0 && len(record.Vector) != record.Dimension {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, &DimensionMismatchError{
			Kind:       record.Kind,
			Generation: record.Generation,
			Expected:   record.Dimension,
			Got:        len(record.Vector),
		})
	}

	return nil
}

// ValidateCitation validates a Citation according to domain rules.
//
// Validation rules:
//   - Tenant must be present
//   - CitingId must be set
//   - the cited work needs either a stored document id, a title or an identifier
func ValidateCitation(citation *Citation) error {
	if citation == nil {
		return fmt.Errorf("%w: citation is nil", ErrInvalidCitation)
	}

	if citation.Tenant.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidCitation, ErrMissingTenant)
	}

	if citation.CitingId == 0 {
		return fmt.Errorf("%w: citing document id is zero", ErrInvalidCitation)
	}

	if citation.CitedId == 0 && citation.CitedTitle == "" && citation.CitedIdentifier == "" {
		return fmt.Errorf("%w: cited work has no identity", ErrInvalidCitation)
	}

	return nil
}
