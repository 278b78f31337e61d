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
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) *DocumentRepository {
	return &DocumentRepository{backend: backend}
}

// AddDocumentTree stores a document with its records and citations in one transaction.
// An existing document with the same ID in the same tenant is replaced.
func (r *DocumentRepository) AddDocumentTree(ctx context.Context, tree *storage.DocumentTree) (*storage.DocumentTree, error) {
	if tree == nil || tree.Document == nil {
		return nil, fmt.Errorf("%w: document is nil", core.ErrInvalidDocument)
	}
	doc := tree.Document
	if err := core.ValidateDocument(doc); err != nil {
		return nil, err
	}
	if doc.Id == 0 {
		doc.Id = core.DocumentID(doc)
	}
	for _, record := range tree.Records {
		if record.Tenant == "" {
			record.Tenant = doc.Tenant
		}
		if record.Tenant != doc.Tenant {
			return nil, fmt.Errorf("%w: record tenant %q differs from document tenant %q", core.ErrInvalidRecord, record.Tenant, doc.Tenant)
		}
		record.DocumentId = doc.Id
	}
	for _, citation := range tree.Citations {
		if citation.Tenant == "" {
			citation.Tenant = doc.Tenant
		}
		if citation.Tenant != doc.Tenant {
			return nil, fmt.Errorf("%w: citation tenant %q differs from document tenant %q", core.ErrInvalidCitation, citation.Tenant, doc.Tenant)
		}
		citation.CitingId = doc.Id
	}

	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		existing, err := readValue(tx, makeDocumentKey(doc.Tenant, doc.Id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if existing != nil {
			if _, err := deleteTree(ctx, tx, doc.Tenant, doc.Id, true); err != nil {
				return err
			}
		}

		now := time.Now().UTC()
		if doc.InsertedAt.IsZero() {
			doc.InsertedAt = now
		}
		doc.UpdatedAt = now
		doc.Tags = core.EnsureTenantTag(doc.Tags, doc.Tenant)
		if err := tx.Set(makeDocumentKey(doc.Tenant, doc.Id), storage.MarshalDocument(doc)); err != nil {
			return err
		}

		for _, record := range tree.Records {
			if record.InsertedAt.IsZero() {
				record.InsertedAt = doc.InsertedAt
			}
			if err := putRecord(tx, record); err != nil {
				return err
			}
		}
		for _, citation := range tree.Citations {
			if err := putCitation(tx, citation); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

// GetDocument retrieves a document of tenant.
func (r *DocumentRepository) GetDocument(ctx context.Context, tenant core.TenantID, id core.ID) (*core.Document, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	var result *core.Document
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readValue(tx, makeDocumentKey(tenant, id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	})
	return result, err
}

// GetDocuments retrieves multiple documents of tenant.
func (r *DocumentRepository) GetDocuments(ctx context.Context, tenant core.TenantID, ids ...core.ID) ([]*core.Document, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	var result []*core.Document
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		for _, id := range ids {
			doc, err := readValue(tx, makeDocumentKey(tenant, id), storage.UnmarshalDocument)
			if err != nil {
				return err
			}
			if doc != nil {
				result = append(result, doc)
			}
		}
		return nil
	})
	return result, err
}

// FindDocuments returns documents whose title or authors contain every term of text.
func (r *DocumentRepository) FindDocuments(ctx context.Context, tenant core.TenantID, text string, limit int) ([]*core.Document, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	var result []*core.Document
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		return scan(ctx, tx, makeDocumentPrefix(tenant), false, func(item *badger.Item) error {
			return item.Value(func(val []byte) error {
				doc, err := storage.UnmarshalDocument(val)
				if err != nil {
					return err
				}
				haystack := doc.Title + " " + strings.Join(doc.Authors, " ")
				if core.ContainsAllTerms(haystack, text) {
					result = append(result, doc)
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(result, func(a, b *core.Document) int {
		if c := b.InsertedAt.Compare(a.InsertedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Id, b.Id)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateTags replaces the free-form tags of a document.
func (r *DocumentRepository) UpdateTags(ctx context.Context, tenant core.TenantID, id core.ID, tags []string) (*core.Document, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	var doc *core.Document
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		var err error
		doc, err = readValue(tx, makeDocumentKey(tenant, id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if doc == nil {
			return storage.ErrNotFound
		}
		doc.Tags = core.EnsureTenantTag(tags, tenant)
		doc.UpdatedAt = time.Now().UTC()
		return tx.Set(makeDocumentKey(tenant, id), storage.MarshalDocument(doc))
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// DeleteDocument removes a document and all of its dependents.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, tenant core.TenantID, id core.ID) error {
	if tenant.IsZero() {
		return fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	return r.backend.update(ctx, func(tx *badger.Txn) error {
		_, err := deleteTree(ctx, tx, tenant, id, false)
		return err
	})
}

// ReassignTenant moves a document with all of its dependents to another tenant.
// Citations from documents left behind that pointed at it become bibliographic stubs.
func (r *DocumentRepository) ReassignTenant(ctx context.Context, from core.TenantID, id core.ID, to core.TenantID) (*core.Document, error) {
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	var doc *core.Document
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		target, err := readValue(tx, makeDocumentKey(to, id), storage.UnmarshalDocument)
		if err != nil {
			return err
		}
		if target != nil && from != to {
			return fmt.Errorf("%w: document %d already exists in tenant %q", storage.ErrInvalidQuery, id, to)
		}

		tree, err := deleteTree(ctx, tx, from, id, from == to)
		if err != nil {
			return err
		}

		doc = tree.Document
		doc.Tenant = to
		doc.Tags = core.EnsureTenantTag(doc.Tags, to)
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(makeDocumentKey(to, id), storage.MarshalDocument(doc)); err != nil {
			return err
		}
		for _, record := range tree.Records {
			record.Tenant = to
			if err := putRecord(tx, record); err != nil {
				return err
			}
		}
		for _, citation := range tree.Citations {
			citation.Tenant = to
			if err := putCitation(tx, citation); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListTenants returns every tenant owning at least one key, sorted.
func (r *DocumentRepository) ListTenants(ctx context.Context) ([]core.TenantID, error) {
	var tenants []core.TenantID
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		root := []byte(tenantRoot)
		for iter.Seek(root); iter.ValidForPrefix(root); {
			if err := ctx.Err(); err != nil {
				return err
			}
			tenant, ok := tenantFromKey(iter.Item().Key())
			if !ok {
				iter.Next()
				continue
			}
			tenants = append(tenants, tenant)

			// Skip past this tenant: '0' sorts right after the '/' terminating the prefix.
			prefix := makeTenantPrefix(tenant)
			prefix[len(prefix)-1] = '0'
			iter.Seek(prefix)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(tenants)
	return tenants, nil
}

// deleteTree removes a document with its records and outgoing citations and returns
// what was removed. Incoming citations from other documents of the tenant are
// rewritten as bibliographic stubs unless keepIncoming is set, in which case they
// stay linked to id for the document that replaces it.
func deleteTree(ctx context.Context, tx *badger.Txn, tenant core.TenantID, id core.ID, keepIncoming bool) (*storage.DocumentTree, error) {
	docKey := makeDocumentKey(tenant, id)
	doc, err := readValue(tx, docKey, storage.UnmarshalDocument)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: document %d in tenant %q", storage.ErrNotFound, id, tenant)
	}
	tree := &storage.DocumentTree{Document: doc}

	// Records, found through the per-document index. The index key suffix after the
	// document prefix equals the record key suffix after the record root.
	indexPrefix := makeDocumentRecordsPrefix(tenant, id)
	var indexKeys [][]byte
	err = scan(ctx, tx, indexPrefix, true, func(item *badger.Item) error {
		indexKeys = append(indexKeys, item.KeyCopy(nil))
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, indexKey := range indexKeys {
		recordKey := append(makeRecordRootPrefix(tenant), indexKey[len(indexPrefix):]...)
		record, err := readValue(tx, recordKey, storage.UnmarshalRecord)
		if err != nil {
			return nil, err
		}
		if record != nil {
			tree.Records = append(tree.Records, record)
			if err := tx.Delete(recordKey); err != nil {
				return nil, err
			}
		}
		if err := tx.Delete(indexKey); err != nil {
			return nil, err
		}
	}

	outgoing, err := readCitations(ctx, tx, tenant, id, core.DirectionCites)
	if err != nil {
		return nil, err
	}
	for _, citation := range outgoing {
		if citation.InCorpus() {
			if err := tx.Delete(makeCitationKey(tenant, citation.CitedId, core.DirectionCitedBy, citation.Id)); err != nil {
				return nil, err
			}
		}
		if err := tx.Delete(makeCitationKey(tenant, id, core.DirectionCites, citation.Id)); err != nil {
			return nil, err
		}
	}
	tree.Citations = outgoing

	if keepIncoming {
		if err := tx.Delete(docKey); err != nil {
			return nil, err
		}
		return tree, nil
	}

	incoming, err := readCitations(ctx, tx, tenant, id, core.DirectionCitedBy)
	if err != nil {
		return nil, err
	}
	for _, citation := range incoming {
		if err := tx.Delete(makeCitationKey(tenant, id, core.DirectionCitedBy, citation.Id)); err != nil {
			return nil, err
		}
		if citation.CitingId == id {
			continue
		}
		citation.CitedId = 0
		if err := tx.Set(makeCitationKey(tenant, citation.CitingId, core.DirectionCites, citation.Id), storage.MarshalCitation(citation)); err != nil {
			return nil, err
		}
	}

	if err := tx.Delete(docKey); err != nil {
		return nil, err
	}
	return tree, nil
}
