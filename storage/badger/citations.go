package badger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// CitationRepository implements storage.CitationRepository and citation lookup for BadgerDB.
type CitationRepository struct {
	backend *Backend
}

// NewCitationRepository creates a new CitationRepository.
func NewCitationRepository(backend *Backend) *CitationRepository {
	return &CitationRepository{backend: backend}
}

// AddCitations stores citation edges. The citing document must exist in the citation's tenant.
func (r *CitationRepository) AddCitations(ctx context.Context, citations ...*core.Citation) ([]*core.Citation, error) {
	err := r.backend.update(ctx, func(tx *badger.Txn) error {
		for _, citation := range citations {
			if err := core.ValidateCitation(citation); err != nil {
				return err
			}
			if _, err := tx.Get(makeDocumentKey(citation.Tenant, citation.CitingId)); err != nil {
				if err == badger.ErrKeyNotFound {
					return fmt.Errorf("%w: document %d in tenant %q", storage.ErrNotFound, citation.CitingId, citation.Tenant)
				}
				return err
			}
			if err := putCitation(tx, citation); err != nil {
				return err
			}
		}
		return nil
	})
	return citations, err
}

// Citations returns the edges of document in one direction, recorded under tenant.
func (r *CitationRepository) Citations(ctx context.Context, tenant core.TenantID, document core.ID, dir core.Direction) ([]*core.Citation, error) {
	if tenant.IsZero() {
		return nil, fmt.Errorf("%w: %w", storage.ErrUnscopedQuery, core.ErrMissingTenant)
	}
	if !dir.Valid() {
		return nil, fmt.Errorf("%w: unknown direction %q", storage.ErrInvalidQuery, dir)
	}
	var result []*core.Citation
	err := r.backend.view(ctx, func(tx *badger.Txn) error {
		var err error
		result, err = readCitations(ctx, tx, tenant, document, dir)
		return err
	})
	return result, err
}

// citationID derives a citation ID from the citing document and the cited identity.
func citationID(c *core.Citation) core.ID {
	return core.IDFromContent(strconv.FormatUint(uint64(c.CitingId), 10) + "|" + c.CitedKey())
}

// putCitation writes the forward edge and, for in-corpus targets, the reverse edge.
func putCitation(tx *badger.Txn, citation *core.Citation) error {
	if err := core.ValidateCitation(citation); err != nil {
		return err
	}
	if citation.Id == 0 {
		citation.Id = citationID(citation)
	}
	if citation.InsertedAt.IsZero() {
		citation.InsertedAt = time.Now().UTC()
	}
	value := storage.MarshalCitation(citation)
	if err := tx.Set(makeCitationKey(citation.Tenant, citation.CitingId, core.DirectionCites, citation.Id), value); err != nil {
		return err
	}
	if citation.InCorpus() {
		return tx.Set(makeCitationKey(citation.Tenant, citation.CitedId, core.DirectionCitedBy, citation.Id), value)
	}
	return nil
}

func readCitations(ctx context.Context, tx *badger.Txn, tenant core.TenantID, document core.ID, dir core.Direction) ([]*core.Citation, error) {
	var result []*core.Citation
	err := scan(ctx, tx, makeCitationPrefix(tenant, document, dir), false, func(item *badger.Item) error {
		return item.Value(func(val []byte) error {
			citation, err := storage.UnmarshalCitation(val)
			if err != nil {
				return err
			}
			result = append(result, citation)
			return nil
		})
	})
	return result, err
}
