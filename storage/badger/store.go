package badger

import (
	"github.com/poiesic/quarry/storage"
)

// Store implements storage.Store by combining the BadgerDB repositories on one backend.
type Store struct {
	*DocumentRepository
	*RecordRepository
	*CitationRepository
	*CheckpointRepository

	backend *Backend
}

var _ storage.Store = (*Store)(nil)

// NewStore creates a Store on an open backend. Closing the store closes the backend.
func NewStore(backend *Backend) *Store {
	return &Store{
		DocumentRepository:   NewDocumentRepository(backend),
		RecordRepository:     NewRecordRepository(backend),
		CitationRepository:   NewCitationRepository(backend),
		CheckpointRepository: NewCheckpointRepository(backend),
		backend:              backend,
	}
}

// OpenStore opens a BadgerDB database at path and returns it as a storage.Store.
func OpenStore(path string) (storage.Store, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewStore(backend), nil
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
