package downloads

import (
	"context"
	"sync"

	"pkgstats/internal/ingest"
)

// InMemoryStore keeps download events in a slice. Test double and local
// development backend; production uses PostgresStore.
type InMemoryStore struct {
	mu        sync.Mutex
	downloads []ingest.Download
	failWith  error
}

// NewInMemory creates an empty in-memory download store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// CreateDownload appends the event, or returns the configured failure.
func (s *InMemoryStore) CreateDownload(ctx context.Context, d ingest.Download) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.downloads = append(s.downloads, d)
	return nil
}

// Downloads returns a copy of everything stored so far.
func (s *InMemoryStore) Downloads() []ingest.Download {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ingest.Download, len(s.downloads))
	copy(out, s.downloads)
	return out
}

// FailWith makes subsequent CreateDownload calls return err; nil restores
// normal operation.
func (s *InMemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}
