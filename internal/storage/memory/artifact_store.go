package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

// ArtifactStore keeps the JSON encoding of each artifact in memory.
type ArtifactStore struct {
	mu      sync.RWMutex
	indexed map[frontier.Kind]bool
	docs    map[entityKey][]byte
}

// NewArtifactStore creates a new in-memory artifact store.
func NewArtifactStore() *ArtifactStore {
	return &ArtifactStore{
		indexed: make(map[frontier.Kind]bool),
		docs:    make(map[entityKey][]byte),
	}
}

// EnsureUniqueIndex marks kind as writable. Repeated calls are no-ops.
func (s *ArtifactStore) EnsureUniqueIndex(_ context.Context, kind frontier.Kind) error {
	if err := kind.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed[kind] = true
	return nil
}

// Persist stores doc unless an artifact already exists for kind/id.
func (s *ArtifactStore) Persist(
	_ context.Context,
	kind frontier.Kind,
	id int64,
	doc any,
) (frontier.PersistResult, error) {
	data, err := frontier.EncodeArtifact(doc)
	if err != nil {
		return frontier.PersistResult{}, err
	}
	key := entityKey{kind: kind, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.indexed[kind] {
		return frontier.PersistResult{}, fmt.Errorf("persist %s %d: %w", kind, id, frontier.ErrIndexMissing)
	}
	if _, exists := s.docs[key]; exists {
		return frontier.DuplicateResult(kind, id, "memory"), nil
	}
	s.docs[key] = data
	return frontier.StoredResult(), nil
}

// Lookup returns the stored JSON document for kind/id.
func (s *ArtifactStore) Lookup(kind frontier.Kind, id int64) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[entityKey{kind: kind, id: id}]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), doc...), true
}

// Len returns the number of stored artifacts.
func (s *ArtifactStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}
