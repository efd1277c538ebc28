// Package memory provides in-memory stores for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

type entityKey struct {
	kind frontier.Kind
	id   int64
}

// EntityStore keeps entity rows in a map. The mutex plays the role of the
// database's unique index; callers see the same semantics as the SQL stores.
type EntityStore struct {
	mu   sync.RWMutex
	rows map[entityKey]frontier.Entity
}

// NewEntityStore constructs an EntityStore.
func NewEntityStore() *EntityStore {
	return &EntityStore{rows: make(map[entityKey]frontier.Entity)}
}

// Create inserts a NORMAL, not-crawled row unless one exists.
func (s *EntityStore) Create(_ context.Context, kind frontier.Kind, id int64) (frontier.InsertResult, error) {
	if err := kind.Validate(); err != nil {
		return 0, err
	}
	key := entityKey{kind: kind, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[key]; exists {
		return frontier.AlreadyExists, nil
	}
	s.rows[key] = frontier.Entity{Kind: kind, ID: id, State: frontier.StateNormal}
	return frontier.Inserted, nil
}

// UpdateState merges update into the row.
func (s *EntityStore) UpdateState(_ context.Context, kind frontier.Kind, id int64, update frontier.Update) error {
	key := entityKey{kind: kind, id: id}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[key]
	if !ok {
		return frontier.ErrNotFound
	}
	s.rows[key] = frontier.Apply(row, update)
	return nil
}

// Get returns a copy of the row.
func (s *EntityStore) Get(_ context.Context, kind frontier.Kind, id int64) (frontier.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[entityKey{kind: kind, id: id}]
	if !ok {
		return frontier.Entity{}, frontier.ErrNotFound
	}
	return row, nil
}

// Count returns the number of rows for a kind.
func (s *EntityStore) Count(kind frontier.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.rows {
		if key.kind == kind {
			n++
		}
	}
	return n
}
