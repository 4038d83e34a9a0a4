// Path: internal/storage/memory_storage.go
package storage

import (
	"context"
	"slices"
	"sync"
	"time"

	"media-search/internal/domain"
)

// MemorySessionStorage keeps sessions in process memory. Used when no
// database is configured, and in tests.
type MemorySessionStorage struct {
	mu   sync.RWMutex
	docs map[string]domain.SessionDocument
}

// NewMemorySessionStorage creates an empty store.
func NewMemorySessionStorage() *MemorySessionStorage {
	return &MemorySessionStorage{docs: make(map[string]domain.SessionDocument)}
}

// Save implements the SessionStorage interface.
func (s *MemorySessionStorage) Save(_ context.Context, doc domain.SessionDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = copyDocument(doc)
	return nil
}

// Load implements the SessionStorage interface.
func (s *MemorySessionStorage) Load(_ context.Context, id string) (*domain.SessionDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	out := copyDocument(doc)
	return &out, nil
}

// Delete implements the SessionStorage interface.
func (s *MemorySessionStorage) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

// DeleteOlderThan removes sessions not updated since cutoff.
func (s *MemorySessionStorage) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, doc := range s.docs {
		if doc.UpdatedAt.Before(cutoff) {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func copyDocument(doc domain.SessionDocument) domain.SessionDocument {
	out := doc
	if doc.Query.DateRange != nil {
		r := *doc.Query.DateRange
		out.Query.DateRange = &r
	}
	out.History = make([]domain.Cursor, len(doc.History))
	for i, c := range doc.History {
		out.History[i] = slices.Clone(c)
	}
	return out
}
