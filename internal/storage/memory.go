package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invoice-extractor/backend/internal/models"
)

// MemoryStore keeps the most recent extractions in memory.
type MemoryStore struct {
	mu         sync.RWMutex
	maxEntries int
	records    map[string]*models.Extraction
}

// NewMemoryStore creates a store holding at most maxEntries records.
// maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		records:    make(map[string]*models.Extraction),
	}
}

// Save stores a copy of rec, evicting the oldest records past the limit.
func (s *MemoryStore) Save(_ context.Context, rec *models.Extraction) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("saving extraction: missing id")
	}
	cp := *rec

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = &cp

	if s.maxEntries > 0 && len(s.records) > s.maxEntries {
		for _, old := range s.sortedLocked()[s.maxEntries:] {
			delete(s.records, old.ID)
		}
	}
	return nil
}

// Get retrieves an extraction by ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*models.Extraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

// List returns the most recent extractions.
func (s *MemoryStore) List(_ context.Context, limit int) ([]*models.Extraction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sortedLocked()
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}

	out := make([]*models.Extraction, len(list))
	for i, rec := range list {
		cp := *rec
		out[i] = &cp
	}
	return out, nil
}

// Delete removes an extraction.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }

// sortedLocked returns records by CreatedAt desc, ID breaking ties.
func (s *MemoryStore) sortedLocked() []*models.Extraction {
	list := make([]*models.Extraction, 0, len(s.records))
	for _, rec := range s.records {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].ID > list[j].ID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list
}
