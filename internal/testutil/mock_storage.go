// mock_storage.go - Mock history store for testing
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/invoice-extractor/backend/internal/models"
	"github.com/invoice-extractor/backend/internal/storage"
)

// MockStorage implements storage.Store for testing
type MockStorage struct {
	records map[string]*models.Extraction
	saves   int
	mu      sync.RWMutex

	// SaveErr, when set, is returned by every Save.
	SaveErr error
	// ListErr, when set, is returned by every List.
	ListErr error
}

// NewMockStorage creates an empty mock store
func NewMockStorage() *MockStorage {
	return &MockStorage{
		records: make(map[string]*models.Extraction),
	}
}

func (m *MockStorage) Save(_ context.Context, rec *models.Extraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	cp := *rec
	m.records[rec.ID] = &cp
	return nil
}

func (m *MockStorage) Get(_ context.Context, id string) (*models.Extraction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	cp := *rec
	return &cp, nil
}

func (m *MockStorage) List(_ context.Context, limit int) ([]*models.Extraction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	out := make([]*models.Extraction, 0, len(m.records))
	for _, rec := range m.records {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[id]; !exists {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(m.records, id)
	return nil
}

func (m *MockStorage) Close() error { return nil }

// Ensure MockStorage implements storage.Store
var _ storage.Store = (*MockStorage)(nil)

// Test Helper Methods

// AddRecord adds a record directly to the mock
func (m *MockStorage) AddRecord(rec *models.Extraction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ID] = &cp
}

// Records returns every stored record, newest first
func (m *MockStorage) Records() []*models.Extraction {
	out, _ := m.List(context.Background(), 0)
	return out
}

// SaveCount returns how many times Save was called, including failed calls
func (m *MockStorage) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Clear removes all records
func (m *MockStorage) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]*models.Extraction)
	m.saves = 0
}
