package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/invoice-extractor/backend/internal/models"
)

// ErrNotFound is returned when no extraction has the requested ID.
var ErrNotFound = errors.New("extraction not found")

// Store defines the interface for extraction history.
type Store interface {
	Save(ctx context.Context, rec *models.Extraction) error
	Get(ctx context.Context, id string) (*models.Extraction, error)
	// List returns up to limit records, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]*models.Extraction, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open returns the store for driver. "none" yields a nil Store.
func Open(driver, path string, maxEntries int) (Store, error) {
	switch driver {
	case "memory", "":
		return NewMemoryStore(maxEntries), nil
	case "duckdb":
		store, err := NewDuckStore(path, maxEntries)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown history driver: %q", driver)
	}
}
