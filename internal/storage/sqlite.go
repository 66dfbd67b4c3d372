package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
)

// SQLiteStore persists key-value pairs in the local database's
// kv_store table. This is the production adapter on every platform.
type SQLiteStore struct {
	repo db.KVRepository
}

// NewSQLiteStore creates a store backed by the given repository.
func NewSQLiteStore(repo db.KVRepository) *SQLiteStore {
	return &SQLiteStore{repo: repo}
}

// GetItem returns the value stored under key. Missing keys report
// found=false with a nil error.
func (s *SQLiteStore) GetItem(key string) (string, bool, error) {
	value, err := s.repo.GetValue(key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem stores value under key.
func (s *SQLiteStore) SetItem(key, value string) error {
	if err := s.repo.SetValue(key, value); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// RemoveItem deletes key.
func (s *SQLiteStore) RemoveItem(key string) error {
	if err := s.repo.DeleteValue(key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
