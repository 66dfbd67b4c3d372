// Package db provides repository interfaces for local persistence.
package db

import (
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// KVRepository defines string key-value persistence. The storage
// adapter for history and favorites lists sits on top of this.
type KVRepository interface {
	// GetValue returns the stored value for key (sql.ErrNoRows when missing).
	GetValue(key string) (string, error)

	// SetValue stores value under key, replacing any previous value.
	SetValue(key, value string) error

	// DeleteValue removes key.
	DeleteValue(key string) error
}

// ProductCacheRepository defines operations for the offline product cache.
type ProductCacheRepository interface {
	// SaveCachedProduct inserts or refreshes a product cache row.
	SaveCachedProduct(p *models.CachedProduct) error

	// GetCachedProduct retrieves a cached product by ID.
	GetCachedProduct(id string) (*models.CachedProduct, error)

	// GetCachedProductByBarcode retrieves a cached product by barcode.
	GetCachedProductByBarcode(barcode string) (*models.CachedProduct, error)

	// ListCachedProducts returns cached products, most recent first.
	ListCachedProducts(limit, offset int, safetyLevel string) ([]*models.CachedProduct, error)

	// CountCachedProducts returns the number of cached products.
	CountCachedProducts() (int, error)

	// PruneCachedProducts deletes the oldest cache rows beyond keep.
	PruneCachedProducts(keep int) (int, error)
}

// OutboxRepository defines operations for the sync outbox.
type OutboxRepository interface {
	// EnqueueOutboxEvent appends a new event to the sync outbox.
	EnqueueOutboxEvent(event *models.OutboxEvent) error

	// DueOutboxEvents returns pending events whose retry time has arrived.
	DueOutboxEvents(now int64, limit int) ([]*models.OutboxEvent, error)

	// UpdateOutboxEvent persists status and retry bookkeeping.
	UpdateOutboxEvent(event *models.OutboxEvent) error

	// DeleteOutboxEvent removes an event.
	DeleteOutboxEvent(id string) error

	// CountOutboxByStatus returns the number of events in a status.
	CountOutboxByStatus(status string) (int, error)

	// RequeueInProgressOutboxEvents flips in_progress rows back to
	// pending. Run at startup to recover events a crash orphaned.
	RequeueInProgressOutboxEvents() (int, error)

	// PurgeCompletedOutboxEvents deletes completed events older than cutoff.
	PurgeCompletedOutboxEvents(cutoff int64) (int, error)
}

// Ensure *Repository implements the interfaces at compile time.
var (
	_ KVRepository           = (*Repository)(nil)
	_ ProductCacheRepository = (*Repository)(nil)
	_ OutboxRepository       = (*Repository)(nil)
)
