// Package models provides data model definitions for the scanner core.
package models

import (
	"encoding/json"
	"time"
)

// Outbox event types mirrored to the backend.
const (
	EventScanAdded       = "scan_added"
	EventScanRemoved     = "scan_removed"
	EventHistoryCleared  = "history_cleared"
	EventFavoriteAdded   = "favorite_added"
	EventFavoriteRemoved = "favorite_removed"
)

// Outbox item statuses.
const (
	OutboxPending    = "pending"
	OutboxInProgress = "in_progress"
	OutboxFailed     = "failed"
	OutboxCompleted  = "completed"
)

// OutboxEvent represents one pending mutation awaiting upload.
type OutboxEvent struct {
	ID          UUID            `db:"id" json:"id"`
	UserID      string          `db:"user_id" json:"user_id"`
	EventType   string          `db:"event_type" json:"event_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	RetryCount  int             `db:"retry_count" json:"retry_count"`
	MaxRetries  int             `db:"max_retries" json:"max_retries"`
	NextRetryAt int64           `db:"next_retry_at" json:"next_retry_at"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   int64           `db:"created_at" json:"created_at"`
	UpdatedAt   int64           `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for OutboxEvent.
func (OutboxEvent) TableName() string {
	return "sync_outbox"
}

// Exhausted reports whether the event has used up its retry budget.
func (e *OutboxEvent) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}

// Due reports whether the event is ready to attempt at the given time.
func (e *OutboxEvent) Due(now time.Time) bool {
	return e.Status == OutboxPending && now.Unix() >= e.NextRetryAt
}

// Touch updates the UpdatedAt timestamp.
func (e *OutboxEvent) Touch() {
	e.UpdatedAt = time.Now().Unix()
}
