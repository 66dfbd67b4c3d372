// Package sync mirrors local scan history mutations to the backend.
//
// Local state is authoritative. Every mutation is journaled to a
// persistent outbox and pushed in batches; the only remote-to-local
// flow is the one-time seeding of an empty namespace after sign-in.
package sync

import (
	"encoding/json"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

const (
	// maxAttempts is the retry budget for one outbox event.
	maxAttempts = 5

	// baseRetryDelay is the backoff unit; the delay doubles per retry.
	baseRetryDelay = 60 * time.Second

	// maxRetryDelay caps the backoff growth.
	maxRetryDelay = time.Hour

	// completedRetention is how long completed rows stay around for
	// inspection before PurgeCompleted removes them.
	completedRetention = 7 * 24 * time.Hour
)

// Queue is the persistence surface the outbox rides on. *db.Repository
// implements it.
type Queue interface {
	EnqueueOutboxEvent(event *models.OutboxEvent) error
	DueOutboxEvents(now int64, limit int) ([]*models.OutboxEvent, error)
	UpdateOutboxEvent(event *models.OutboxEvent) error
	DeleteOutboxEvent(id string) error
	CountOutboxByStatus(status string) (int, error)
	RequeueInProgressOutboxEvents() (int, error)
	PurgeCompletedOutboxEvents(cutoff int64) (int, error)
}

// Outbox is a durable queue of history mutations awaiting upload. Rows
// survive restarts; a failed push reschedules the row with exponential
// backoff until its retry budget runs out.
type Outbox struct {
	queue  Queue
	logger *logging.Logger
}

// NewOutbox wraps a queue.
func NewOutbox(queue Queue) *Outbox {
	return &Outbox{
		queue:  queue,
		logger: logging.Get().WithComponent("sync.outbox"),
	}
}

// Record journals one mutation. The payload is marshaled and stored
// with the row so a later push needs no live store lookup.
func (o *Outbox) Record(userID, eventType string, payload interface{}) error {
	var body json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return errors.Wrap(errors.ErrInternal, "encode outbox payload", err)
		}
		body = data
	}

	event := &models.OutboxEvent{
		UserID:     userID,
		EventType:  eventType,
		Payload:    body,
		MaxRetries: maxAttempts,
	}
	if err := o.queue.EnqueueOutboxEvent(event); err != nil {
		return errors.Wrap(errors.ErrDatabase, "enqueue outbox event", err)
	}
	return nil
}

// Due returns up to limit pending events ready to push, oldest first.
func (o *Outbox) Due(limit int) ([]*models.OutboxEvent, error) {
	events, err := o.queue.DueOutboxEvents(time.Now().Unix(), limit)
	if err != nil {
		return nil, errors.Wrap(errors.ErrDatabase, "load due outbox events", err)
	}
	return events, nil
}

// Claim marks an event in_progress so concurrent pushes skip it.
func (o *Outbox) Claim(event *models.OutboxEvent) error {
	event.Status = models.OutboxInProgress
	return o.queue.UpdateOutboxEvent(event)
}

// Complete marks an event done. The row is kept until retention purges
// it so recent sync activity stays inspectable.
func (o *Outbox) Complete(event *models.OutboxEvent) error {
	event.Status = models.OutboxCompleted
	return o.queue.UpdateOutboxEvent(event)
}

// Reschedule handles a failed push attempt: the retry counter is
// bumped and the event returns to pending with a backoff delay, or
// moves to failed once the budget is exhausted.
func (o *Outbox) Reschedule(event *models.OutboxEvent) error {
	event.RetryCount++
	if event.Exhausted() {
		event.Status = models.OutboxFailed
		o.logger.Warn("outbox event exhausted its retries", map[string]interface{}{
			"event_id":   string(event.ID),
			"event_type": event.EventType,
			"retries":    event.RetryCount,
		})
	} else {
		event.Status = models.OutboxPending
		event.NextRetryAt = time.Now().Add(backoffDelay(event.RetryCount)).Unix()
	}
	return o.queue.UpdateOutboxEvent(event)
}

// Discard removes an event that can never succeed, such as one whose
// payload no longer decodes.
func (o *Outbox) Discard(event *models.OutboxEvent) error {
	return o.queue.DeleteOutboxEvent(string(event.ID))
}

// Recover flips rows stranded in_progress by a crash back to pending.
// Call once at startup before the first push.
func (o *Outbox) Recover() error {
	requeued, err := o.queue.RequeueInProgressOutboxEvents()
	if err != nil {
		return errors.Wrap(errors.ErrDatabase, "requeue stranded outbox events", err)
	}
	if requeued > 0 {
		o.logger.Info("requeued stranded outbox events", map[string]interface{}{
			"count": requeued,
		})
	}
	return nil
}

// PendingCount returns the number of events awaiting push.
func (o *Outbox) PendingCount() (int, error) {
	return o.queue.CountOutboxByStatus(models.OutboxPending)
}

// FailedCount returns the number of events that ran out of retries.
func (o *Outbox) FailedCount() (int, error) {
	return o.queue.CountOutboxByStatus(models.OutboxFailed)
}

// PurgeCompleted removes completed rows older than the retention
// window and returns how many were deleted.
func (o *Outbox) PurgeCompleted() (int, error) {
	cutoff := time.Now().Add(-completedRetention).Unix()
	return o.queue.PurgeCompletedOutboxEvents(cutoff)
}

// backoffDelay returns the wait before retry n: 2^n minutes, capped.
func backoffDelay(retryCount int) time.Duration {
	delay := baseRetryDelay
	for i := 0; i < retryCount && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	return delay
}
