package sync

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
)

// newRecordedStore wires a history store to an outbox through a
// recorder, the way the shells assemble them.
func newRecordedStore(t *testing.T, userID string) (*history.Store, *Outbox) {
	t.Helper()
	store := history.NewStore(storage.NewMemoryStore(), userID, nil)
	store.Load()

	outbox := NewOutbox(newTestQueue(t))
	NewRecorder(store, outbox).Attach()
	return store, outbox
}

func testProduct(id, name string) *models.Product {
	return &models.Product{ID: id, Name: name, Brand: "Acme Foods"}
}

func TestRecorder_journalsScanAdded(t *testing.T) {
	store, outbox := newRecordedStore(t, "u1")

	store.AddToHistory(testProduct("prod-a", "Almond Bar"),
		&models.SafetyAssessment{OverallSafety: models.SafetySafe})
	store.Flush()

	due, err := outbox.Due(10)
	if err != nil {
		t.Fatalf("Due() failed: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("got %d outbox rows, want 1", len(due))
	}

	event := due[0]
	if event.EventType != models.EventScanAdded {
		t.Errorf("EventType = %q, want %q", event.EventType, models.EventScanAdded)
	}
	if event.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", event.UserID)
	}

	wire, err := toScanEvent(event)
	if err != nil {
		t.Fatalf("toScanEvent() failed: %v", err)
	}
	if wire.ProductID != "prod-a" {
		t.Errorf("ProductID = %q", wire.ProductID)
	}
	if wire.SafetyLevel != string(models.SafetySafe) {
		t.Errorf("SafetyLevel = %q, want safe", wire.SafetyLevel)
	}
	var product models.Product
	if err := json.Unmarshal(wire.ProductData, &product); err != nil {
		t.Fatalf("decode product snapshot: %v", err)
	}
	if product.Name != "Almond Bar" {
		t.Errorf("snapshot Name = %q", product.Name)
	}
	if wire.ScannedAt.IsZero() {
		t.Error("ScannedAt not captured")
	}
}

func TestRecorder_journalsEachMutationType(t *testing.T) {
	store, outbox := newRecordedStore(t, "u1")

	store.AddToHistory(testProduct("prod-a", "Almond Bar"), nil)
	store.ToggleFavorite("prod-a")
	store.ToggleFavorite("prod-a")
	store.RemoveFromHistory("prod-a")
	store.ClearHistory()
	store.Flush()

	due, err := outbox.Due(50)
	if err != nil {
		t.Fatalf("Due() failed: %v", err)
	}

	counts := make(map[string]int)
	for _, event := range due {
		counts[event.EventType]++
	}
	want := map[string]int{
		models.EventScanAdded:       1,
		models.EventFavoriteAdded:   1,
		models.EventFavoriteRemoved: 1,
		models.EventScanRemoved:     1,
		models.EventHistoryCleared:  1,
	}
	for eventType, n := range want {
		if counts[eventType] != n {
			t.Errorf("%s rows = %d, want %d", eventType, counts[eventType], n)
		}
	}
	if len(due) != 5 {
		t.Errorf("total rows = %d, want 5", len(due))
	}
}

func TestRecorder_favoritePayloadCarriesFlag(t *testing.T) {
	store, outbox := newRecordedStore(t, "u1")

	store.AddToFavorites(testProduct("prod-a", "Almond Bar"), nil)
	store.Flush()

	due, _ := outbox.Due(10)
	if len(due) != 1 {
		t.Fatalf("got %d outbox rows, want 1", len(due))
	}
	wire, err := toScanEvent(due[0])
	if err != nil {
		t.Fatalf("toScanEvent() failed: %v", err)
	}
	if wire.EventType != models.EventFavoriteAdded {
		t.Errorf("EventType = %q", wire.EventType)
	}
	if !wire.IsFavorite {
		t.Error("IsFavorite flag not captured")
	}
	if len(wire.ProductData) == 0 {
		t.Error("favorite payload missing product snapshot")
	}
}

func TestRecorder_skipsGuestActivity(t *testing.T) {
	store, outbox := newRecordedStore(t, "")

	store.AddToHistory(testProduct("prod-a", "Almond Bar"), nil)
	store.ClearHistory()
	store.Flush()

	due, err := outbox.Due(10)
	if err != nil {
		t.Fatalf("Due() failed: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("guest activity journaled: %d rows", len(due))
	}
}

func TestRecorder_journalFailureDoesNotBlockMutation(t *testing.T) {
	store := history.NewStore(storage.NewMemoryStore(), "u1", nil)
	store.Load()
	NewRecorder(store, NewOutbox(&stubQueue{enqueueErr: errQueueDown})).Attach()

	store.AddToHistory(testProduct("prod-a", "Almond Bar"), nil)
	store.Flush()

	if got := len(store.History()); got != 1 {
		t.Errorf("history length = %d after journal failure, want 1", got)
	}
	if store.LastError() != "" {
		t.Errorf("store error state = %q, journal failures must stay silent", store.LastError())
	}
}

var errQueueDown = errors.New("queue down")

// stubQueue fails enqueues on demand; everything else is inert.
type stubQueue struct {
	enqueueErr error
}

func (q *stubQueue) EnqueueOutboxEvent(event *models.OutboxEvent) error { return q.enqueueErr }
func (q *stubQueue) DueOutboxEvents(now int64, limit int) ([]*models.OutboxEvent, error) {
	return nil, nil
}
func (q *stubQueue) UpdateOutboxEvent(event *models.OutboxEvent) error { return nil }
func (q *stubQueue) DeleteOutboxEvent(id string) error                 { return nil }
func (q *stubQueue) CountOutboxByStatus(status string) (int, error)    { return 0, nil }
func (q *stubQueue) RequeueInProgressOutboxEvents() (int, error)       { return 0, nil }
func (q *stubQueue) PurgeCompletedOutboxEvents(cutoff int64) (int, error) {
	return 0, nil
}
