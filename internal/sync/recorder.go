package sync

import (
	"encoding/json"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/storage"
)

// mirrorPayload is the stored body of an outbox row: enough of the
// mutated entry to rebuild a wire event without a live store lookup.
type mirrorPayload struct {
	ProductID   string          `json:"product_id,omitempty"`
	SafetyLevel string          `json:"safety_level,omitempty"`
	IsFavorite  bool            `json:"is_favorite,omitempty"`
	ProductData json.RawMessage `json:"product_data,omitempty"`
	ScannedAt   time.Time       `json:"scanned_at"`
}

// Recorder journals history store mutations into the outbox. Guest
// activity is never journaled; only signed-in namespaces sync.
type Recorder struct {
	store  *history.Store
	outbox *Outbox
	logger *logging.Logger
}

// NewRecorder builds a recorder over a store and outbox.
func NewRecorder(store *history.Store, outbox *Outbox) *Recorder {
	return &Recorder{
		store:  store,
		outbox: outbox,
		logger: logging.Get().WithComponent("sync.recorder"),
	}
}

// Attach subscribes the recorder to the store's change feed. The store
// holds a single callback; shells that fan events out to more consumers
// call HandleChange from their own composite callback instead.
func (r *Recorder) Attach() {
	r.store.OnChange(r.HandleChange)
}

// HandleChange journals one store mutation.
func (r *Recorder) HandleChange(e history.ChangeEvent) {
	if e.UserID == storage.GuestNamespace {
		return
	}
	if err := r.outbox.Record(e.UserID, e.Type, r.payloadFor(e)); err != nil {
		// Journaling must never surface into the mutation path; the
		// local write already succeeded.
		r.logger.Error("journal history mutation", err, map[string]interface{}{
			"event_type": e.Type,
			"product_id": e.ProductID,
		})
	}
}

// payloadFor snapshots the mutated entry. Additions capture the full
// product so the push is self-contained; removals and clears only need
// the id and event time.
func (r *Recorder) payloadFor(e history.ChangeEvent) mirrorPayload {
	payload := mirrorPayload{
		ProductID: e.ProductID,
		ScannedAt: time.Now().UTC(),
	}

	switch e.Type {
	case models.EventScanAdded:
		if item, ok := r.store.GetHistoryItem(e.ProductID); ok {
			fillFromItem(&payload, item)
		}
	case models.EventFavoriteAdded:
		for _, item := range r.store.Favorites() {
			if item.Product.ID == e.ProductID {
				fillFromItem(&payload, item)
				break
			}
		}
	}
	return payload
}

func fillFromItem(payload *mirrorPayload, item models.ScanHistoryItem) {
	payload.SafetyLevel = string(item.SafetyLevel)
	payload.IsFavorite = item.IsFavorite
	payload.ScannedAt = item.ScannedAt.UTC()
	if data, err := json.Marshal(item.Product); err == nil {
		payload.ProductData = data
	}
}
