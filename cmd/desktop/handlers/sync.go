package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/sync"
)

// SyncHandler handles backend synchronization control. Engine and
// scheduler are nil when sync is disabled or the app runs offline-only.
type SyncHandler struct {
	engine    *sync.Engine
	scheduler *sync.Scheduler
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(engine *sync.Engine, scheduler *sync.Scheduler) *SyncHandler {
	return &SyncHandler{engine: engine, scheduler: scheduler}
}

// Status handles GET /api/v1/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"configured": h.engine != nil,
	}

	if h.engine != nil {
		response["syncing"] = h.engine.Syncing()

		if last := h.engine.LastSync(); !last.IsZero() {
			response["last_sync"] = last.UTC().Format(time.RFC3339)
		}
		if err := h.engine.LastError(); err != nil {
			response["last_error"] = err.Error()
		}
		if pending, err := h.engine.PendingCount(); err == nil {
			response["pending"] = pending
		}
	}
	if h.scheduler != nil {
		response["auto_enabled"] = h.scheduler.Enabled()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// TriggerSync handles POST /api/v1/sync/now
//
// The pass runs on the request context so a closed connection cancels
// it; 409 means a pass is already in flight.
func (h *SyncHandler) TriggerSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.engine == nil {
		http.Error(w, "Sync not configured", http.StatusPreconditionFailed)
		return
	}

	result, err := h.engine.Sync(r.Context())
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"pushed":      result.Pushed,
		"pulled":      result.Pulled,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

// SetAutoSync handles PUT /api/v1/sync/auto
func (h *SyncHandler) SetAutoSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.scheduler == nil {
		http.Error(w, "Sync not configured", http.StatusPreconditionFailed)
		return
	}

	var request struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	h.scheduler.SetEnabled(request.Enabled)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"auto_enabled": h.scheduler.Enabled(),
	})
}
