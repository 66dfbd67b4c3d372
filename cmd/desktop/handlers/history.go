package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// HistoryHandler handles scan history operations.
type HistoryHandler struct {
	store *history.Store
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(store *history.Store) *HistoryHandler {
	return &HistoryHandler{store: store}
}

// scanRequest is the body for recording a scan.
type scanRequest struct {
	Product    *models.Product          `json:"product"`
	Assessment *models.SafetyAssessment `json:"assessment"`
}

// ListHistory handles GET /api/v1/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items := h.store.History()

	response := map[string]interface{}{
		"items":   items,
		"total":   len(items),
		"user_id": h.store.UserID(),
		"loading": h.store.Loading(),
		"error":   h.store.LastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AddScan handles POST /api/v1/history
func (h *HistoryHandler) AddScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request scanRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Product == nil || request.Product.ID == "" {
		http.Error(w, "product.id is required", http.StatusBadRequest)
		return
	}

	h.store.AddToHistory(request.Product, request.Assessment)

	item, ok := h.store.GetHistoryItem(request.Product.ID)
	if !ok {
		// The store rejected the scan; its error state says why.
		http.Error(w, h.store.LastError(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(item)
}

// ClearHistory handles DELETE /api/v1/history
func (h *HistoryHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.store.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// GetHistoryItem handles GET /api/v1/history/{id}
func (h *HistoryHandler) GetHistoryItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
	}

	item, ok := h.store.GetHistoryItem(id)
	if !ok {
		http.Error(w, "History item not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

// RemoveFromHistory handles DELETE /api/v1/history/{id}
func (h *HistoryHandler) RemoveFromHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/history/")
	}

	if !h.store.IsInHistory(id) {
		http.Error(w, "History item not found", http.StatusNotFound)
		return
	}

	h.store.RemoveFromHistory(id)
	w.WriteHeader(http.StatusNoContent)
}

// SearchHistory handles GET /api/v1/history/search
func (h *HistoryHandler) SearchHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	results := h.store.SearchHistory(query)

	response := map[string]interface{}{
		"results": results,
		"total":   len(results),
		"query":   query,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RecentSafeProducts handles GET /api/v1/history/recent-safe
func (h *HistoryHandler) RecentSafeProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 10
	}

	items := h.store.GetRecentSafeProducts(limit)

	response := map[string]interface{}{
		"items": items,
		"total": len(items),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// HistoryStats handles GET /api/v1/history/stats
func (h *HistoryHandler) HistoryStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.store.GetHistoryStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}
