package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/history"
)

// FavoritesHandler handles favorites operations.
type FavoritesHandler struct {
	store *history.Store
}

// NewFavoritesHandler creates a new FavoritesHandler.
func NewFavoritesHandler(store *history.Store) *FavoritesHandler {
	return &FavoritesHandler{store: store}
}

// ListFavorites handles GET /api/v1/favorites
func (h *FavoritesHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	items := h.store.Favorites()

	response := map[string]interface{}{
		"items":   items,
		"total":   len(items),
		"user_id": h.store.UserID(),
		"error":   h.store.LastError(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AddFavorite handles POST /api/v1/favorites
func (h *FavoritesHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
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

	h.store.AddToFavorites(request.Product, request.Assessment)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"product_id":  request.Product.ID,
		"is_favorite": true,
	})
}

// RemoveFavorite handles DELETE /api/v1/favorites/{id}
func (h *FavoritesHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/favorites/")
	}

	if !h.store.IsFavorite(id) {
		http.Error(w, "Favorite not found", http.StatusNotFound)
		return
	}

	h.store.RemoveFromFavorites(id)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite handles POST /api/v1/favorites/{id}/toggle
//
// The product must already be in scan history; toggling favors the
// assessment recorded at scan time.
func (h *FavoritesHandler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/favorites/")
		id = strings.TrimSuffix(id, "/toggle")
	}

	if !h.store.IsInHistory(id) {
		http.Error(w, "Product is not in scan history", http.StatusNotFound)
		return
	}

	h.store.ToggleFavorite(id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"product_id":  id,
		"is_favorite": h.store.IsFavorite(id),
	})
}
