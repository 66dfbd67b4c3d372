package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/services"
)

// RestaurantsHandler handles restaurant and meal lookups. The service
// is nil when the app runs offline-only.
type RestaurantsHandler struct {
	service *services.RestaurantService
}

// NewRestaurantsHandler creates a new RestaurantsHandler.
func NewRestaurantsHandler(service *services.RestaurantService) *RestaurantsHandler {
	return &RestaurantsHandler{service: service}
}

// SearchRestaurants handles GET /api/v1/restaurants
func (h *RestaurantsHandler) SearchRestaurants(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.service == nil {
		http.Error(w, "Backend not configured", http.StatusPreconditionFailed)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	query := backend.RestaurantQuery{
		Search:  r.URL.Query().Get("q"),
		Cuisine: r.URL.Query().Get("cuisine"),
		Limit:   limit,
	}

	restaurants, err := h.service.Search(r.Context(), query)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	response := map[string]interface{}{
		"restaurants": restaurants,
		"total":       len(restaurants),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// RestaurantMeals handles GET /api/v1/restaurants/{id}/meals
//
// Meals are annotated with the caller's favorite flags so the UI can
// mark dishes built from already-favorited products.
func (h *RestaurantsHandler) RestaurantMeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.service == nil {
		http.Error(w, "Backend not configured", http.StatusPreconditionFailed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/restaurants/")
		id = strings.TrimSuffix(id, "/meals")
	}
	if id == "" {
		http.Error(w, "restaurant id is required", http.StatusBadRequest)
		return
	}

	meals, err := h.service.Meals(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	response := map[string]interface{}{
		"meals": meals,
		"total": len(meals),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
