package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/barcode"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/offline"
)

// ProductsHandler handles offline product lookups and barcode checks.
// The backend client is nil when the app runs offline-only; lookups
// then never leave the local cache.
type ProductsHandler struct {
	cache  *offline.Cache
	client *backend.Client
}

// NewProductsHandler creates a new ProductsHandler.
func NewProductsHandler(cache *offline.Cache, client *backend.Client) *ProductsHandler {
	return &ProductsHandler{cache: cache, client: client}
}

// GetProduct handles GET /api/v1/products/{id}
func (h *ProductsHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		id = strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	}

	product, assessment, err := h.cache.Product(id)
	if err != nil {
		if errors.Is(err, errors.ErrCacheNotFound) {
			http.Error(w, "Product not cached", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"product":    product,
		"assessment": assessment,
		"source":     "cache",
	})
}

// GetProductByBarcode handles GET /api/v1/products/barcode/{code}
//
// The offline cache is consulted first; on a miss the backend is asked
// when configured, and the answer is cached for the next offline lookup.
func (h *ProductsHandler) GetProductByBarcode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.PathValue("code")
	if code == "" {
		code = strings.TrimPrefix(r.URL.Path, "/api/v1/products/barcode/")
	}

	normalized, err := barcode.Normalize(code)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	product, assessment, err := h.cache.ProductByBarcode(normalized)
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"product":    product,
			"assessment": assessment,
			"source":     "cache",
		})
		return
	}
	if !errors.Is(err, errors.ErrCacheNotFound) {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	if h.client == nil {
		http.Error(w, "Product not cached", http.StatusNotFound)
		return
	}

	remote, err := h.client.ProductByBarcode(r.Context(), normalized)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	// Keep the answer available for the next offline lookup.
	if err := h.cache.CacheProduct(&remote.Product, nil); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"product": remote.Product,
		"source":  "network",
	})
}

// SearchProducts handles GET /api/v1/products/search
func (h *ProductsHandler) SearchProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		http.Error(w, "q is required", http.StatusBadRequest)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	opts := db.SearchOptions{
		Query:    query,
		Limit:    limit,
		Category: r.URL.Query().Get("category"),
	}
	if levels := r.URL.Query().Get("safety_levels"); levels != "" {
		opts.SafetyLevels = strings.Split(levels, ",")
	}
	if hl := r.URL.Query().Get("highlight"); hl == "1" || hl == "true" {
		opts.Highlight = true
	}

	response, err := h.cache.Search(opts)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// ValidateBarcode handles POST /api/v1/barcode/validate
func (h *ProductsHandler) ValidateBarcode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	response := map[string]interface{}{
		"code":  request.Code,
		"valid": false,
	}

	normalized, err := barcode.Normalize(request.Code)
	if err != nil {
		response["error"] = err.Error()
		response["error_code"] = string(errors.CodeOf(err))
	} else {
		response["valid"] = true
		response["normalized"] = normalized
		response["format"] = string(barcode.Detect(normalized))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
