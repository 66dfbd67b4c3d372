// Scan history, favorites, and product cache exports for the mobile
// FFI surface. All exported functions use C calling convention and can
// be called from Dart FFI; JSON results must be freed with FreeString.
package main

/*
#include <stdlib.h>
*/
import "C"
import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/barcode"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// callContext bounds one FFI call that may touch the network.
func callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// toJSON serializes a value for the FFI boundary, recording failures
// in the bridge error state.
func toJSON(v interface{}) *C.char {
	data, err := json.Marshal(v)
	if err != nil {
		setLastError(fmt.Sprintf("Failed to serialize: %v", err))
		return nil
	}
	return C.CString(string(data))
}

// decodeScan parses the product and optional assessment payloads.
func decodeScan(productJSON, assessmentJSON *C.char) (*models.Product, *models.SafetyAssessment, bool) {
	var product models.Product
	if err := json.Unmarshal([]byte(C.GoString(productJSON)), &product); err != nil {
		setLastError(fmt.Sprintf("Invalid product payload: %v", err))
		return nil, nil, false
	}

	var assessment *models.SafetyAssessment
	if raw := C.GoString(assessmentJSON); raw != "" && raw != "null" {
		assessment = &models.SafetyAssessment{}
		if err := json.Unmarshal([]byte(raw), assessment); err != nil {
			setLastError(fmt.Sprintf("Invalid assessment payload: %v", err))
			return nil, nil, false
		}
	}

	return &product, assessment, true
}

// =====================================================
// History Operations
// =====================================================

//export AddToHistory
// AddToHistory records a scan. Re-scanning a product moves it to the
// front of the list. Returns the stored item as JSON, or nil on error.
func AddToHistory(productJSON, assessmentJSON *C.char) *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}

	product, assessment, ok := decodeScan(productJSON, assessmentJSON)
	if !ok {
		return nil
	}

	store.AddToHistory(product, assessment)

	item, found := store.GetHistoryItem(product.ID)
	if !found {
		return nil
	}
	return toJSON(item)
}

//export RemoveFromHistory
// RemoveFromHistory drops one entry; absent ids are a no-op.
func RemoveFromHistory(productID *C.char) {
	if store == nil {
		setLastError("Core not initialized")
		return
	}
	store.RemoveFromHistory(C.GoString(productID))
}

//export ClearHistory
// ClearHistory empties the history list and its storage key.
func ClearHistory() {
	if store == nil {
		setLastError("Core not initialized")
		return
	}
	store.ClearHistory()
}

//export GetHistory
// GetHistory returns the full history list as JSON, most recent first.
func GetHistory() *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}

	items := store.History()
	return toJSON(map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

//export GetHistoryItem
// GetHistoryItem returns one entry as JSON, or nil when absent.
func GetHistoryItem(productID *C.char) *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}

	item, found := store.GetHistoryItem(C.GoString(productID))
	if !found {
		return nil
	}
	return toJSON(item)
}

//export IsInHistory
// IsInHistory returns 1 when the product id has been scanned.
func IsInHistory(productID *C.char) int32 {
	if store == nil {
		return 0
	}
	if store.IsInHistory(C.GoString(productID)) {
		return 1
	}
	return 0
}

//export SearchHistory
// SearchHistory matches name, brand, barcode, and category
// case-insensitively. Returns a JSON array.
func SearchHistory(query *C.char) *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}

	items := store.SearchHistory(C.GoString(query))
	return toJSON(map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

//export GetRecentSafeProducts
// GetRecentSafeProducts returns the most recent entries rated safe.
// A non-positive limit uses the default of 10.
func GetRecentSafeProducts(limit int32) *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}
	return toJSON(store.GetRecentSafeProducts(int(limit)))
}

//export GetHistoryStats
// GetHistoryStats returns aggregate scan counts as JSON.
func GetHistoryStats() *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}
	return toJSON(store.GetHistoryStats())
}

// =====================================================
// Favorites Operations
// =====================================================

//export AddToFavorites
// AddToFavorites inserts at the front unless already present; the
// matching history entry's favorite flag is set either way.
func AddToFavorites(productJSON, assessmentJSON *C.char) {
	if store == nil {
		setLastError("Core not initialized")
		return
	}

	product, assessment, ok := decodeScan(productJSON, assessmentJSON)
	if !ok {
		return
	}
	store.AddToFavorites(product, assessment)
}

//export RemoveFromFavorites
// RemoveFromFavorites drops the entry and clears the matching history
// entry's favorite flag.
func RemoveFromFavorites(productID *C.char) {
	if store == nil {
		setLastError("Core not initialized")
		return
	}
	store.RemoveFromFavorites(C.GoString(productID))
}

//export ToggleFavorite
// ToggleFavorite flips favorite state for a product already in
// history. An unknown id sets the error state and changes nothing.
func ToggleFavorite(productID *C.char) {
	if store == nil {
		setLastError("Core not initialized")
		return
	}
	store.ToggleFavorite(C.GoString(productID))
}

//export GetFavorites
// GetFavorites returns the favorites list as JSON, most recently
// added first.
func GetFavorites() *C.char {
	if store == nil {
		setLastError("Core not initialized")
		return nil
	}

	items := store.Favorites()
	return toJSON(map[string]interface{}{
		"items": items,
		"total": len(items),
	})
}

//export IsFavorite
// IsFavorite returns 1 when the product id is favorited.
func IsFavorite(productID *C.char) int32 {
	if store == nil {
		return 0
	}
	if store.IsFavorite(C.GoString(productID)) {
		return 1
	}
	return 0
}

// =====================================================
// Product Cache Operations
// =====================================================

//export GetCachedProduct
// GetCachedProduct returns an offline-cached product and its latest
// assessment as JSON, or nil when not cached.
func GetCachedProduct(productID *C.char) *C.char {
	if cache == nil {
		setLastError("Core not initialized")
		return nil
	}

	product, assessment, err := cache.Product(C.GoString(productID))
	if err != nil {
		if !errors.Is(err, errors.ErrCacheNotFound) {
			setLastError(fmt.Sprintf("Cache lookup failed: %v", err))
		}
		return nil
	}

	return toJSON(map[string]interface{}{
		"product":    product,
		"assessment": assessment,
	})
}

//export GetProductByBarcode
// GetProductByBarcode normalizes the code and looks it up in the
// offline cache. Returns JSON or nil on a miss or invalid code.
func GetProductByBarcode(code *C.char) *C.char {
	if cache == nil {
		setLastError("Core not initialized")
		return nil
	}

	normalized, err := barcode.Normalize(C.GoString(code))
	if err != nil {
		setLastError(fmt.Sprintf("Invalid barcode: %v", err))
		return nil
	}

	product, assessment, err := cache.ProductByBarcode(normalized)
	if err != nil {
		if !errors.Is(err, errors.ErrCacheNotFound) {
			setLastError(fmt.Sprintf("Cache lookup failed: %v", err))
		}
		return nil
	}

	return toJSON(map[string]interface{}{
		"product":    product,
		"assessment": assessment,
	})
}

//export ValidateBarcode
// ValidateBarcode checks format and check digit without any lookup.
// Returns a JSON verdict with the normalized EAN-13 form when valid.
func ValidateBarcode(code *C.char) *C.char {
	raw := C.GoString(code)

	result := map[string]interface{}{
		"code":  raw,
		"valid": false,
	}

	normalized, err := barcode.Normalize(raw)
	if err != nil {
		result["error"] = err.Error()
		result["error_code"] = string(errors.CodeOf(err))
	} else {
		result["valid"] = true
		result["normalized"] = normalized
		result["format"] = string(barcode.Detect(normalized))
	}

	return toJSON(result)
}
