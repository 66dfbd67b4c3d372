package history

import (
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// Read-only lookups over in-memory state. These never fail and never
// touch storage.

// History returns a copy of the history list, most recent first.
func (s *Store) History() []models.ScanHistoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ScanHistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// Favorites returns a copy of the favorites list, most recently added
// first.
func (s *Store) Favorites() []models.FavoriteItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FavoriteItem, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// GetHistoryItem returns the history entry for a product id.
func (s *Store) GetHistoryItem(productID string) (models.ScanHistoryItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOfHistoryLocked(productID); i >= 0 {
		return s.history[i], true
	}
	return models.ScanHistoryItem{}, false
}

// IsInHistory reports whether a product id has a history entry.
func (s *Store) IsInHistory(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfHistoryLocked(productID) >= 0
}

// IsFavorite reports whether a product id is in the favorites list.
func (s *Store) IsFavorite(productID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexOfFavoriteLocked(productID) >= 0
}

// SearchHistory returns history entries whose name, brand, barcode, or
// category contains the query, case-insensitively, in history order.
// Brand and category are optional fields; their absence simply never
// matches. A blank query returns nothing.
func (s *Store) SearchHistory(query string) []models.ScanHistoryItem {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []models.ScanHistoryItem{}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []models.ScanHistoryItem{}
	for _, item := range s.history {
		p := item.Product
		if strings.Contains(strings.ToLower(p.Name), needle) ||
			strings.Contains(strings.ToLower(p.Brand), needle) ||
			strings.Contains(strings.ToLower(p.Barcode), needle) ||
			strings.Contains(strings.ToLower(p.Category), needle) {
			results = append(results, item)
		}
	}
	return results
}

// GetRecentSafeProducts returns the first limit history entries whose
// safety level is safe, in history (most-recent-first) order. A
// non-positive limit defaults to 10.
func (s *Store) GetRecentSafeProducts(limit int) []models.ScanHistoryItem {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := []models.ScanHistoryItem{}
	for _, item := range s.history {
		if item.SafetyLevel != models.SafetySafe {
			continue
		}
		results = append(results, item)
		if len(results) == limit {
			break
		}
	}
	return results
}

// GetHistoryStats aggregates counts over both lists. Warning-level
// scans count as dangerous alongside danger-level ones.
func (s *Store) GetHistoryStats() models.HistoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := models.HistoryStats{
		TotalScans:    len(s.history),
		FavoriteCount: len(s.favorites),
	}
	for _, item := range s.history {
		switch {
		case item.SafetyLevel == models.SafetySafe:
			stats.SafeProducts++
		case item.SafetyLevel.Dangerous():
			stats.DangerousProducts++
		}
	}
	return stats
}
