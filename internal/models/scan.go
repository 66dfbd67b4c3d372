// Package models provides data model definitions for the scanner core.
package models

import "time"

// ScanHistoryItem is one entry in a user's scan history list.
// SafetyLevel mirrors the assessment's overall level so list filtering
// never re-parses the assessment; IsFavorite mirrors membership in the
// favorites list and must be updated whenever either list changes.
type ScanHistoryItem struct {
	Product          Product           `json:"product"`
	SafetyAssessment *SafetyAssessment `json:"safety_assessment,omitempty"`
	ScannedAt        time.Time         `json:"scanned_at"`
	SafetyLevel      SafetyLevel       `json:"safety_level"`
	IsFavorite       bool              `json:"is_favorite"`
}

// FavoriteItem has the same record shape as a history entry; favorites
// live in their own bounded list ordered by time added.
type FavoriteItem = ScanHistoryItem

// ProductID returns the identifier of the scanned product.
func (s *ScanHistoryItem) ProductID() string {
	return s.Product.ID
}

// HistoryStats aggregates counts over the two lists.
type HistoryStats struct {
	TotalScans        int `json:"total_scans"`
	SafeProducts      int `json:"safe_products"`
	DangerousProducts int `json:"dangerous_products"`
	FavoriteCount     int `json:"favorite_count"`
}
