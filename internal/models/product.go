// Package models provides data model definitions for the scanner core.
package models

import (
	"database/sql/driver"
	"strings"
	"time"
)

// UUID is a wrapper around string for UUID v4 type safety.
type UUID string

// Value implements driver.Valuer for UUID.
func (u UUID) Value() (driver.Value, error) {
	return string(u), nil
}

// Scan implements sql.Scanner for UUID.
func (u *UUID) Scan(value interface{}) error {
	if value == nil {
		*u = ""
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*u = UUID(v)
	case string:
		*u = UUID(v)
	}
	return nil
}

// String returns the string representation of the UUID.
func (u UUID) String() string {
	return string(u)
}

// Product represents a food product as returned by the backend or a scan.
// Brand and Category are optional; search paths must tolerate their absence.
type Product struct {
	ID          string `json:"id"`
	Barcode     string `json:"barcode,omitempty"`
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Category    string `json:"category,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Ingredients string `json:"ingredients,omitempty"` // Comma-separated
	Allergens   string `json:"allergens,omitempty"`   // Comma-separated
}

// AllergenList splits the comma-separated allergen field.
func (p *Product) AllergenList() []string {
	if p.Allergens == "" {
		return nil
	}
	parts := strings.Split(p.Allergens, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// CachedProduct is a locally persisted copy of a product record, kept so
// previously scanned items resolve without network access.
type CachedProduct struct {
	ID          string `db:"id" json:"id"`
	Barcode     string `db:"barcode" json:"barcode,omitempty"`
	Name        string `db:"name" json:"name"`
	Brand       string `db:"brand" json:"brand,omitempty"`
	Category    string `db:"category" json:"category,omitempty"`
	DataJSON    string `db:"data_json" json:"-"` // Full product + assessment snapshot
	SafetyLevel string `db:"safety_level" json:"safety_level"`
	ImagePath   string `db:"image_path" json:"image_path,omitempty"`
	CachedAt    int64  `db:"cached_at" json:"cached_at"`
	UpdatedAt   int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for CachedProduct.
func (CachedProduct) TableName() string {
	return "cached_products"
}

// CachedAtTime returns the CachedAt as time.Time.
func (c *CachedProduct) CachedAtTime() time.Time {
	return time.Unix(c.CachedAt, 0)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (c *CachedProduct) UpdatedAtTime() time.Time {
	return time.Unix(c.UpdatedAt, 0)
}

// Touch updates the UpdatedAt timestamp.
func (c *CachedProduct) Touch() {
	c.UpdatedAt = time.Now().Unix()
}
