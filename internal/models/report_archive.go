// Package models provides data model definitions for the scanner core.
package models

import "time"

// ReportArchive holds metadata for exported dietary report archives.
type ReportArchive struct {
	ID          UUID   `db:"id" json:"id"`
	FilePath    string `db:"file_path" json:"file_path"`
	Checksum    string `db:"checksum" json:"checksum"` // SHA-256
	SizeBytes   int64  `db:"size_bytes" json:"size_bytes"`
	ItemCount   int    `db:"item_count" json:"item_count"`
	IsEncrypted bool   `db:"is_encrypted" json:"is_encrypted"`
	CreatedAt   int64  `db:"created_at" json:"created_at"`
}

// TableName returns the table name for ReportArchive.
func (ReportArchive) TableName() string {
	return "report_archives"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *ReportArchive) CreatedAtTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}
