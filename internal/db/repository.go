// Package db provides CRUD repository operations for local application data.
package db

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/uuid"
)

// Repository provides persistence operations for all local tables.
// Frequently executed queries go through a prepared statement cache.
type Repository struct {
	db *sql.DB

	// Statements are prepared on first use and cached for reuse
	stmtCache sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// PrepareStmt gets or creates a prepared statement from cache.
// Key is the query string, value is the prepared statement.
func (r *Repository) PrepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	// Store in cache (if already stored by another goroutine, use existing)
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
// Should be called when the Repository is no longer needed.
func (r *Repository) Close() error {
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	return firstErr
}

// =====================================================
// Key-Value Operations
// =====================================================

// GetValue returns the stored value for key. Missing keys surface as
// sql.ErrNoRows.
func (r *Repository) GetValue(key string) (string, error) {
	stmt, err := r.PrepareStmt(`SELECT value FROM kv_store WHERE key = ?`)
	if err != nil {
		return "", err
	}

	var value string
	if err := stmt.QueryRow(key).Scan(&value); err != nil {
		return "", err
	}
	return value, nil
}

// SetValue stores value under key, replacing any previous value.
func (r *Repository) SetValue(key, value string) error {
	stmt, err := r.PrepareStmt(`
	INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(key, value, time.Now().Unix())
	return err
}

// DeleteValue removes key. Deleting a missing key is not an error.
func (r *Repository) DeleteValue(key string) error {
	stmt, err := r.PrepareStmt(`DELETE FROM kv_store WHERE key = ?`)
	if err != nil {
		return err
	}
	_, err = stmt.Exec(key)
	return err
}

// ListKeys returns all keys with the given prefix, ordered lexically.
func (r *Repository) ListKeys(prefix string) ([]string, error) {
	rows, err := r.db.Query(`SELECT key FROM kv_store WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// =====================================================
// Cached Product Operations
// =====================================================

// SaveCachedProduct inserts or refreshes a product cache row. Rows with
// a barcode conflict on it so repeated scans of the same product update
// in place; barcode-less rows are keyed by id and store NULL so they
// never collide with each other.
func (r *Repository) SaveCachedProduct(p *models.CachedProduct) error {
	now := time.Now().Unix()
	if p.ID == "" {
		p.ID = uuid.New()
	}
	if p.CachedAt == 0 {
		p.CachedAt = now
	}
	p.UpdatedAt = now

	conflictKey := "barcode"
	var barcode interface{}
	if p.Barcode != "" {
		barcode = p.Barcode
	} else {
		conflictKey = "id"
	}

	query := `
	INSERT INTO cached_products (id, barcode, name, brand, category, data_json,
		safety_level, image_path, cached_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(` + conflictKey + `) DO UPDATE SET
		name = excluded.name,
		brand = excluded.brand,
		category = excluded.category,
		data_json = excluded.data_json,
		safety_level = excluded.safety_level,
		image_path = CASE WHEN excluded.image_path != '' THEN excluded.image_path ELSE cached_products.image_path END,
		cached_at = excluded.cached_at,
		updated_at = excluded.updated_at
	`
	_, err := r.db.Exec(query, p.ID, barcode, p.Name, p.Brand, p.Category,
		p.DataJSON, p.SafetyLevel, p.ImagePath, p.CachedAt, p.UpdatedAt)
	return err
}

// GetCachedProduct retrieves a cached product by ID.
func (r *Repository) GetCachedProduct(id string) (*models.CachedProduct, error) {
	query := `
	SELECT id, barcode, name, brand, category, data_json, safety_level,
		   image_path, cached_at, updated_at
	FROM cached_products WHERE id = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanCachedProduct(stmt.QueryRow(id))
}

// GetCachedProductByBarcode retrieves a cached product by barcode.
func (r *Repository) GetCachedProductByBarcode(barcode string) (*models.CachedProduct, error) {
	query := `
	SELECT id, barcode, name, brand, category, data_json, safety_level,
		   image_path, cached_at, updated_at
	FROM cached_products WHERE barcode = ?
	`
	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}
	return scanCachedProduct(stmt.QueryRow(barcode))
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan code.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCachedProduct(row rowScanner) (*models.CachedProduct, error) {
	var p models.CachedProduct
	var barcode sql.NullString
	err := row.Scan(&p.ID, &barcode, &p.Name, &p.Brand, &p.Category,
		&p.DataJSON, &p.SafetyLevel, &p.ImagePath, &p.CachedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Barcode = barcode.String
	return &p, nil
}

// ListCachedProducts returns cached products ordered most recent first.
// A non-empty safetyLevel narrows the result set.
func (r *Repository) ListCachedProducts(limit, offset int, safetyLevel string) ([]*models.CachedProduct, error) {
	baseQuery := `
	SELECT id, barcode, name, brand, category, data_json, safety_level,
		   image_path, cached_at, updated_at
	FROM cached_products
	`
	orderLimit := " ORDER BY cached_at DESC LIMIT ? OFFSET ?"

	var query string
	var args []interface{}

	if safetyLevel != "" {
		query = baseQuery + " WHERE safety_level = ?" + orderLimit
		args = []interface{}{safetyLevel, limit, offset}
	} else {
		query = baseQuery + orderLimit
		args = []interface{}{limit, offset}
	}

	stmt, err := r.PrepareStmt(query)
	if err != nil {
		return nil, err
	}

	rows, err := stmt.Query(args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*models.CachedProduct
	for rows.Next() {
		p, err := scanCachedProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// CountCachedProducts returns the number of cached products.
func (r *Repository) CountCachedProducts() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM cached_products`).Scan(&count)
	return count, err
}

// DeleteCachedProduct removes a cached product by ID.
func (r *Repository) DeleteCachedProduct(id string) error {
	result, err := r.db.Exec(`DELETE FROM cached_products WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// PruneCachedProducts deletes the oldest cache rows beyond keep.
// Returns the number of rows removed.
func (r *Repository) PruneCachedProducts(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := r.db.Exec(`
	DELETE FROM cached_products WHERE id NOT IN (
		SELECT id FROM cached_products ORDER BY cached_at DESC LIMIT ?
	)`, keep)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// UpdateCachedProductImage records the local image path for a product.
func (r *Repository) UpdateCachedProductImage(id, imagePath string) error {
	result, err := r.db.Exec(`UPDATE cached_products SET image_path = ?, updated_at = ? WHERE id = ?`,
		imagePath, time.Now().Unix(), id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// =====================================================
// Sync Outbox Operations
// =====================================================

// EnqueueOutboxEvent appends a new event to the sync outbox.
func (r *Repository) EnqueueOutboxEvent(event *models.OutboxEvent) error {
	event.ID = models.UUID(uuid.New())
	now := time.Now().Unix()
	event.CreatedAt = now
	event.UpdatedAt = now
	if event.Status == "" {
		event.Status = models.OutboxPending
	}
	if event.MaxRetries == 0 {
		event.MaxRetries = 5
	}

	query := `
	INSERT INTO sync_outbox (id, user_id, event_type, payload, retry_count,
		max_retries, next_retry_at, status, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, event.ID, event.UserID, event.EventType,
		string(event.Payload), event.RetryCount, event.MaxRetries,
		event.NextRetryAt, event.Status, event.CreatedAt, event.UpdatedAt)
	return err
}

// DueOutboxEvents returns pending events whose retry time has arrived,
// oldest first.
func (r *Repository) DueOutboxEvents(now int64, limit int) ([]*models.OutboxEvent, error) {
	query := `
	SELECT id, user_id, event_type, payload, retry_count, max_retries,
		   next_retry_at, status, created_at, updated_at
	FROM sync_outbox
	WHERE status = ? AND next_retry_at <= ?
	ORDER BY created_at ASC
	LIMIT ?
	`
	rows, err := r.db.Query(query, models.OutboxPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.OutboxEvent
	for rows.Next() {
		var e models.OutboxEvent
		var payload string
		err := rows.Scan(&e.ID, &e.UserID, &e.EventType, &payload, &e.RetryCount,
			&e.MaxRetries, &e.NextRetryAt, &e.Status, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		e.Payload = []byte(payload)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// UpdateOutboxEvent persists status and retry bookkeeping for an event.
func (r *Repository) UpdateOutboxEvent(event *models.OutboxEvent) error {
	event.Touch()
	query := `
	UPDATE sync_outbox
	SET retry_count = ?, next_retry_at = ?, status = ?, updated_at = ?
	WHERE id = ?
	`
	result, err := r.db.Exec(query, event.RetryCount, event.NextRetryAt,
		event.Status, event.UpdatedAt, event.ID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteOutboxEvent removes an event, typically after completion.
func (r *Repository) DeleteOutboxEvent(id string) error {
	_, err := r.db.Exec(`DELETE FROM sync_outbox WHERE id = ?`, id)
	return err
}

// CountOutboxByStatus returns the number of events in a given status.
func (r *Repository) CountOutboxByStatus(status string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sync_outbox WHERE status = ?`, status).Scan(&count)
	return count, err
}

// RequeueInProgressOutboxEvents flips in_progress rows back to pending.
// A crash between claiming a batch and finishing it leaves rows
// stranded in_progress; this runs once at startup to reclaim them.
func (r *Repository) RequeueInProgressOutboxEvents() (int, error) {
	result, err := r.db.Exec(`UPDATE sync_outbox SET status = ?, updated_at = ? WHERE status = ?`,
		models.OutboxPending, time.Now().Unix(), models.OutboxInProgress)
	if err != nil {
		return 0, err
	}
	requeued, err := result.RowsAffected()
	return int(requeued), err
}

// PurgeCompletedOutboxEvents removes completed events older than cutoff.
func (r *Repository) PurgeCompletedOutboxEvents(cutoff int64) (int, error) {
	result, err := r.db.Exec(`DELETE FROM sync_outbox WHERE status = ? AND updated_at < ?`,
		models.OutboxCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// =====================================================
// Backup Credential Operations
// =====================================================

// GetBackupCredentials retrieves the currently enabled backup credentials.
func (r *Repository) GetBackupCredentials() (*models.BackupCredential, error) {
	query := `SELECT id, provider, endpoint, bucket_name, region, access_key_encrypted,
			  secret_key_encrypted, is_enabled, created_at, updated_at
			  FROM backup_credentials WHERE is_enabled = 1 LIMIT 1`

	var cred models.BackupCredential
	err := r.db.QueryRow(query).Scan(
		&cred.ID, &cred.Provider, &cred.Endpoint, &cred.BucketName, &cred.Region,
		&cred.AccessKeyEncrypted, &cred.SecretKeyEncrypted,
		&cred.IsEnabled, &cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

// SaveBackupCredential saves a new backup credential configuration.
func (r *Repository) SaveBackupCredential(cred *models.BackupCredential) error {
	query := `INSERT INTO backup_credentials (id, provider, endpoint, bucket_name, region,
			  access_key_encrypted, secret_key_encrypted, is_enabled, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	cred.ID = models.UUID(uuid.New())
	now := time.Now().Unix()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	_, err := r.db.Exec(query,
		cred.ID, cred.Provider, cred.Endpoint, cred.BucketName, cred.Region,
		cred.AccessKeyEncrypted, cred.SecretKeyEncrypted,
		cred.IsEnabled, cred.CreatedAt, cred.UpdatedAt,
	)
	return err
}

// DeleteBackupCredential deletes a backup credential by ID.
func (r *Repository) DeleteBackupCredential(id string) error {
	_, err := r.db.Exec(`DELETE FROM backup_credentials WHERE id = ?`, id)
	return err
}

// DisableAllBackupCredentials disables all backup credentials (used when
// setting a new one).
func (r *Repository) DisableAllBackupCredentials() error {
	_, err := r.db.Exec(`UPDATE backup_credentials SET is_enabled = 0 WHERE is_enabled = 1`)
	return err
}

// =====================================================
// Report Archive Operations
// =====================================================

// CreateReportArchive records a completed export archive.
func (r *Repository) CreateReportArchive(archive *models.ReportArchive) error {
	archive.ID = models.UUID(uuid.New())
	archive.CreatedAt = time.Now().Unix()

	query := `
	INSERT INTO report_archives (id, file_path, checksum, size_bytes, item_count, is_encrypted, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.Exec(query, archive.ID, archive.FilePath, archive.Checksum,
		archive.SizeBytes, archive.ItemCount, archive.IsEncrypted, archive.CreatedAt)
	return err
}

// ListReportArchives returns archive records newest first.
func (r *Repository) ListReportArchives() ([]*models.ReportArchive, error) {
	query := `
	SELECT id, file_path, checksum, size_bytes, item_count, is_encrypted, created_at
	FROM report_archives ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []*models.ReportArchive
	for rows.Next() {
		var a models.ReportArchive
		err := rows.Scan(&a.ID, &a.FilePath, &a.Checksum, &a.SizeBytes,
			&a.ItemCount, &a.IsEncrypted, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		archives = append(archives, &a)
	}
	return archives, rows.Err()
}

// DeleteReportArchive removes an archive record by ID.
func (r *Repository) DeleteReportArchive(id string) error {
	result, err := r.db.Exec(`DELETE FROM report_archives WHERE id = ?`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// StaleReportArchives returns records beyond the keep newest, oldest
// first, so callers can remove their files before deleting the rows.
func (r *Repository) StaleReportArchives(keep int) ([]*models.ReportArchive, error) {
	if keep < 0 {
		keep = 0
	}
	query := `
	SELECT id, file_path, checksum, size_bytes, item_count, is_encrypted, created_at
	FROM report_archives
	WHERE id NOT IN (SELECT id FROM report_archives ORDER BY created_at DESC LIMIT ?)
	ORDER BY created_at ASC
	`
	rows, err := r.db.Query(query, keep)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var archives []*models.ReportArchive
	for rows.Next() {
		var a models.ReportArchive
		err := rows.Scan(&a.ID, &a.FilePath, &a.Checksum, &a.SizeBytes,
			&a.ItemCount, &a.IsEncrypted, &a.CreatedAt)
		if err != nil {
			return nil, err
		}
		archives = append(archives, &a)
	}
	return archives, rows.Err()
}
