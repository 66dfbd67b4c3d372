package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/db"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/uuid"
)

// Config holds offline cache settings.
type Config struct {
	// MaxItems is the prune threshold for cached product rows.
	MaxItems int

	// ThumbnailMaxPx bounds the longer side of stored product images.
	ThumbnailMaxPx int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxItems:       200,
		ThumbnailMaxPx: 512,
	}
}

// snapshot is the full record stored in the data_json column.
type snapshot struct {
	Product    *models.Product          `json:"product"`
	Assessment *models.SafetyAssessment `json:"assessment,omitempty"`
}

// Cache stores product records locally so earlier scans resolve without
// network access. Writes are idempotent per product; an optional image
// side-channel downloads and thumbnails product photos in the background.
type Cache struct {
	repo   *db.Repository
	config *Config
	logger *logging.Logger

	images  *ImageStore
	fetcher Fetcher

	wg sync.WaitGroup
}

// NewCache creates a Cache over the given repository.
func NewCache(repo *db.Repository, config *Config) *Cache {
	if config == nil {
		config = DefaultConfig()
	}
	return &Cache{
		repo:   repo,
		config: config,
		logger: logging.Get().WithComponent("offline"),
	}
}

// EnableImages turns on the image side-channel. Without it, products
// cache fine but image URLs are ignored.
func (c *Cache) EnableImages(store *ImageStore, fetcher Fetcher) {
	c.images = store
	c.fetcher = fetcher
}

// CacheProduct saves a product record with its latest assessment.
// Re-caching an existing product refreshes it in place. When the image
// side-channel is enabled and the product carries an image URL, the
// download runs on a detached goroutine and its failure is only logged.
func (c *Cache) CacheProduct(product *models.Product, assessment *models.SafetyAssessment) error {
	if product == nil {
		return errors.New(errors.ErrInvalid, "product is nil")
	}
	if product.ID == "" && product.Barcode == "" {
		return errors.New(errors.ErrInvalid, "product has no identifier")
	}

	data, err := json.Marshal(snapshot{Product: product, Assessment: assessment})
	if err != nil {
		return errors.Wrap(errors.ErrCacheWrite, "failed to encode product snapshot", err)
	}

	row := &models.CachedProduct{
		ID:          uuid.OrNew(product.ID),
		Barcode:     product.Barcode,
		Name:        product.Name,
		Brand:       product.Brand,
		Category:    product.Category,
		DataJSON:    string(data),
		SafetyLevel: string(assessment.Level()),
	}
	if err := c.repo.SaveCachedProduct(row); err != nil {
		return errors.Wrap(errors.ErrCacheWrite, "failed to save product", err)
	}

	c.enforceCap()
	c.maybeFetchImage(row.ID, product.ImageURL)
	return nil
}

// Product returns the cached record for a product id.
func (c *Cache) Product(id string) (*models.Product, *models.SafetyAssessment, error) {
	row, err := c.repo.GetCachedProduct(id)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.New(errors.ErrCacheNotFound, "product not cached: "+id)
		}
		return nil, nil, errors.Wrap(errors.ErrDatabase, "failed to read product cache", err)
	}
	return decodeSnapshot(row)
}

// ProductByBarcode returns the cached record for a barcode.
func (c *Cache) ProductByBarcode(barcode string) (*models.Product, *models.SafetyAssessment, error) {
	row, err := c.repo.GetCachedProductByBarcode(barcode)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil, errors.New(errors.ErrCacheNotFound, "barcode not cached: "+barcode)
		}
		return nil, nil, errors.Wrap(errors.ErrDatabase, "failed to read product cache", err)
	}
	return decodeSnapshot(row)
}

func decodeSnapshot(row *models.CachedProduct) (*models.Product, *models.SafetyAssessment, error) {
	var snap snapshot
	if err := json.Unmarshal([]byte(row.DataJSON), &snap); err != nil {
		return nil, nil, errors.Wrap(errors.ErrInternal, "corrupt cache snapshot", err)
	}
	if snap.Product == nil {
		return nil, nil, errors.New(errors.ErrInternal, "cache snapshot has no product")
	}
	// The stored row may have gained an image the snapshot predates.
	if row.ImagePath != "" {
		snap.Product.ImageURL = row.ImagePath
	}
	return snap.Product, snap.Assessment, nil
}

// Search runs a full-text search over cached products.
func (c *Cache) Search(opts db.SearchOptions) (*db.SearchResponse, error) {
	return c.repo.SearchProducts(&opts)
}

// Count returns the number of cached products.
func (c *Cache) Count() (int, error) {
	return c.repo.CountCachedProducts()
}

// Prune trims the cache to at most max rows, oldest out first, and
// removes thumbnails no remaining row references.
func (c *Cache) Prune(max int) (int, error) {
	removed, err := c.repo.PruneCachedProducts(max)
	if err != nil {
		return 0, errors.Wrap(errors.ErrDatabase, "failed to prune product cache", err)
	}
	if removed > 0 && c.images != nil {
		c.cleanupImages()
	}
	return removed, nil
}

// Close waits for in-flight image downloads to finish.
func (c *Cache) Close() {
	c.wg.Wait()
}

// enforceCap prunes after writes once the row count passes the limit.
// Failures here never surface to the caller.
func (c *Cache) enforceCap() {
	count, err := c.repo.CountCachedProducts()
	if err != nil || count <= c.config.MaxItems {
		return
	}
	if _, err := c.repo.PruneCachedProducts(c.config.MaxItems); err != nil {
		c.logger.Warn("cache prune failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// maybeFetchImage starts a detached download of the product image. The
// cache row is updated with the stored path on success.
func (c *Cache) maybeFetchImage(productID, imageURL string) {
	if c.images == nil || c.fetcher == nil || imageURL == "" {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		body, err := c.fetcher.Fetch(ctx, imageURL)
		if err != nil {
			c.logger.Warn("product image fetch failed", map[string]interface{}{
				"product_id": productID,
				"url":        imageURL,
				"error":      err.Error(),
			})
			return
		}
		defer body.Close()

		path, err := c.images.StoreThumbnail(body, c.config.ThumbnailMaxPx)
		if err != nil {
			c.logger.Warn("product image store failed", map[string]interface{}{
				"product_id": productID,
				"error":      err.Error(),
			})
			return
		}

		if err := c.repo.UpdateCachedProductImage(productID, path); err != nil {
			// The row may have been pruned while the download ran.
			c.logger.Debug("product image path not recorded", map[string]interface{}{
				"product_id": productID,
				"error":      err.Error(),
			})
		}
	}()
}

// cleanupImages removes thumbnails not referenced by any cache row.
func (c *Cache) cleanupImages() {
	rows, err := c.repo.ListCachedProducts(-1, 0, "")
	if err != nil {
		c.logger.Warn("image cleanup skipped", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	referenced := make(map[string]bool, len(rows))
	for _, row := range rows {
		if row.ImagePath != "" {
			referenced[row.ImagePath] = true
		}
	}
	if _, err := c.images.Cleanup(referenced); err != nil {
		c.logger.Warn("image cleanup failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
