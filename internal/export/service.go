// Package export builds portable dietary report archives and restores
// them. An archive is a tar.gz holding manifest.json (metadata plus the
// data checksum) and data.json (profile snapshot, scan history,
// favorites, cached products), optionally sealed with a password.
package export

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/backend"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/export/crypto"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/telemetry"
)

const (
	manifestName = "manifest.json"
	dataName     = "data.json"

	// archiveVersion is bumped when the data.json layout changes.
	archiveVersion = "1"

	// maxProductRows bounds how many cached products one archive
	// carries.
	maxProductRows = 1000

	// maxEntrySize caps decompression of a single archive entry.
	maxEntrySize = 32 << 20
)

// ArchiveStore is the persistence surface exports need.
// *db.Repository implements it.
type ArchiveStore interface {
	CreateReportArchive(archive *models.ReportArchive) error
	ListCachedProducts(limit, offset int, safetyLevel string) ([]*models.CachedProduct, error)
	SaveCachedProduct(p *models.CachedProduct) error
}

// Lists is the scan activity source and restore target.
// *history.Store implements it.
type Lists interface {
	History() []models.ScanHistoryItem
	Favorites() []models.FavoriteItem
	Restore(history []models.ScanHistoryItem, favorites []models.FavoriteItem)
}

// ProfileSource supplies the account snapshot included in archives.
// Optional; services.ProfileService implements it.
type ProfileSource interface {
	Profile() (backend.Profile, bool)
}

// ExportConfig controls one export run.
type ExportConfig struct {
	// OutputPath overrides the timestamped default inside the export
	// directory.
	OutputPath string
	// Password encrypts the archive when non-empty. It is used for key
	// derivation only and never stored.
	Password string
}

// ImportConfig controls one import run.
type ImportConfig struct {
	ArchivePath string
	Password    string
}

// Manifest is the metadata entry of an archive.
type Manifest struct {
	Version       string    `json:"version"`
	ExportedAt    time.Time `json:"exported_at"`
	HistoryCount  int       `json:"history_count"`
	FavoriteCount int       `json:"favorite_count"`
	ProductCount  int       `json:"product_count"`
	Checksum      string    `json:"checksum"` // SHA-256 of data.json
	Encrypted     bool      `json:"encrypted"`
}

// ExportResult summarizes a completed export.
type ExportResult struct {
	FilePath  string
	SizeBytes int64
	ItemCount int
	Checksum  string
	Encrypted bool
	Duration  time.Duration
}

// ImportResult summarizes a completed import.
type ImportResult struct {
	HistoryCount    int
	FavoriteCount   int
	ProductCount    int
	SkippedProducts int
	Duration        time.Duration
}

// archiveData is the data.json payload.
type archiveData struct {
	Profile   *backend.Profile         `json:"profile,omitempty"`
	History   []models.ScanHistoryItem `json:"history"`
	Favorites []models.FavoriteItem    `json:"favorites"`
	Products  []*models.CachedProduct  `json:"products,omitempty"`
}

// Service assembles and restores report archives.
type Service struct {
	repo     ArchiveStore
	lists    Lists
	profiles ProfileSource
	dir      string
	logger   *logging.Logger
}

// NewService builds an export service writing into dir (default
// "exports").
func NewService(repo ArchiveStore, lists Lists, dir string) *Service {
	if dir == "" {
		dir = "exports"
	}
	return &Service{
		repo:   repo,
		lists:  lists,
		dir:    dir,
		logger: logging.Get().WithComponent("export"),
	}
}

// SetProfileSource attaches the account snapshot provider. Archives
// built without one simply omit the profile.
func (s *Service) SetProfileSource(src ProfileSource) {
	s.profiles = src
}

// Export writes a report archive and records it for retention
// bookkeeping.
func (s *Service) Export(config *ExportConfig) (*ExportResult, error) {
	start := time.Now()
	if config == nil {
		config = &ExportConfig{}
	}
	if config.Password != "" {
		if err := crypto.ValidatePassword(config.Password); err != nil {
			return nil, errors.Wrap(errors.ErrInvalid, "export password rejected", err)
		}
	}

	data := s.collect()
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "encode report data", err)
	}
	checksum := contentChecksum(dataJSON)

	manifest := Manifest{
		Version:       archiveVersion,
		ExportedAt:    start.UTC(),
		HistoryCount:  len(data.History),
		FavoriteCount: len(data.Favorites),
		ProductCount:  len(data.Products),
		Checksum:      checksum,
		Encrypted:     config.Password != "",
	}
	manifestJSON, err := json.MarshalIndent(&manifest, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "encode manifest", err)
	}

	archive, err := buildArchive(manifestJSON, dataJSON)
	if err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "assemble archive", err)
	}
	if config.Password != "" {
		archive, err = crypto.EncryptArchive(archive, config.Password)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCryptoFailed, "encrypt archive", err)
		}
	}

	outputPath := config.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(s.dir,
			fmt.Sprintf("dietary_report_%s.tar.gz", start.Format("20060102_150405")))
	}
	if err := writeFileAtomic(outputPath, archive); err != nil {
		return nil, errors.Wrap(errors.ErrExportFailed, "write archive", err)
	}

	itemCount := len(data.History) + len(data.Favorites)
	record := &models.ReportArchive{
		FilePath:    outputPath,
		Checksum:    checksum,
		SizeBytes:   int64(len(archive)),
		ItemCount:   itemCount,
		IsEncrypted: manifest.Encrypted,
	}
	// The file on disk is the deliverable; a failed bookkeeping row
	// only degrades retention pruning.
	if err := s.repo.CreateReportArchive(record); err != nil {
		s.logger.Warn("failed to record export archive", map[string]interface{}{
			"path":  outputPath,
			"error": err.Error(),
		})
	}

	s.logger.Info("report archive exported", map[string]interface{}{
		"path":      outputPath,
		"bytes":     len(archive),
		"items":     itemCount,
		"encrypted": manifest.Encrypted,
	})
	telemetry.Get().Record(telemetry.EventExportCompleted, map[string]interface{}{
		"items":       itemCount,
		"encrypted":   manifest.Encrypted,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return &ExportResult{
		FilePath:  outputPath,
		SizeBytes: int64(len(archive)),
		ItemCount: itemCount,
		Checksum:  checksum,
		Encrypted: manifest.Encrypted,
		Duration:  time.Since(start),
	}, nil
}

// Import restores an archive. The archive is fully parsed and verified
// before any local state changes, so a bad archive never half-imports.
func (s *Service) Import(config *ImportConfig) (*ImportResult, error) {
	start := time.Now()
	if config == nil || config.ArchivePath == "" {
		return nil, errors.New(errors.ErrInvalid, "no archive path given")
	}

	raw, err := os.ReadFile(config.ArchivePath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrImportFailed, "read archive", err)
	}

	if crypto.IsEncrypted(raw) {
		if config.Password == "" {
			return nil, errors.New(errors.ErrInvalidPassword, "archive is encrypted; password required")
		}
		raw, err = crypto.DecryptArchive(raw, config.Password)
		if err != nil {
			if stderrors.Is(err, crypto.ErrInvalidPassword) {
				return nil, errors.Wrap(errors.ErrInvalidPassword, "decrypt archive", err)
			}
			return nil, errors.Wrap(errors.ErrCorruptedArchive, "decrypt archive", err)
		}
	}

	entries, err := readArchive(raw)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCorruptedArchive, "unpack archive", err)
	}

	manifestJSON, ok := entries[manifestName]
	if !ok {
		return nil, errors.New(errors.ErrCorruptedArchive, "archive has no manifest")
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestJSON, &manifest); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptedArchive, "parse manifest", err)
	}
	if manifest.Version != archiveVersion {
		return nil, errors.New(errors.ErrInvalid,
			fmt.Sprintf("unsupported archive version %q", manifest.Version))
	}

	dataJSON, ok := entries[dataName]
	if !ok {
		return nil, errors.New(errors.ErrCorruptedArchive, "archive has no data file")
	}
	if manifest.Checksum == "" || contentChecksum(dataJSON) != manifest.Checksum {
		return nil, errors.New(errors.ErrCorruptedArchive, "data does not match manifest checksum")
	}

	var data archiveData
	if err := json.Unmarshal(dataJSON, &data); err != nil {
		return nil, errors.Wrap(errors.ErrCorruptedArchive, "parse report data", err)
	}

	s.lists.Restore(data.History, data.Favorites)

	restored, skipped := 0, 0
	for _, row := range data.Products {
		// Thumbnails do not travel in the archive; the image
		// side-channel refetches them.
		row.ImagePath = ""
		if err := s.repo.SaveCachedProduct(row); err != nil {
			skipped++
			s.logger.Warn("skipped cached product on import", map[string]interface{}{
				"product_id": row.ID,
				"error":      err.Error(),
			})
			continue
		}
		restored++
	}

	s.logger.Info("report archive imported", map[string]interface{}{
		"path":      config.ArchivePath,
		"history":   len(data.History),
		"favorites": len(data.Favorites),
		"products":  restored,
	})
	return &ImportResult{
		HistoryCount:    len(data.History),
		FavoriteCount:   len(data.Favorites),
		ProductCount:    restored,
		SkippedProducts: skipped,
		Duration:        time.Since(start),
	}, nil
}

// collect snapshots everything an archive carries.
func (s *Service) collect() archiveData {
	data := archiveData{
		History:   s.lists.History(),
		Favorites: s.lists.Favorites(),
	}
	if s.profiles != nil {
		if profile, ok := s.profiles.Profile(); ok {
			data.Profile = &profile
		}
	}
	products, err := s.repo.ListCachedProducts(maxProductRows, 0, "")
	if err != nil {
		s.logger.Warn("export proceeding without cached products", map[string]interface{}{
			"error": err.Error(),
		})
		return data
	}
	data.Products = products
	return data
}

// =====================================================
// Archive assembly
// =====================================================

// buildArchive packs the two entries into a tar.gz.
func buildArchive(manifestJSON, dataJSON []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gzw)

	entries := []struct {
		name string
		body []byte
	}{
		{manifestName, manifestJSON},
		{dataName, dataJSON},
	}
	for _, entry := range entries {
		header := &tar.Header{
			Name:    entry.name,
			Mode:    0o644,
			Size:    int64(len(entry.body)),
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("write %s header: %w", entry.name, err)
		}
		if _, err := tw.Write(entry.body); err != nil {
			return nil, fmt.Errorf("write %s: %w", entry.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}
	return buf.Bytes(), nil
}

// readArchive extracts the known entries into memory. Unknown entries
// are ignored and nothing touches the filesystem, so hostile member
// paths are inert.
func readArchive(raw []byte) (map[string][]byte, error) {
	gzr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer gzr.Close()

	entries := map[string][]byte{}
	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar entry: %w", err)
		}
		name := path.Clean(header.Name)
		if name != manifestName && name != dataName {
			continue
		}
		body, err := io.ReadAll(io.LimitReader(tr, maxEntrySize+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(body) > maxEntrySize {
			return nil, fmt.Errorf("entry %s exceeds %d bytes", name, maxEntrySize)
		}
		entries[name] = body
	}
	return entries, nil
}

// writeFileAtomic writes via a temp file and rename so a crash never
// leaves a half-written archive at the final path.
func writeFileAtomic(target string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp archive: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize archive: %w", err)
	}
	return nil
}

func contentChecksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
