// Package offline maintains the local product cache that lets previously
// scanned items resolve without network access.
package offline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// maxImageBytes caps how much of a product image download is read.
const maxImageBytes = 10 << 20

// Fetcher retrieves a product image by URL. The returned reader must be
// closed by the caller.
type Fetcher interface {
	Fetch(ctx context.Context, imageURL string) (io.ReadCloser, error)
}

// HTTPFetcher fetches images over HTTP(S).
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher with connection pooling suitable for
// occasional image downloads.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Fetch downloads the image at imageURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, imageURL string) (io.ReadCloser, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s", parsed.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return resp.Body, nil
}

// ImageStore persists product thumbnails content-addressed by SHA-256,
// sharded into two-character prefix directories.
type ImageStore struct {
	baseDir string
}

// NewImageStore creates an ImageStore rooted at baseDir.
func NewImageStore(baseDir string) (*ImageStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &ImageStore{baseDir: baseDir}, nil
}

// StoreThumbnail decodes the image in r (PNG, JPEG, GIF, or WebP), fits
// it within maxPx on the longer side, and writes it as a JPEG under a
// content-addressed path. Returns the stored file path. Identical
// thumbnails deduplicate to the same file.
func (s *ImageStore) StoreThumbnail(r io.Reader, maxPx int) (string, error) {
	img, _, err := image.Decode(io.LimitReader(r, maxImageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	thumb := imaging.Fit(img, maxPx, maxPx, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	sum := sha256.Sum256(buf.Bytes())
	hash := hex.EncodeToString(sum[:])

	dir := filepath.Join(s.baseDir, hash[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create shard directory: %w", err)
	}

	path := filepath.Join(dir, hash+".jpg")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write thumbnail: %w", err)
	}
	return path, nil
}

// Cleanup removes stored thumbnails whose paths are not in referenced.
// Returns the number of files removed.
func (s *ImageStore) Cleanup(referenced map[string]bool) (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read image directory: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) != 2 {
			continue
		}
		shardDir := filepath.Join(s.baseDir, entry.Name())
		files, err := os.ReadDir(shardDir)
		if err != nil {
			continue
		}
		for _, file := range files {
			if file.IsDir() {
				continue
			}
			path := filepath.Join(shardDir, file.Name())
			if !referenced[path] {
				if err := os.Remove(path); err == nil {
					removed++
				}
			}
		}
		// Drop the shard directory once empty.
		if rest, _ := os.ReadDir(shardDir); len(rest) == 0 {
			os.Remove(shardDir)
		}
	}
	return removed, nil
}
