package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
)

// keyPrefix roots every archive object.
const keyPrefix = "archives/"

// Uploader stores archives under content-addressed keys:
// archives/{hash[0:2]}/{hash}.tar.gz. Identical archives land on the
// same key, so re-uploads are free and integrity is checkable from the
// key alone.
type Uploader struct {
	store  ObjectStore
	logger *logging.Logger
}

// NewUploader wraps an object store.
func NewUploader(store ObjectStore) *Uploader {
	return &Uploader{
		store:  store,
		logger: logging.Get().WithComponent("backup"),
	}
}

// Upload stores an archive and returns its key. An archive already
// present remotely is not re-sent.
func (u *Uploader) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New(errors.ErrInvalid, "refusing to upload an empty archive")
	}
	key := archiveKey(data)

	existing, err := u.store.List(ctx, key)
	if err == nil {
		for _, k := range existing {
			if k == key {
				u.logger.Debug("archive already uploaded", map[string]interface{}{"key": key})
				return key, nil
			}
		}
	}

	if err := u.store.Upload(ctx, key, data); err != nil {
		return "", errors.Wrap(errors.ErrBackupFailed, "upload archive", err)
	}
	u.logger.Info("archive uploaded", map[string]interface{}{
		"key":   key,
		"bytes": len(data),
	})
	return key, nil
}

// UploadFile reads an archive from disk and uploads it.
func (u *Uploader) UploadFile(ctx context.Context, archivePath string) (string, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", errors.Wrap(errors.ErrBackupFailed, "read archive for upload", err)
	}
	return u.Upload(ctx, data)
}

// Fetch downloads an archive and verifies its content against the
// hash embedded in the key.
func (u *Uploader) Fetch(ctx context.Context, key string) ([]byte, error) {
	data, err := u.store.Download(ctx, key)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBackupFailed, "download archive", err)
	}

	wantHash, ok := hashFromKey(key)
	if ok && contentHash(data) != wantHash {
		return nil, errors.New(errors.ErrCorruptedArchive,
			fmt.Sprintf("archive %s does not match its content hash", key))
	}
	return data, nil
}

// Keys lists the stored archive keys.
func (u *Uploader) Keys(ctx context.Context) ([]string, error) {
	keys, err := u.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrBackupFailed, "list archives", err)
	}
	return keys, nil
}

// Remove deletes a stored archive.
func (u *Uploader) Remove(ctx context.Context, key string) error {
	if err := u.store.Delete(ctx, key); err != nil {
		return errors.Wrap(errors.ErrBackupFailed, "delete archive", err)
	}
	return nil
}

// contentHash returns the SHA-256 of data in hex.
func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// archiveKey derives the object key for an archive's content.
func archiveKey(data []byte) string {
	hash := contentHash(data)
	return fmt.Sprintf("%s%s/%s.tar.gz", keyPrefix, hash[:2], hash)
}

// hashFromKey recovers the content hash from an archive key. Keys not
// produced by archiveKey report false.
func hashFromKey(key string) (string, bool) {
	name := path.Base(key)
	hash := strings.TrimSuffix(name, ".tar.gz")
	if len(hash) != sha256.Size*2 || hash == name {
		return "", false
	}
	return hash, true
}
