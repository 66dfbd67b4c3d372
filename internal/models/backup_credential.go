// Package models provides data model definitions for the scanner core.
package models

import (
	"time"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/crypto"
)

// BackupCredential holds encrypted S3-compatible storage configuration
// for report archive uploads.
// AccessKeyEncrypted and SecretKeyEncrypted are never exposed in JSON responses.
type BackupCredential struct {
	ID                 UUID   `db:"id" json:"id"`
	Provider           string `db:"provider" json:"provider"` // aws, minio, r2
	Endpoint           string `db:"endpoint" json:"endpoint"`
	BucketName         string `db:"bucket_name" json:"bucket_name"`
	Region             string `db:"region" json:"region,omitempty"`
	AccessKeyEncrypted string `db:"access_key_encrypted" json:"-"` // Never expose
	SecretKeyEncrypted string `db:"secret_key_encrypted" json:"-"` // Never expose
	IsEnabled          bool   `db:"is_enabled" json:"is_enabled"`
	CreatedAt          int64  `db:"created_at" json:"created_at"`
	UpdatedAt          int64  `db:"updated_at" json:"updated_at"`
}

// TableName returns the table name for BackupCredential.
func (BackupCredential) TableName() string {
	return "backup_credentials"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (b *BackupCredential) CreatedAtTime() time.Time {
	return time.Unix(b.CreatedAt, 0)
}

// UpdatedAtTime returns the UpdatedAt as time.Time.
func (b *BackupCredential) UpdatedAtTime() time.Time {
	return time.Unix(b.UpdatedAt, 0)
}

// SetKeys encrypts and stores the access/secret key pair at rest.
func (b *BackupCredential) SetKeys(accessKey, secretKey, machineID string) error {
	encAccess, err := crypto.EncryptSecret(accessKey, machineID)
	if err != nil {
		return err
	}
	encSecret, err := crypto.EncryptSecret(secretKey, machineID)
	if err != nil {
		return err
	}
	b.AccessKeyEncrypted = encAccess
	b.SecretKeyEncrypted = encSecret
	return nil
}

// Keys decrypts and returns the access/secret key pair.
func (b *BackupCredential) Keys(machineID string) (accessKey, secretKey string, err error) {
	if b.AccessKeyEncrypted != "" {
		accessKey, err = crypto.DecryptSecret(b.AccessKeyEncrypted, machineID)
		if err != nil {
			return "", "", err
		}
	}
	if b.SecretKeyEncrypted != "" {
		secretKey, err = crypto.DecryptSecret(b.SecretKeyEncrypted, machineID)
		if err != nil {
			return "", "", err
		}
	}
	return accessKey, secretKey, nil
}

// HasKeys returns true if an encrypted key pair is stored.
func (b *BackupCredential) HasKeys() bool {
	return b.AccessKeyEncrypted != "" && b.SecretKeyEncrypted != ""
}
