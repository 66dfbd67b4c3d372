package backup

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/crypto"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/errors"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/logging"
	"github.com/steven-d-pennington/restricted-diet-app-sub003/internal/models"
)

// CredentialStore is the persistence surface for backup credentials.
// *db.Repository implements it.
type CredentialStore interface {
	GetBackupCredentials() (*models.BackupCredential, error)
	SaveBackupCredential(cred *models.BackupCredential) error
	DisableAllBackupCredentials() error
}

// Target describes a destination to configure. Endpoint carries the
// MinIO URL or the R2 account id; AWS targets use Region instead.
type Target struct {
	Provider  string `json:"provider"`
	Endpoint  string `json:"endpoint,omitempty"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
}

// Service owns the configured backup target: credentials encrypted at
// rest, one enabled target at a time, uploaders built on demand.
type Service struct {
	repo      CredentialStore
	machineID string
	logger    *logging.Logger
}

// NewService builds a service over a credential store.
func NewService(repo CredentialStore) *Service {
	return &Service{
		repo:      repo,
		machineID: crypto.MachineID(),
		logger:    logging.Get().WithComponent("backup.service"),
	}
}

// Configure validates a target, encrypts its key pair, and makes it
// the single enabled destination.
func (s *Service) Configure(target Target) error {
	if target.Bucket == "" {
		return errors.New(errors.ErrInvalid, "backup target needs a bucket")
	}
	if target.AccessKey == "" || target.SecretKey == "" {
		return errors.New(errors.ErrInvalid, "backup target needs an access key pair")
	}

	cred := &models.BackupCredential{
		Provider:   target.Provider,
		Endpoint:   target.Endpoint,
		BucketName: target.Bucket,
		Region:     target.Region,
		IsEnabled:  true,
	}
	if err := cred.SetKeys(target.AccessKey, target.SecretKey, s.machineID); err != nil {
		return errors.Wrap(errors.ErrCryptoFailed, "encrypt backup credentials", err)
	}

	// Reject unknown providers and malformed targets before anything
	// is persisted.
	if _, err := FromCredential(cred, s.machineID); err != nil {
		return err
	}

	if err := s.repo.DisableAllBackupCredentials(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "disable previous backup targets", err)
	}
	if err := s.repo.SaveBackupCredential(cred); err != nil {
		return errors.Wrap(errors.ErrDatabase, "save backup target", err)
	}

	s.logger.Info("backup target configured", map[string]interface{}{
		"provider": target.Provider,
		"bucket":   target.Bucket,
	})
	return nil
}

// Uploader builds an uploader for the enabled target.
func (s *Service) Uploader() (*Uploader, error) {
	cred, err := s.current()
	if err != nil {
		return nil, err
	}
	client, err := FromCredential(cred, s.machineID)
	if err != nil {
		return nil, err
	}
	return NewUploader(client), nil
}

// Enabled reports whether a backup target is configured.
func (s *Service) Enabled() bool {
	_, err := s.current()
	return err == nil
}

// Current returns the enabled target's stored row. Key material stays
// encrypted and is excluded from its JSON form.
func (s *Service) Current() (*models.BackupCredential, error) {
	return s.current()
}

// Disable turns off archive uploads, keeping nothing enabled.
func (s *Service) Disable() error {
	if err := s.repo.DisableAllBackupCredentials(); err != nil {
		return errors.Wrap(errors.ErrDatabase, "disable backup targets", err)
	}
	s.logger.Info("backup uploads disabled")
	return nil
}

func (s *Service) current() (*models.BackupCredential, error) {
	cred, err := s.repo.GetBackupCredentials()
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.New(errors.ErrBackupNotConfigured, "no backup target configured")
		}
		return nil, errors.Wrap(errors.ErrDatabase, "load backup target", err)
	}
	if !cred.HasKeys() {
		return nil, errors.New(errors.ErrBackupNotConfigured,
			fmt.Sprintf("backup target %s has no stored keys", cred.Provider))
	}
	return cred, nil
}
