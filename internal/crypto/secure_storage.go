// Package crypto provides secure storage for sensitive credentials.
// Credentials are encrypted with a machine-derived key and written to
// files readable only by the owning user. Platform keychain integration
// is left to the UI shells, which hold the session anyway.
package crypto

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// SecureStorage provides encrypted credential storage under the data directory.
type SecureStorage struct {
	configDir string
}

// NewSecureStorage creates a new SecureStorage instance.
func NewSecureStorage(configDir string) *SecureStorage {
	return &SecureStorage{
		configDir: configDir,
	}
}

// StoreCredential encrypts and stores a named credential.
func (s *SecureStorage) StoreCredential(account, value string) error {
	if s.configDir == "" {
		return fmt.Errorf("config directory not set for secure storage")
	}

	secureDir := filepath.Join(s.configDir, "secure")
	if err := os.MkdirAll(secureDir, 0700); err != nil {
		return fmt.Errorf("failed to create secure directory: %w", err)
	}

	credFile := filepath.Join(secureDir, sanitizeAccount(account)+".cred")

	machineKey := GetMachineKey(getMachineIdentifier())
	encrypted, err := EncryptString(value, string(machineKey))
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	if err := os.WriteFile(credFile, []byte(encrypted), 0600); err != nil {
		return fmt.Errorf("failed to write credential file: %w", err)
	}

	return nil
}

// GetCredential retrieves and decrypts a stored credential.
func (s *SecureStorage) GetCredential(account string) (string, error) {
	if s.configDir == "" {
		return "", fmt.Errorf("config directory not set for secure storage")
	}

	credFile := filepath.Join(s.configDir, "secure", sanitizeAccount(account)+".cred")

	data, err := os.ReadFile(credFile)
	if err != nil {
		return "", fmt.Errorf("credential not found")
	}

	machineKey := GetMachineKey(getMachineIdentifier())
	value, err := DecryptString(string(data), string(machineKey))
	if err != nil {
		return "", fmt.Errorf("failed to decrypt credential: %w", err)
	}

	return value, nil
}

// DeleteCredential removes a stored credential.
func (s *SecureStorage) DeleteCredential(account string) error {
	if s.configDir == "" {
		return fmt.Errorf("config directory not set for secure storage")
	}

	credFile := filepath.Join(s.configDir, "secure", sanitizeAccount(account)+".cred")

	if err := os.Remove(credFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credential file: %w", err)
	}

	return nil
}

// sanitizeAccount makes an account name safe to use as a filename.
func sanitizeAccount(account string) string {
	safe := strings.ReplaceAll(account, "/", "_")
	safe = strings.ReplaceAll(safe, "\\", "_")
	safe = strings.ReplaceAll(safe, "..", "_")
	return safe
}

// =====================================================
// Machine Identifier Helper
// =====================================================

// MachineID returns the identifier used to derive at-rest encryption
// keys on this install. Values encrypted with it do not move between
// machines.
func MachineID() string {
	return getMachineIdentifier()
}

// getMachineIdentifier returns a platform-specific machine identifier.
// Used as part of the encryption key for file-based credential storage.
func getMachineIdentifier() string {
	switch runtime.GOOS {
	case "linux":
		// systemd machine-id, then dbus, then hostname
		if data, err := os.ReadFile("/etc/machine-id"); err == nil {
			return "linux:" + strings.TrimSpace(string(data))
		}
		if data, err := os.ReadFile("/var/lib/dbus/machine-id"); err == nil {
			return "linux:" + strings.TrimSpace(string(data))
		}
	}
	hostname, _ := os.Hostname()
	return runtime.GOOS + ":" + hostname
}
