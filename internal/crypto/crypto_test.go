// Package crypto tests for encryption and key derivation functionality.
package crypto

import (
	"strings"
	"testing"
)

// TestEncryptDecrypt_roundtrip verifies basic encryption and decryption.
func TestEncryptDecrypt_roundtrip(t *testing.T) {
	plaintext := []byte("Hello, World!")
	key := []byte("test-key-12345")

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	if ciphertext == "" {
		t.Error("Encrypt() returned empty string")
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}

	if string(decrypted) != string(plaintext) {
		t.Errorf("Decrypt() = %q, want %q", string(decrypted), string(plaintext))
	}
}

// TestEncrypt_sameKeyDifferentNonce verifies each encryption produces unique ciphertext.
func TestEncrypt_sameKeyDifferentNonce(t *testing.T) {
	plaintext := []byte("Hello, World!")
	key := []byte("test-key-12345")

	ciphertext1, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() first error = %v", err)
	}

	ciphertext2, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() second error = %v", err)
	}

	// Should be different due to random nonce
	if ciphertext1 == ciphertext2 {
		t.Error("Encrypt() twice with same key produced same ciphertext (nonce should be random)")
	}
}

// TestDecrypt_invalidInput verifies invalid ciphertexts are rejected.
func TestDecrypt_invalidInput(t *testing.T) {
	key := []byte("test-key-12345")

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "not-valid-base64!!!"},
		{"empty string", ""},
		{"special chars", "!@#$%^&*()"},
		{"too short for nonce", "YWJj"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.input, key)
			if err != ErrInvalidCiphertext {
				t.Errorf("Decrypt() error = %v, want ErrInvalidCiphertext", err)
			}
		})
	}
}

// TestDecrypt_wrongKey verifies decryption fails with the wrong key.
func TestDecrypt_wrongKey(t *testing.T) {
	plaintext := []byte("sensitive data")

	ciphertext, err := Encrypt(plaintext, []byte("right-key"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	_, err = Decrypt(ciphertext, []byte("wrong-key"))
	if err != ErrInvalidCiphertext {
		t.Errorf("Decrypt() with wrong key error = %v, want ErrInvalidCiphertext", err)
	}
}

// TestEncryptString_emptyKey verifies empty keys are rejected.
func TestEncryptString_emptyKey(t *testing.T) {
	if _, err := EncryptString("data", ""); err != ErrInvalidKey {
		t.Errorf("EncryptString() error = %v, want ErrInvalidKey", err)
	}

	if _, err := DecryptString("data", ""); err != ErrInvalidKey {
		t.Errorf("DecryptString() error = %v, want ErrInvalidKey", err)
	}
}

// TestEncryptDecryptString_roundtrip verifies string helpers.
func TestEncryptDecryptString_roundtrip(t *testing.T) {
	plaintext := "session token value"
	key := "machine-derived-key"

	ciphertext, err := EncryptString(plaintext, key)
	if err != nil {
		t.Fatalf("EncryptString() error = %v", err)
	}

	decrypted, err := DecryptString(ciphertext, key)
	if err != nil {
		t.Fatalf("DecryptString() error = %v", err)
	}

	if decrypted != plaintext {
		t.Errorf("DecryptString() = %q, want %q", decrypted, plaintext)
	}
}

// TestDeriveKey_deterministic verifies key derivation is stable.
func TestDeriveKey_deterministic(t *testing.T) {
	key1 := DeriveKey("machine-1")
	key2 := DeriveKey("machine-1")

	if string(key1) != string(key2) {
		t.Error("DeriveKey() should be deterministic for the same machine ID")
	}

	if len(key1) != 32 {
		t.Errorf("DeriveKey() length = %d, want 32", len(key1))
	}

	other := DeriveKey("machine-2")
	if string(key1) == string(other) {
		t.Error("DeriveKey() should differ across machine IDs")
	}
}

// TestGetMachineKey_fallback verifies the empty-ID fallback.
func TestGetMachineKey_fallback(t *testing.T) {
	key := GetMachineKey("")
	if len(key) != 32 {
		t.Errorf("GetMachineKey() length = %d, want 32", len(key))
	}

	// The fallback must be stable
	if string(key) != string(GetMachineKey("")) {
		t.Error("GetMachineKey(\"\") should be deterministic")
	}
}

// TestEncryptSecret_roundtrip verifies secret storage helpers.
func TestEncryptSecret_roundtrip(t *testing.T) {
	secret := "s3-access-key-id"
	machineID := "test-machine"

	encrypted, err := EncryptSecret(secret, machineID)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}

	if strings.Contains(encrypted, secret) {
		t.Error("EncryptSecret() output should not contain the plaintext")
	}

	decrypted, err := DecryptSecret(encrypted, machineID)
	if err != nil {
		t.Fatalf("DecryptSecret() error = %v", err)
	}

	if decrypted != secret {
		t.Errorf("DecryptSecret() = %q, want %q", decrypted, secret)
	}
}

// TestEncryptSecret_empty verifies empty secrets are rejected.
func TestEncryptSecret_empty(t *testing.T) {
	if _, err := EncryptSecret("", "machine"); err == nil {
		t.Error("EncryptSecret() should reject empty secrets")
	}
}

// TestDecryptSecret_empty verifies empty ciphertext means no secret.
func TestDecryptSecret_empty(t *testing.T) {
	got, err := DecryptSecret("", "machine")
	if err != nil {
		t.Fatalf("DecryptSecret() error = %v", err)
	}
	if got != "" {
		t.Errorf("DecryptSecret(\"\") = %q, want empty", got)
	}
}

// TestEncryptSecret_wrongMachine verifies cross-machine decryption fails.
func TestEncryptSecret_wrongMachine(t *testing.T) {
	encrypted, err := EncryptSecret("secret", "machine-a")
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}

	if _, err := DecryptSecret(encrypted, "machine-b"); err == nil {
		t.Error("DecryptSecret() with another machine ID should fail")
	}
}

// TestEncrypt_largePayload verifies encryption of larger blobs.
func TestEncrypt_largePayload(t *testing.T) {
	plaintext := []byte(strings.Repeat("scan history entry ", 4096))
	key := []byte("test-key")

	ciphertext, err := Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	decrypted, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}

	if string(decrypted) != string(plaintext) {
		t.Error("large payload did not round-trip")
	}
}
