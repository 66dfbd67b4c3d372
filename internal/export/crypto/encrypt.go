// Package crypto encrypts report archives with AES-256-GCM. The
// password is never stored with the archive or anywhere else: the user
// must provide it again to import.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

var (
	// ErrInvalidPassword is returned when decryption fails, which with
	// an authenticated cipher almost always means a wrong password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidArchive is returned when the header cannot be parsed.
	ErrInvalidArchive = errors.New("invalid archive format")
)

const (
	// PasswordMinLength is the minimum accepted password length.
	PasswordMinLength = 8
	// SaltLength is the key-derivation salt size.
	SaltLength = 32

	// keyIterations is the PBKDF2-SHA256 iteration count.
	keyIterations = 100_000
	keyLength     = 32

	algorithmName = "AES-256-GCM"
	headerVersion = 1

	// headerMagic marks an encrypted archive. Plain tar.gz output
	// starts with the gzip magic, so the two can never be confused.
	headerMagic = "DIETARC"
)

// EncryptArchive seals data under a key derived from password. The
// output carries a header with the salt and nonce; the password itself
// is not recoverable from it.
func EncryptArchive(data []byte, password string) ([]byte, error) {
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	header := serializeHeader(nonce, salt)
	return append(header, gcm.Seal(nil, nonce, data, nil)...), nil
}

// DecryptArchive opens an archive sealed by EncryptArchive. A wrong
// password surfaces as ErrInvalidPassword.
func DecryptArchive(encrypted []byte, password string) ([]byte, error) {
	header, payload, err := parseHeader(encrypted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArchive, err)
	}
	if header.version != headerVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidArchive, header.version)
	}
	if header.algorithm != algorithmName {
		return nil, fmt.Errorf("%w: unsupported algorithm %s", ErrInvalidArchive, header.algorithm)
	}

	gcm, err := newGCM(password, header.salt)
	if err != nil {
		return nil, err
	}
	if len(header.nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("%w: bad nonce length %d", ErrInvalidArchive, len(header.nonce))
	}

	plaintext, err := gcm.Open(nil, header.nonce, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return plaintext, nil
}

// IsEncrypted reports whether data starts with the encrypted-archive
// header.
func IsEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(headerMagic))
}

// ValidatePassword checks the minimum password requirement.
func ValidatePassword(password string) error {
	if len(password) < PasswordMinLength {
		return fmt.Errorf("password must be at least %d characters", PasswordMinLength)
	}
	return nil
}

// GeneratePassword returns a random URL-safe password of the requested
// length. Callers show it to the user once; nothing retains it.
func GeneratePassword(length int) (string, error) {
	if length < PasswordMinLength {
		length = PasswordMinLength
	}
	raw := make([]byte, length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	password := base64.URLEncoding.EncodeToString(raw)
	return password[:length], nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, keyIterations, keyLength, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return gcm, nil
}

// =====================================================
// Header framing
// =====================================================

// The header is magic, a version byte, then length-prefixed algorithm,
// nonce, and salt fields. Only metadata lives here.
type archiveHeader struct {
	version   byte
	algorithm string
	nonce     []byte
	salt      []byte
}

func serializeHeader(nonce, salt []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(headerMagic)
	buf.WriteByte(headerVersion)
	buf.WriteByte(byte(len(algorithmName)))
	buf.WriteString(algorithmName)
	buf.WriteByte(byte(len(nonce)))
	buf.Write(nonce)
	buf.WriteByte(byte(len(salt)))
	buf.Write(salt)
	return buf.Bytes()
}

// parseHeader splits encrypted archive bytes into the header and the
// sealed payload.
func parseHeader(data []byte) (archiveHeader, []byte, error) {
	var header archiveHeader

	if len(data) < len(headerMagic)+1 || string(data[:len(headerMagic)]) != headerMagic {
		return header, nil, errors.New("missing archive magic")
	}
	rest := data[len(headerMagic):]

	header.version = rest[0]
	rest = rest[1:]

	field := func(name string) ([]byte, error) {
		if len(rest) < 1 {
			return nil, fmt.Errorf("truncated before %s length", name)
		}
		n := int(rest[0])
		rest = rest[1:]
		if len(rest) < n {
			return nil, fmt.Errorf("truncated %s: want %d bytes, have %d", name, n, len(rest))
		}
		value := rest[:n]
		rest = rest[n:]
		return value, nil
	}

	alg, err := field("algorithm")
	if err != nil {
		return header, nil, err
	}
	header.algorithm = string(alg)

	if header.nonce, err = field("nonce"); err != nil {
		return header, nil, err
	}
	if header.salt, err = field("salt"); err != nil {
		return header, nil, err
	}
	return header, rest, nil
}
