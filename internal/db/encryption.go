package db

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/go-faster/errors"
)

var encryptionKey []byte

// ErrNoEncryptionKey is returned when encrypted state is used before
// InitEncryptionKey.
var ErrNoEncryptionKey = errors.New("state encryption key is not configured")

// InitEncryptionKey sets the AES-256 key for encrypted snap state from its
// base64 form (STATE_ENCRYPTION_KEY). Call once at startup.
func InitEncryptionKey(raw string) error {
	if raw == "" {
		return errors.New("STATE_ENCRYPTION_KEY is required")
	}
	key, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(key) != 32 {
		return errors.Errorf("STATE_ENCRYPTION_KEY must be 32 bytes base64-encoded (got %d bytes)", len(key))
	}
	encryptionKey = key
	return nil
}

const encryptionVersion = "v1"

// encrypt encrypts plaintext with AES-256-GCM.
// Returns "v1:" + base64-encoded nonce+ciphertext.
func encrypt(plaintext []byte) (string, error) {
	gcm, err := newGCM()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, plaintext, nil) // nonce || ciphertext || tag
	return encryptionVersion + ":" + base64.StdEncoding.EncodeToString(sealed), nil
}

// decrypt decrypts a versioned ciphertext string.
// Supports "v1:base64data" format.
func decrypt(ciphertext string) ([]byte, error) {
	data := strings.TrimPrefix(ciphertext, encryptionVersion+":")

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM()
	if err != nil {
		return nil, err
	}
	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	return gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
}

func newGCM() (cipher.AEAD, error) {
	if encryptionKey == nil {
		return nil, ErrNoEncryptionKey
	}
	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
