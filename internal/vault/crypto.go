package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	// Crypto constants
	KeySize   = 32 // SHA-256 output, AES-256 key size
	NonceSize = 12 // GCM nonce size
	TagSize   = 16 // GCM tag size

	gcmKeyInfo = "sleepbook aes-256-gcm v2"
)

var (
	ErrDecryptionFailed   = errors.New("decryption failed")
	ErrInvalidCiphertext  = errors.New("invalid ciphertext")
	ErrUnsupportedVersion = errors.New("unsupported format version")
)

// Key is the fixed-size symmetric key derived from a user secret.
type Key [KeySize]byte

// DeriveKey turns a secret into a Key. It is deterministic and accepts any
// string, including the empty one.
func DeriveKey(secret string) Key {
	return Key(sha256.Sum256([]byte(secret)))
}

// Equal compares two keys in constant time.
func (k Key) Equal(o Key) bool {
	return SecureCompare(k[:], o[:])
}

// Cipher encrypts and decrypts opaque payloads under a Key.
type Cipher interface {
	Encrypt(key Key, plaintext []byte) ([]byte, error)
	Decrypt(key Key, ciphertext []byte) ([]byte, error)
}

// XORCipher is the format version 1 cipher: the plaintext XORed with the
// repeating key. Encrypt and Decrypt are the same operation. There is no
// integrity check, so a wrong key yields garbage instead of an error.
type XORCipher struct{}

// Encrypt applies the repeating-key XOR.
func (XORCipher) Encrypt(key Key, plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ key[i%KeySize]
	}
	return out, nil
}

// Decrypt applies the repeating-key XOR.
func (c XORCipher) Decrypt(key Key, ciphertext []byte) ([]byte, error) {
	return c.Encrypt(key, ciphertext)
}

// GCMCipher is the format version 2 cipher: AES-256-GCM under a subkey
// expanded from the Key with HKDF-SHA256. Output is nonce || ciphertext || tag.
type GCMCipher struct {
	// Rand is the nonce source; nil means crypto/rand.
	Rand io.Reader
}

func (c GCMCipher) aead(key Key) (cipher.AEAD, error) {
	subkey := make([]byte, KeySize)
	defer Zeroize(subkey)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key[:], nil, []byte(gcmKeyInfo)), subkey); err != nil {
		return nil, fmt.Errorf("failed to expand key: %w", err)
	}

	// Create AES cipher
	block, err := aes.NewCipher(subkey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	// Create GCM mode
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt seals plaintext with a fresh random nonce.
func (c GCMCipher) Encrypt(key Key, plaintext []byte) ([]byte, error) {
	gcm, err := c.aead(key)
	if err != nil {
		return nil, err
	}

	src := c.Rand
	if src == nil {
		src = rand.Reader
	}
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(src, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens a payload produced by Encrypt.
func (c GCMCipher) Decrypt(key Key, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize+TagSize {
		return nil, ErrInvalidCiphertext
	}

	gcm, err := c.aead(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// CipherFor returns the cipher used by a container format version.
func CipherFor(version uint32) (Cipher, error) {
	switch version {
	case FormatXOR:
		return XORCipher{}, nil
	case FormatAESGCM:
		return GCMCipher{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
}

// Zeroize securely clears a byte slice
func Zeroize(data []byte) {
	for i := range data {
		data[i] = 0
	}
}

// SecureCompare performs constant-time comparison of two byte slices
func SecureCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
