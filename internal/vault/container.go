package vault

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// Magic identifies a journal container file ("SLPP").
	Magic uint32 = 0x534C5050

	// FormatXOR is the original format version, repeating-key XOR.
	FormatXOR uint32 = 1
	// FormatAESGCM is the authenticated format version.
	FormatAESGCM uint32 = 2

	// CurrentFormat is the version written unless configured otherwise.
	CurrentFormat = FormatAESGCM

	headerSize = 4 + 4 + 4
	nullLength = 0xFFFFFFFF
)

// ErrAbsent is returned by Open when the bytes are not a readable container.
// Callers treat it exactly like a missing file.
var ErrAbsent = errors.New("no readable container")

// Wrap builds the container bytes: magic, version, then the length-prefixed
// ciphertext, all big-endian.
func Wrap(version uint32, ciphertext []byte) []byte {
	buf := make([]byte, headerSize, headerSize+len(ciphertext))
	binary.BigEndian.PutUint32(buf[0:4], Magic)
	binary.BigEndian.PutUint32(buf[4:8], version)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(ciphertext)))
	return append(buf, ciphertext...)
}

// Unwrap splits container bytes into version and ciphertext. ok is false when
// the data is short, carries the wrong magic, or declares more payload than
// it holds. A null payload length unwraps to an empty ciphertext.
func Unwrap(data []byte) (version uint32, ciphertext []byte, ok bool) {
	if len(data) < headerSize {
		return 0, nil, false
	}
	if binary.BigEndian.Uint32(data[0:4]) != Magic {
		return 0, nil, false
	}
	version = binary.BigEndian.Uint32(data[4:8])

	n := binary.BigEndian.Uint32(data[8:12])
	if n == nullLength {
		return version, []byte{}, true
	}
	rest := data[headerSize:]
	if uint64(n) > uint64(len(rest)) {
		return 0, nil, false
	}

	ciphertext = make([]byte, n)
	copy(ciphertext, rest[:n])
	return version, ciphertext, true
}

// Sealer encrypts payloads into containers and back under one key.
type Sealer struct {
	key     Key
	version uint32
}

// NewSealer returns a Sealer writing the given format version.
func NewSealer(key Key, version uint32) (*Sealer, error) {
	if _, err := CipherFor(version); err != nil {
		return nil, err
	}
	return &Sealer{key: key, version: version}, nil
}

// Version is the format version Seal writes.
func (s *Sealer) Version() uint32 {
	return s.version
}

// Seal encrypts plaintext and wraps it into container bytes.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	c, err := CipherFor(s.version)
	if err != nil {
		return nil, err
	}
	ciphertext, err := c.Encrypt(s.key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}
	return Wrap(s.version, ciphertext), nil
}

// Open unwraps and decrypts container bytes with the cipher named by the
// stored version, so files written under an older version stay readable.
// It returns ErrAbsent for unreadable containers.
func (s *Sealer) Open(data []byte) ([]byte, error) {
	version, ciphertext, ok := Unwrap(data)
	if !ok {
		return nil, ErrAbsent
	}
	c, err := CipherFor(version)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(s.key, ciphertext)
}

// Destroy clears the key held by the sealer.
func (s *Sealer) Destroy() {
	Zeroize(s.key[:])
}
