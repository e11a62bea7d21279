package vault

import (
	"bytes"
	"encoding/hex"
	"math/rand"
	"testing"
)

func randomPayloads(t *testing.T) [][]byte {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	payloads := [][]byte{nil, {}, {0}, []byte("slept ok"), bytes.Repeat([]byte{0xFF}, KeySize*3+1)}
	for i := 0; i < 50; i++ {
		p := make([]byte, r.Intn(2048))
		r.Read(p)
		payloads = append(payloads, p)
	}
	return payloads
}

func TestDeriveKey(t *testing.T) {
	key1 := DeriveKey("test-passphrase-123")
	key2 := DeriveKey("test-passphrase-123")

	// Same inputs should produce same key
	if !key1.Equal(key2) {
		t.Error("Same inputs should produce same key")
	}

	// Different passphrase should produce different key
	key3 := DeriveKey("different-passphrase")
	if key1.Equal(key3) {
		t.Error("Different passphrases should produce different keys")
	}

	// Empty secret is valid; SHA-256 of the empty string
	empty := DeriveKey("")
	want := "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := hex.EncodeToString(empty[:]); got != want {
		t.Errorf("DeriveKey(\"\") = %s, want %s", got, want)
	}
}

func TestCipherRoundTrip(t *testing.T) {
	ciphers := map[string]Cipher{
		"xor": XORCipher{},
		"gcm": GCMCipher{},
	}
	keys := []Key{DeriveKey(""), DeriveKey("hunter2"), DeriveKey("pässwörd ✓")}

	for name, c := range ciphers {
		t.Run(name, func(t *testing.T) {
			for _, key := range keys {
				for _, p := range randomPayloads(t) {
					ct, err := c.Encrypt(key, p)
					if err != nil {
						t.Fatalf("Encrypt failed: %v", err)
					}
					pt, err := c.Decrypt(key, ct)
					if err != nil {
						t.Fatalf("Decrypt failed: %v", err)
					}
					if !bytes.Equal(pt, p) {
						t.Fatalf("round trip mismatch for %d-byte payload", len(p))
					}
				}
			}
		})
	}
}

func TestXORCipherIsInvolution(t *testing.T) {
	key := DeriveKey("secret")
	msg := []byte("Insomnia woke up twice")

	once, _ := XORCipher{}.Encrypt(key, msg)
	twice, _ := XORCipher{}.Encrypt(key, once)
	if !bytes.Equal(twice, msg) {
		t.Error("applying XOR twice should restore the plaintext")
	}
	if bytes.Equal(once, msg) {
		t.Error("ciphertext should differ from plaintext")
	}
}

func TestXORCipherWrongKeyGarbles(t *testing.T) {
	msg := []byte("slept ok")
	ct, _ := XORCipher{}.Encrypt(DeriveKey("right"), msg)

	pt, err := XORCipher{}.Decrypt(DeriveKey("wrong"), ct)
	if err != nil {
		t.Fatalf("XOR decrypt never fails structurally, got %v", err)
	}
	if bytes.Equal(pt, msg) {
		t.Error("wrong key should not recover the plaintext")
	}
}

func TestGCMCipherWrongKeyFails(t *testing.T) {
	ct, err := GCMCipher{}.Encrypt(DeriveKey("right"), []byte("slept ok"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	if _, err := (GCMCipher{}).Decrypt(DeriveKey("wrong"), ct); err != ErrDecryptionFailed {
		t.Errorf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestGCMTamperDetection(t *testing.T) {
	key := DeriveKey("tamper-test-passphrase")
	ct, err := GCMCipher{}.Encrypt(key, []byte("Data that should detect tampering"))
	if err != nil {
		t.Fatalf("Encrypt failed: %v", err)
	}

	for _, idx := range []int{0, NonceSize, len(ct) - 1} {
		tampered := append([]byte(nil), ct...)
		tampered[idx] ^= 1 // Flip one bit
		if _, err := (GCMCipher{}).Decrypt(key, tampered); err == nil {
			t.Errorf("tampering at byte %d should fail decryption", idx)
		}
	}

	if _, err := (GCMCipher{}).Decrypt(key, ct[:NonceSize]); err != ErrInvalidCiphertext {
		t.Errorf("short ciphertext should be rejected, got %v", err)
	}
}

func TestGCMCipherFreshNonce(t *testing.T) {
	key := DeriveKey("nonce")
	a, _ := GCMCipher{}.Encrypt(key, []byte("same"))
	b, _ := GCMCipher{}.Encrypt(key, []byte("same"))
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext should differ")
	}
}

func TestCipherFor(t *testing.T) {
	if _, err := CipherFor(FormatXOR); err != nil {
		t.Errorf("version 1 should be supported: %v", err)
	}
	if _, err := CipherFor(FormatAESGCM); err != nil {
		t.Errorf("version 2 should be supported: %v", err)
	}
	if _, err := CipherFor(99); err == nil {
		t.Error("unknown version should be rejected")
	}
}

func TestZeroize(t *testing.T) {
	data := []byte("sensitive data that should be zeroed")

	Zeroize(data)

	// Check that all bytes are zero
	for i, b := range data {
		if b != 0 {
			t.Errorf("Byte at index %d not zeroed: %d", i, b)
		}
	}
}

func TestSecureCompare(t *testing.T) {
	if !SecureCompare([]byte("same data"), []byte("same data")) {
		t.Error("Identical data should compare equal")
	}
	if SecureCompare([]byte("same data"), []byte("diff data")) {
		t.Error("Different data should not compare equal")
	}
	if SecureCompare([]byte("short"), []byte("longer data")) {
		t.Error("Different lengths should not compare equal")
	}
}
