package vault

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapUnwrapRoundTrip(t *testing.T) {
	for _, p := range randomPayloads(t) {
		for _, version := range []uint32{FormatXOR, FormatAESGCM} {
			data := Wrap(version, p)
			gotVersion, got, ok := Unwrap(data)
			require.True(t, ok)
			assert.Equal(t, version, gotVersion)
			assert.True(t, bytes.Equal(p, got))
		}
	}
}

func TestWrapLayout(t *testing.T) {
	data := Wrap(FormatXOR, []byte{0xAA, 0xBB})
	assert.Equal(t, []byte{
		0x53, 0x4C, 0x50, 0x50, // SLPP
		0x00, 0x00, 0x00, 0x01, // version
		0x00, 0x00, 0x00, 0x02, // length
		0xAA, 0xBB,
	}, data)
}

func TestUnwrapRejects(t *testing.T) {
	valid := Wrap(FormatAESGCM, []byte("payload"))

	wrongMagic := append([]byte(nil), valid...)
	wrongMagic[0] = 'X'

	overlong := append([]byte(nil), valid...)
	binary.BigEndian.PutUint32(overlong[8:12], 1000)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short header", valid[:7]},
		{"wrong magic", wrongMagic},
		{"truncated payload", valid[:len(valid)-1]},
		{"declared length past end", overlong},
		{"plain text", []byte("timestamp,date,bedtime,waketime\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, ok := Unwrap(tt.data)
			assert.False(t, ok)
		})
	}
}

func TestUnwrapNullPayload(t *testing.T) {
	data := make([]byte, 12)
	binary.BigEndian.PutUint32(data[0:4], Magic)
	binary.BigEndian.PutUint32(data[4:8], FormatXOR)
	binary.BigEndian.PutUint32(data[8:12], 0xFFFFFFFF)

	version, payload, ok := Unwrap(data)
	require.True(t, ok)
	assert.Equal(t, FormatXOR, version)
	assert.Empty(t, payload)
}

func TestSealerRoundTrip(t *testing.T) {
	for _, version := range []uint32{FormatXOR, FormatAESGCM} {
		s, err := NewSealer(DeriveKey("secret"), version)
		require.NoError(t, err)
		assert.Equal(t, version, s.Version())

		data, err := s.Seal([]byte("slept ok"))
		require.NoError(t, err)

		plain, err := s.Open(data)
		require.NoError(t, err)
		assert.Equal(t, "slept ok", string(plain))
	}
}

func TestSealerReadsOlderVersion(t *testing.T) {
	key := DeriveKey("secret")
	legacy, err := NewSealer(key, FormatXOR)
	require.NoError(t, err)
	current, err := NewSealer(key, FormatAESGCM)
	require.NoError(t, err)

	data, err := legacy.Seal([]byte("from an old install"))
	require.NoError(t, err)

	plain, err := current.Open(data)
	require.NoError(t, err)
	assert.Equal(t, "from an old install", string(plain))
}

func TestSealerOpenAbsent(t *testing.T) {
	s, err := NewSealer(DeriveKey("secret"), CurrentFormat)
	require.NoError(t, err)

	_, err = s.Open([]byte("garbage"))
	assert.True(t, errors.Is(err, ErrAbsent))

	_, err = s.Open(Wrap(7, []byte("x")))
	assert.True(t, errors.Is(err, ErrUnsupportedVersion))
}

func TestSealerWrongSecret(t *testing.T) {
	right, _ := NewSealer(DeriveKey("right"), FormatAESGCM)
	wrong, _ := NewSealer(DeriveKey("wrong"), FormatAESGCM)

	data, err := right.Seal([]byte("notes"))
	require.NoError(t, err)

	_, err = wrong.Open(data)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestNewSealerRejectsUnknownVersion(t *testing.T) {
	_, err := NewSealer(DeriveKey("x"), 0)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestSealerDestroy(t *testing.T) {
	s, _ := NewSealer(DeriveKey("x"), FormatXOR)
	s.Destroy()
	assert.Equal(t, Key{}, s.key)
}
