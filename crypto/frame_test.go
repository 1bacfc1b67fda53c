package crypto

import (
	"crypto/rand"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	_, err := io.ReadFull(rand.Reader, buf)
	require.NoError(t, err)
	return buf
}

func TestSignAndEncryptRoundTrip(t *testing.T) {
	enc := randomBytes(t, 32)
	mac := randomBytes(t, 32)

	for _, size := range []int{0, 1, 15, 16, 30, 1024} {
		plaintext := randomBytes(t, size)
		sealed, err := SignAndEncrypt(enc, mac, plaintext)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(sealed), 48)

		opened, err := VerifyAndDecrypt(enc, mac, sealed)
		require.NoError(t, err)
		require.Equal(t, plaintext, opened)
	}
}

func TestVerifyAndDecryptRejectsTampering(t *testing.T) {
	enc := randomBytes(t, 32)
	mac := randomBytes(t, 32)
	sealed, err := SignAndEncrypt(enc, mac, randomBytes(t, 30))
	require.NoError(t, err)

	for _, pos := range []int{0, 31, 32, 47, 48, len(sealed) - 1} {
		tampered := append([]byte{}, sealed...)
		tampered[pos] ^= 0xFF
		_, err := VerifyAndDecrypt(enc, mac, tampered)
		assert.ErrorIs(t, err, ErrMacMismatch, "flipped byte %d", pos)
	}
}

func TestVerifyAndDecryptRejectsShortInput(t *testing.T) {
	_, err := VerifyAndDecrypt(randomBytes(t, 32), randomBytes(t, 32), make([]byte, 47))
	assert.ErrorIs(t, err, ErrProtocol)
}

func TestVerifyAndDecryptRejectsWrongKey(t *testing.T) {
	enc := randomBytes(t, 32)
	mac := randomBytes(t, 32)
	sealed, err := SignAndEncrypt(enc, mac, []byte("payload"))
	require.NoError(t, err)

	_, err = VerifyAndDecrypt(enc, randomBytes(t, 32), sealed)
	assert.ErrorIs(t, err, ErrMacMismatch)
}

func TestPkcs7(t *testing.T) {
	for size := 0; size < 33; size++ {
		padded := pkcs7Pad(make([]byte, size), 16)
		require.Equal(t, 0, len(padded)%16)
		unpadded, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		require.Len(t, unpadded, size)
	}

	_, err := pkcs7Unpad([]byte{1, 2, 0}, 16)
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{}, 16)
	assert.Error(t, err)
	_, err = pkcs7Unpad([]byte{3, 3, 2}, 16)
	assert.Error(t, err)
}
