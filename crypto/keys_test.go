package crypto

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

// buildPairingSecret plays the peer's side: it derives the same expansion
// from an X25519 exchange with the client's ephemeral public key and wraps
// the session keys the way the phone does.
func buildPairingSecret(t *testing.T, clientPub []byte, enc, mac [32]byte) []byte {
	t.Helper()

	peerPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)
	pub, err := ecdh.X25519().NewPublicKey(clientPub)
	require.NoError(t, err)
	shared, err := peerPriv.ECDH(pub)
	require.NoError(t, err)

	expanded := make([]byte, 80)
	_, err = io.ReadFull(hkdf.New(sha256.New, shared, make([]byte, 32), nil), expanded)
	require.NoError(t, err)

	keyMaterial := append(append([]byte{}, enc[:]...), mac[:]...)
	ciphertext, err := cbcEncrypt(expanded[:32], expanded[64:80], keyMaterial)
	require.NoError(t, err)
	require.Len(t, ciphertext, 80)

	secret := make([]byte, 0, 144)
	secret = append(secret, peerPriv.PublicKey().Bytes()...)

	h := hmac.New(sha256.New, expanded[32:64])
	h.Write(peerPriv.PublicKey().Bytes())
	h.Write(ciphertext)
	secret = append(secret, h.Sum(nil)...)
	secret = append(secret, ciphertext...)
	return secret
}

func TestDeriveSessionKeys(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)
	require.Len(t, kp.PublicBytes(), 32)

	var enc, mac [32]byte
	_, err = io.ReadFull(rand.Reader, enc[:])
	require.NoError(t, err)
	_, err = io.ReadFull(rand.Reader, mac[:])
	require.NoError(t, err)

	secret := buildPairingSecret(t, kp.PublicBytes(), enc, mac)
	require.Len(t, secret, 144)

	keys, err := kp.DeriveSessionKeys(secret)
	require.NoError(t, err)
	assert.Equal(t, enc, keys.Enc)
	assert.Equal(t, mac, keys.Mac)
}

func TestDeriveSessionKeysFailClosed(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	var enc, mac [32]byte
	secret := buildPairingSecret(t, kp.PublicBytes(), enc, mac)

	t.Run("wrong length", func(t *testing.T) {
		_, err := kp.DeriveSessionKeys(secret[:100])
		assert.ErrorIs(t, err, ErrProtocol)
	})

	t.Run("tampered hmac", func(t *testing.T) {
		tampered := append([]byte{}, secret...)
		tampered[40] ^= 0x01
		_, err := kp.DeriveSessionKeys(tampered)
		assert.ErrorIs(t, err, ErrMacMismatch)
	})

	t.Run("tampered ciphertext", func(t *testing.T) {
		tampered := append([]byte{}, secret...)
		tampered[100] ^= 0x01
		_, err := kp.DeriveSessionKeys(tampered)
		assert.ErrorIs(t, err, ErrMacMismatch)
	})

	t.Run("wrong client key", func(t *testing.T) {
		other, err := GenerateKeyPair()
		require.NoError(t, err)
		_, err = other.DeriveSessionKeys(secret)
		assert.Error(t, err)
	})
}

func TestSignChallenge(t *testing.T) {
	mac := randomBytes(t, 32)
	challenge := randomBytes(t, 20)

	signature := SignChallenge(mac, challenge)
	require.Len(t, signature, 32)

	h := hmac.New(sha256.New, mac)
	h.Write(challenge)
	assert.Equal(t, h.Sum(nil), signature)
}

func TestSha256(t *testing.T) {
	sum := sha256.Sum256([]byte("waveline"))
	assert.Equal(t, sum[:], Sha256([]byte("waveline")))
}
