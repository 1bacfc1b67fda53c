// Copyright (C) 2026 waveline-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package crypto

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SessionKeys holds the two 32-byte keys derived at pairing. Enc encrypts
// binary frame payloads, Mac authenticates them and signs login challenges.
type SessionKeys struct {
	Enc [32]byte
	Mac [32]byte
}

// KeyPair is the ephemeral X25519 pair generated for a new pairing. Its
// public half is embedded in the QR payload shown to the phone.
type KeyPair struct {
	privateKey *ecdh.PrivateKey
	publicKey  *ecdh.PublicKey
}

// GenerateKeyPair generates a new ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	privateKey, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ephemeral ECDH key: %w", err)
	}
	return &KeyPair{privateKey: privateKey, publicKey: privateKey.PublicKey()}, nil
}

// PublicBytes returns the raw 32-byte public key.
func (kp *KeyPair) PublicBytes() []byte {
	return kp.publicKey.Bytes()
}

// DeriveSessionKeys computes the session keys from the peer-sent pairing
// secret. The secret layout is peer_public[0:32] || hmac[32:64] ||
// ciphertext[64:144]. The HMAC is checked before any decrypt attempt; the
// ciphertext decrypts to enc_key || mac_key.
func (kp *KeyPair) DeriveSessionKeys(secret []byte) (SessionKeys, error) {
	var keys SessionKeys
	if len(secret) != 144 {
		return keys, fmt.Errorf("%w: pairing secret is %d bytes, want 144", ErrProtocol, len(secret))
	}

	peerPub, err := ecdh.X25519().NewPublicKey(secret[:32])
	if err != nil {
		return keys, fmt.Errorf("invalid peer public key: %w", err)
	}
	shared, err := kp.privateKey.ECDH(peerPub)
	if err != nil {
		return keys, fmt.Errorf("failed to compute shared secret: %w", err)
	}

	// HKDF-Extract with a zero salt, HKDF-Expand with empty info, 80 bytes.
	expanded := make([]byte, 80)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, make([]byte, 32), nil), expanded); err != nil {
		return keys, fmt.Errorf("hkdf: %w", err)
	}

	mac := hmac.New(sha256.New, expanded[32:64])
	mac.Write(secret[:32])
	mac.Write(secret[64:])
	if !hmac.Equal(mac.Sum(nil), secret[32:64]) {
		return keys, fmt.Errorf("pairing secret: %w", ErrMacMismatch)
	}

	plain, err := cbcDecrypt(expanded[:32], expanded[64:80], secret[64:144])
	if err != nil {
		return keys, fmt.Errorf("pairing secret: %w", err)
	}
	if len(plain) != 64 {
		return keys, fmt.Errorf("%w: decrypted key material is %d bytes, want 64", ErrProtocol, len(plain))
	}

	copy(keys.Enc[:], plain[:32])
	copy(keys.Mac[:], plain[32:])
	return keys, nil
}

// SignChallenge signs a server login challenge with the session mac key.
func SignChallenge(mac []byte, challenge []byte) []byte {
	h := hmac.New(sha256.New, mac)
	h.Write(challenge)
	return h.Sum(nil)
}

// Sha256 returns the SHA-256 digest of data.
func Sha256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}
