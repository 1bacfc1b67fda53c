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
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrMacMismatch is returned when an HMAC check fails. Inbound frames
	// failing this check are dropped before any decrypt attempt.
	ErrMacMismatch = errors.New("invalid mac")

	// ErrProtocol is returned for structurally invalid encrypted payloads.
	ErrProtocol = errors.New("malformed payload")
)

// SignAndEncrypt encrypts a plaintext frame payload and prepends the
// authentication tag. Output layout: HMAC32 || IV16 || ciphertext where the
// HMAC covers IV16 || ciphertext.
func SignAndEncrypt(enc, mac []byte, plaintext []byte) ([]byte, error) {
	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("failed to generate iv: %w", err)
	}
	ciphertext, err := cbcEncrypt(enc, iv, plaintext)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 32+len(iv)+len(ciphertext))
	copy(out[32:], iv)
	copy(out[32+len(iv):], ciphertext)

	h := hmac.New(sha256.New, mac)
	h.Write(out[32:])
	copy(out[:32], h.Sum(nil))
	return out, nil
}

// VerifyAndDecrypt checks the authentication tag of a binary frame payload
// and returns the plaintext. Fail-closed: no decryption happens on mismatch.
func VerifyAndDecrypt(enc, mac []byte, data []byte) ([]byte, error) {
	if len(data) < 48 {
		return nil, fmt.Errorf("%w: %d bytes, want at least 48", ErrProtocol, len(data))
	}

	h := hmac.New(sha256.New, mac)
	h.Write(data[32:])
	if !hmac.Equal(h.Sum(nil), data[:32]) {
		return nil, ErrMacMismatch
	}

	return cbcDecrypt(enc, data[32:48], data[48:])
}

func cbcEncrypt(key, iv, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	padded := pkcs7Pad(plaintext, aes.BlockSize)
	out := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, padded)
	return out, nil
}

func cbcDecrypt(key, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", ErrProtocol, len(ciphertext))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return pkcs7Unpad(out, aes.BlockSize)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	pad := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(pad)}, pad)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrProtocol)
	}
	pad := int(data[len(data)-1])
	if pad == 0 || pad > blockSize || pad > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", ErrProtocol)
	}
	for _, b := range data[len(data)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("%w: invalid padding", ErrProtocol)
		}
	}
	return data[:len(data)-pad], nil
}
