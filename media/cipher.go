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

// Package media implements the media cipher and the upload/download
// collaborators around the core session.
package media

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/waveline-project/waveline/crypto"
	"github.com/waveline-project/waveline/message"
)

// mediaKeys is the 112-byte expansion of a 32-byte media key:
// iv[0:16] || cipherKey[16:48] || macKey[48:80] || refKey[80:112].
type mediaKeys struct {
	iv        []byte
	cipherKey []byte
	macKey    []byte
}

func deriveMediaKeys(key []byte, mediaType message.MediaType) (mediaKeys, error) {
	expanded := make([]byte, 112)
	r := hkdf.New(sha256.New, key, make([]byte, 32), mediaType.KeyInfo())
	if _, err := io.ReadFull(r, expanded); err != nil {
		return mediaKeys{}, fmt.Errorf("hkdf: %w", err)
	}
	return mediaKeys{
		iv:        expanded[0:16],
		cipherKey: expanded[16:48],
		macKey:    expanded[48:80],
	}, nil
}

// Encrypt encrypts a media file with a fresh random media key. The
// ciphertext carries a 10-byte HMAC trailer over iv || ciphertext; the key
// travels inside the referencing message.
func Encrypt(mediaType message.MediaType, file []byte) (ciphertext, mediaKey []byte, err error) {
	mediaKey = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, mediaKey); err != nil {
		return nil, nil, fmt.Errorf("failed to generate media key: %w", err)
	}
	keys, err := deriveMediaKeys(mediaKey, mediaType)
	if err != nil {
		return nil, nil, err
	}

	block, err := aes.NewCipher(keys.cipherKey)
	if err != nil {
		return nil, nil, err
	}
	padded := pad(file, aes.BlockSize)
	encrypted := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, keys.iv).CryptBlocks(encrypted, padded)

	mac := hmac.New(sha256.New, keys.macKey)
	mac.Write(keys.iv)
	mac.Write(encrypted)

	return append(encrypted, mac.Sum(nil)[:10]...), mediaKey, nil
}

// Decrypt reverses Encrypt given the media key from the referencing
// message.
func Decrypt(mediaKey []byte, mediaType message.MediaType, data []byte) ([]byte, error) {
	keys, err := deriveMediaKeys(mediaKey, mediaType)
	if err != nil {
		return nil, err
	}
	if len(data) < 10+aes.BlockSize {
		return nil, fmt.Errorf("%w: media payload of %d bytes", crypto.ErrProtocol, len(data))
	}
	encrypted, trailer := data[:len(data)-10], data[len(data)-10:]

	mac := hmac.New(sha256.New, keys.macKey)
	mac.Write(keys.iv)
	mac.Write(encrypted)
	if !hmac.Equal(mac.Sum(nil)[:10], trailer) {
		return nil, crypto.ErrMacMismatch
	}

	block, err := aes.NewCipher(keys.cipherKey)
	if err != nil {
		return nil, err
	}
	if len(encrypted)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d", crypto.ErrProtocol, len(encrypted))
	}
	plain := make([]byte, len(encrypted))
	cipher.NewCBCDecrypter(block, keys.iv).CryptBlocks(plain, encrypted)
	return unpad(plain, aes.BlockSize)
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", crypto.ErrProtocol)
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("%w: invalid padding", crypto.ErrProtocol)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("%w: invalid padding", crypto.ErrProtocol)
		}
	}
	return data[:len(data)-n], nil
}
