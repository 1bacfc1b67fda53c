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

package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/waveline-project/waveline/crypto"
	"github.com/waveline-project/waveline/message"
)

// Uploader is the slice of the session facade the upload flow needs: it
// only obtains the signed upload URL through the core.
type Uploader interface {
	RequestFileUpload(hash []byte, mediaType message.MediaType, sink func(url string, err error)) error
}

// Upload encrypts a file, obtains a signed URL through the session and
// posts the ciphertext. The returned FileInfo is ready to embed into an
// outgoing media message.
func Upload(ctx context.Context, session Uploader, file []byte, mediaType message.MediaType, mime string) (*message.FileInfo, error) {
	fileHash := crypto.Sha256(file)

	// The upload URL round-trip and the encryption run concurrently.
	var (
		url       string
		encrypted []byte
		mediaKey  []byte
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		urlCh := make(chan string, 1)
		errCh := make(chan error, 1)
		err := session.RequestFileUpload(fileHash, mediaType, func(u string, err error) {
			if err != nil {
				errCh <- err
				return
			}
			urlCh <- u
		})
		if err != nil {
			return fmt.Errorf("could not request file upload: %w", err)
		}
		select {
		case url = <-urlCh:
			return nil
		case err := <-errCh:
			return fmt.Errorf("could not request file upload: %w", err)
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	g.Go(func() error {
		var err error
		encrypted, mediaKey, err = Encrypt(mediaType, file)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	encryptedHash := crypto.Sha256(encrypted)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("hash", base64.StdEncoding.EncodeToString(encryptedHash)); err != nil {
		return nil, err
	}
	part, err := form.CreateFormFile("file", "blob")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(encrypted); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not upload file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upload rejected with status %d", resp.StatusCode)
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid upload response: %w", err)
	}
	if result.URL == "" {
		return nil, fmt.Errorf("upload response without url")
	}

	return &message.FileInfo{
		URL:       result.URL,
		Mime:      mime,
		Sha256:    fileHash,
		EncSha256: encryptedHash,
		Size:      uint64(len(file)),
		Key:       mediaKey,
	}, nil
}

// Download fetches and decrypts a media file referenced by a message.
func Download(ctx context.Context, info message.FileInfo, mediaType message.MediaType) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, info.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not load file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download rejected with status %d", resp.StatusCode)
	}

	encrypted, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not load file: %w", err)
	}
	return Decrypt(info.Key, mediaType, encrypted)
}
