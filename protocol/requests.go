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

package protocol

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
)

// Client version triple and user agent pair sent with the init request.
var (
	clientVersion = []int{0, 3, 416}
	userAgent     = []string{"ww-rs", "ww-rs"}
)

func marshalArray(parts ...any) []byte {
	data, err := json.Marshal(parts)
	if err != nil {
		// Only marshals plain strings, numbers, booleans and slices.
		panic(err)
	}
	return data
}

// BuildInitRequest builds the handshake opener for both pairing and
// resumption.
func BuildInitRequest(clientID []byte) []byte {
	return marshalArray("admin", "init", clientVersion, userAgent,
		base64.StdEncoding.EncodeToString(clientID), true)
}

// BuildTakeoverRequest builds the login request used for session
// resumption.
func BuildTakeoverRequest(clientToken, serverToken string, clientID []byte) []byte {
	return marshalArray("admin", "login", clientToken, serverToken,
		base64.StdEncoding.EncodeToString(clientID), "takeover")
}

// BuildChallengeResponse answers a server login challenge.
func BuildChallengeResponse(signature []byte, serverToken string, clientID []byte) []byte {
	return marshalArray("admin", "challenge",
		base64.StdEncoding.EncodeToString(signature), serverToken,
		base64.StdEncoding.EncodeToString(clientID))
}

// BuildPresenceSubscribe subscribes to a peer's presence updates.
func BuildPresenceSubscribe(j jid.Jid) []byte {
	return marshalArray("action", "presence", "subscribe", j.String())
}

// BuildFileUploadRequest asks for a signed media upload URL.
func BuildFileUploadRequest(hash []byte, mediaType message.MediaType) []byte {
	return marshalArray("action", "encr_upload", mediaType.UploadKind(),
		base64.StdEncoding.EncodeToString(hash))
}

// BuildProfilePictureRequest queries a profile picture thumbnail URL.
func BuildProfilePictureRequest(j jid.Jid) []byte {
	return marshalArray("query", "ProfilePicThumb", j.String())
}

// BuildProfileStatusRequest queries a profile status text.
func BuildProfileStatusRequest(j jid.Jid) []byte {
	return marshalArray("query", "Status", j.String())
}

// BuildGroupMetadataRequest queries group metadata.
func BuildGroupMetadataRequest(j jid.Jid) []byte {
	return marshalArray("query", "GroupMetadata", j.String())
}

// ParseResponseStatus checks the status field of a JSON reply; a missing
// status passes.
func ParseResponseStatus(raw []byte) error {
	var body struct {
		Status *int `json:"status"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("invalid json response: %w", err)
	}
	if body.Status != nil && *body.Status != 200 {
		return fmt.Errorf("received status code %d", *body.Status)
	}
	return nil
}

// ParseInitResponse extracts the pairing reference from the init reply.
func ParseInitResponse(raw []byte) (string, error) {
	if err := ParseResponseStatus(raw); err != nil {
		return "", err
	}
	var body struct {
		Ref string `json:"ref"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.Ref == "" {
		return "", &FieldError{Field: "ref"}
	}
	return body.Ref, nil
}

// ParseFileUploadResponse extracts the signed upload URL.
func ParseFileUploadResponse(raw []byte) (string, error) {
	if err := ParseResponseStatus(raw); err != nil {
		return "", err
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.URL == "" {
		return "", &FieldError{Field: "url"}
	}
	return body.URL, nil
}

// ParseProfilePictureResponse extracts the picture URL, "" when unset.
func ParseProfilePictureResponse(raw []byte) string {
	var body struct {
		EURL string `json:"eurl"`
	}
	_ = json.Unmarshal(raw, &body)
	return body.EURL
}

// ParseProfileStatusResponse extracts the status text, "" when unset.
func ParseProfileStatusResponse(raw []byte) string {
	var body struct {
		Status string `json:"status"`
	}
	_ = json.Unmarshal(raw, &body)
	return body.Status
}

// ParseGroupMetadataResponse decodes a GroupMetadata query reply.
func ParseGroupMetadataResponse(raw []byte) (*GroupMetadata, error) {
	if err := ParseResponseStatus(raw); err != nil {
		return nil, err
	}
	var body struct {
		ID           string `json:"id"`
		Owner        string `json:"owner"`
		Creation     int64  `json:"creation"`
		Subject      string `json:"subject"`
		SubjectTime  int64  `json:"subjectTime"`
		SubjectOwner string `json:"subjectOwner"`
		Participants []struct {
			ID      string `json:"id"`
			IsAdmin bool   `json:"isAdmin"`
		} `json:"participants"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}

	id, err := jid.Parse(body.ID)
	if err != nil {
		return nil, err
	}
	owner, err := jid.Parse(body.Owner)
	if err != nil {
		return nil, err
	}
	subjectOwner, err := jid.Parse(body.SubjectOwner)
	if err != nil {
		return nil, err
	}

	meta := &GroupMetadata{
		ID:           id,
		Owner:        &owner,
		CreationTime: body.Creation,
		Subject:      body.Subject,
		SubjectOwner: subjectOwner,
		SubjectTime:  body.SubjectTime,
	}
	for _, p := range body.Participants {
		j, err := jid.Parse(p.ID)
		if err != nil {
			return nil, err
		}
		meta.Participants = append(meta.Participants, GroupParticipant{Jid: j, IsAdmin: p.IsAdmin})
	}
	return meta, nil
}
