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

// Package message models chat messages and their acknowledgements.
package message

import (
	"crypto/rand"
	"fmt"
	"io"
	"time"

	"github.com/waveline-project/waveline/jid"
)

// ID identifies a chat message. Client-generated ids are 12 bytes (prefix
// 3E B0 plus 10 random bytes) rendered as per-byte uppercase hex.
type ID string

// GenerateID creates a fresh client message id.
func GenerateID() (ID, error) {
	raw := make([]byte, 12)
	raw[0], raw[1] = 0x3E, 0xB0
	if _, err := io.ReadFull(rand.Reader, raw[2:]); err != nil {
		return "", fmt.Errorf("failed to generate message id: %w", err)
	}
	id := ""
	for _, b := range raw {
		id += fmt.Sprintf("%X", b)
	}
	return ID(id), nil
}

// Peer is the counterpart of a message: an individual chat, or a
// participant inside a group chat.
type Peer struct {
	Jid         jid.Jid
	Participant *jid.Jid // group member within a group chat, when known
}

// Direction tells whether a message was sent by us or received.
type Direction struct {
	FromMe bool
	// Remote is the chat the message belongs to: the counterpart for
	// individual chats, the group for group chats.
	Remote jid.Jid
	// Participant is the group member the message came from, for
	// received group messages.
	Participant *jid.Jid
}

// Peer resolves the direction into the counterpart peer.
func (d Direction) Peer() Peer {
	return Peer{Jid: d.Remote, Participant: d.Participant}
}

// AckLevel is the delivery progress of a message.
type AckLevel uint8

const (
	AckPendingSend AckLevel = iota
	AckSend
	AckReceived
	AckRead
	AckPlayed
)

// AckLevelFromJSON maps the numeric ack field of Msg/MsgInfo server events.
func AckLevelFromJSON(v uint8) (AckLevel, error) {
	if v > uint8(AckPlayed) {
		return 0, fmt.Errorf("invalid message ack level %d", v)
	}
	return AckLevel(v), nil
}

// AckLevelFromNode maps the type attribute of a received node.
func AckLevelFromNode(v string) (AckLevel, error) {
	switch v {
	case "message":
		return AckReceived, nil
	case "read":
		return AckRead, nil
	case "played":
		return AckPlayed, nil
	default:
		return 0, fmt.Errorf("invalid message ack level %q", v)
	}
}

// AckSide tells whose copy of the message the ack refers to: Owner is set
// for a message of ours tracked on the peer side, unset for a message we
// received.
type AckSide struct {
	Owner bool
	Peer  Peer
	// GroupAll marks an owner-side ack covering the whole group.
	GroupAll bool
}

// Ack is a delivery acknowledgement.
type Ack struct {
	Level AckLevel
	Time  int64 // unix seconds, 0 when the source carries none
	ID    ID
	Side  AckSide
}

// AckFromServer builds an Ack from a Msg/MsgInfo JSON event, resolving the
// side against the own user jid.
func AckFromServer(id string, level AckLevel, sender, receiver jid.Jid, participant *jid.Jid, t int64, own jid.Jid) Ack {
	side := AckSide{}
	if own == sender {
		side.Owner = true
		side.Peer = Peer{Jid: receiver, Participant: participant}
	} else {
		side.Peer = Peer{Jid: sender, Participant: participant}
	}
	return Ack{Level: level, Time: t, ID: ID(id), Side: side}
}

// AckFromApp builds an Ack from a received node inside an action batch.
func AckFromApp(id ID, level AckLevel, peer jid.Jid, participant *jid.Jid, owner bool) Ack {
	side := AckSide{Owner: owner}
	if owner {
		side.Peer = Peer{Jid: peer}
		side.GroupAll = peer.IsGroup
	} else {
		side.Peer = Peer{Jid: peer, Participant: participant}
	}
	return Ack{Level: level, ID: id, Side: side}
}

// MediaType selects the media key derivation and upload endpoint class.
type MediaType uint8

const (
	MediaImage MediaType = iota
	MediaVideo
	MediaAudio
	MediaDocument
)

// UploadKind is the wire name used in the upload request.
func (t MediaType) UploadKind() string {
	switch t {
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	default:
		return "document"
	}
}

// KeyInfo is the HKDF info string for the media cipher keys.
func (t MediaType) KeyInfo() []byte {
	switch t {
	case MediaImage:
		return []byte("WhatsApp Image Keys")
	case MediaVideo:
		return []byte("WhatsApp Video Keys")
	case MediaAudio:
		return []byte("WhatsApp Audio Keys")
	default:
		return []byte("WhatsApp Document Keys")
	}
}

// FileInfo describes an uploaded media file as referenced from a message.
type FileInfo struct {
	URL       string
	Mime      string
	Sha256    []byte
	EncSha256 []byte
	Size      uint64
	Key       []byte
}

// Content is one of the chat message payload variants.
type Content interface {
	isContent()
}

type Text string

type Image struct {
	File          FileInfo
	Height, Width uint32
	Caption       string
	Thumbnail     []byte
}

type Audio struct {
	File     FileInfo
	Duration time.Duration
}

type Video struct {
	File          FileInfo
	Height, Width uint32
	Duration      time.Duration
	Caption       string
	Thumbnail     []byte
}

type Document struct {
	File     FileInfo
	FileName string
}

type Location struct {
	DegreesLatitude  float64
	DegreesLongitude float64
	Name             string
	Address          string
	URL              string
	Thumbnail        []byte
}

type LiveLocation struct {
	DegreesLatitude                   float64
	DegreesLongitude                  float64
	AccuracyInMeters                  uint32
	SpeedInMps                        float32
	DegreesClockwiseFromMagneticNorth uint32
	Caption                           string
	SequenceNumber                    int64
	Thumbnail                         []byte
}

type Contact struct {
	DisplayName string
	Vcard       string
}

type ContactsArray struct {
	DisplayName string
	Contacts    []Contact
}

type ExtendedText struct {
	Text        string
	Title       string
	Description string
	Thumbnail   []byte
}

// Protocol is a protocol message, e.g. a revocation of an earlier message.
type Protocol struct {
	Key  Key
	Type string
}

type Call struct {
	CallKey []byte
}

func (Text) isContent()          {}
func (Image) isContent()         {}
func (Audio) isContent()         {}
func (Video) isContent()         {}
func (Document) isContent()      {}
func (Location) isContent()      {}
func (LiveLocation) isContent()  {}
func (Contact) isContent()       {}
func (ContactsArray) isContent() {}
func (ExtendedText) isContent()  {}
func (Protocol) isContent()      {}
func (Call) isContent()          {}

// Key mirrors the message key of the inner schema.
type Key struct {
	RemoteJid   string
	FromMe      bool
	ID          string
	Participant string
}

// ChatMessage is one chat message with its routing metadata.
type ChatMessage struct {
	ID        ID
	Direction Direction
	Time      time.Time
	Content   Content
}
