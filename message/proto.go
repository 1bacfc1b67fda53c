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

package message

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/waveline-project/waveline/jid"
)

// The inner chat message schema (WebMessageInfo) is read and written
// directly on the protobuf wire format. The core only needs the routing
// 3-tuple, the timestamp and the content variant; unknown fields are
// skipped, unknown variants surface as Unknown.

// ErrSchema reports an undecodable WebMessageInfo payload.
var ErrSchema = errors.New("invalid chat message payload")

// Unknown carries a content variant the client does not model.
type Unknown struct {
	Raw []byte
}

func (Unknown) isContent() {}

// WebMessageInfo field numbers.
const (
	fwmiKey       = 1
	fwmiMessage   = 2
	fwmiTimestamp = 3
	fwmiStatus    = 4

	statusPending = 1
)

// MessageKey field numbers.
const (
	fkeyRemoteJid   = 1
	fkeyFromMe      = 2
	fkeyID          = 3
	fkeyParticipant = 4
)

// Message variant field numbers.
const (
	fmsgConversation  = 1
	fmsgImage         = 3
	fmsgContact       = 4
	fmsgLocation      = 5
	fmsgExtendedText  = 6
	fmsgDocument      = 7
	fmsgAudio         = 8
	fmsgVideo         = 9
	fmsgCall          = 10
	fmsgProtocol      = 12
	fmsgContactsArray = 13
	fmsgLiveLocation  = 18
)

// Unmarshal decodes a WebMessageInfo payload into a ChatMessage.
func Unmarshal(data []byte) (*ChatMessage, error) {
	var (
		key       Key
		content   Content
		timestamp uint64
	)

	err := scanFields(data, func(num protowire.Number, typ protowire.Type, f field) error {
		switch num {
		case fwmiKey:
			return scanKey(f.bytes, &key)
		case fwmiMessage:
			var err error
			content, err = scanContent(f.bytes)
			return err
		case fwmiTimestamp:
			timestamp = f.varint
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	if key.ID == "" {
		return nil, fmt.Errorf("%w: missing message key", ErrSchema)
	}
	if content == nil {
		content = Unknown{}
	}

	direction, err := directionFromKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	return &ChatMessage{
		ID:        ID(key.ID),
		Direction: direction,
		Time:      time.Unix(int64(timestamp), 0).UTC(),
		Content:   content,
	}, nil
}

func directionFromKey(key Key) (Direction, error) {
	remote, err := jid.Parse(key.RemoteJid)
	if err != nil {
		return Direction{}, err
	}
	d := Direction{FromMe: key.FromMe, Remote: remote}
	if key.Participant != "" {
		p, err := jid.Parse(key.Participant)
		if err != nil {
			return Direction{}, err
		}
		d.Participant = &p
	}
	return d, nil
}

// Marshal encodes the ChatMessage as a WebMessageInfo payload with status
// PENDING. Only client-sendable content variants are supported.
func (m *ChatMessage) Marshal() ([]byte, error) {
	content, err := appendContent(nil, m.Content)
	if err != nil {
		return nil, err
	}

	var key []byte
	key = protowire.AppendTag(key, fkeyRemoteJid, protowire.BytesType)
	key = protowire.AppendString(key, m.Direction.Remote.MessageJid())
	key = protowire.AppendTag(key, fkeyFromMe, protowire.VarintType)
	key = protowire.AppendVarint(key, 1)
	key = protowire.AppendTag(key, fkeyID, protowire.BytesType)
	key = protowire.AppendString(key, string(m.ID))

	var out []byte
	out = protowire.AppendTag(out, fwmiKey, protowire.BytesType)
	out = protowire.AppendBytes(out, key)
	out = protowire.AppendTag(out, fwmiMessage, protowire.BytesType)
	out = protowire.AppendBytes(out, content)
	out = protowire.AppendTag(out, fwmiTimestamp, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(m.Time.Unix()))
	out = protowire.AppendTag(out, fwmiStatus, protowire.VarintType)
	out = protowire.AppendVarint(out, statusPending)
	return out, nil
}

func appendContent(out []byte, content Content) ([]byte, error) {
	switch c := content.(type) {
	case Text:
		out = protowire.AppendTag(out, fmsgConversation, protowire.BytesType)
		out = protowire.AppendString(out, string(c))
		return out, nil

	case Image:
		var img []byte
		img = appendString(img, 1, c.File.URL)
		img = appendString(img, 2, c.File.Mime)
		img = appendString(img, 3, c.Caption)
		img = appendBytes(img, 4, c.File.Sha256)
		img = appendVarint(img, 5, c.File.Size)
		img = appendVarint(img, 6, uint64(c.Height))
		img = appendVarint(img, 7, uint64(c.Width))
		img = appendBytes(img, 8, c.File.Key)
		img = appendBytes(img, 9, c.File.EncSha256)
		img = appendBytes(img, 16, c.Thumbnail)
		out = protowire.AppendTag(out, fmsgImage, protowire.BytesType)
		out = protowire.AppendBytes(out, img)
		return out, nil

	case Document:
		var doc []byte
		doc = appendString(doc, 1, c.File.URL)
		doc = appendString(doc, 2, c.File.Mime)
		doc = appendBytes(doc, 4, c.File.Sha256)
		doc = appendVarint(doc, 5, c.File.Size)
		doc = appendBytes(doc, 7, c.File.Key)
		doc = appendString(doc, 8, c.FileName)
		doc = appendBytes(doc, 9, c.File.EncSha256)
		out = protowire.AppendTag(out, fmsgDocument, protowire.BytesType)
		out = protowire.AppendBytes(out, doc)
		return out, nil

	default:
		return nil, fmt.Errorf("sending %T content is not supported", content)
	}
}

func appendString(out []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return out
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendString(out, s)
}

func appendBytes(out []byte, num protowire.Number, b []byte) []byte {
	if len(b) == 0 {
		return out
	}
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendBytes(out, b)
}

func appendVarint(out []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return out
	}
	out = protowire.AppendTag(out, num, protowire.VarintType)
	return protowire.AppendVarint(out, v)
}

// field carries the decoded value of one wire field; exactly one member is
// meaningful depending on the wire type.
type field struct {
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
}

// scanFields walks every field of a protobuf message, skipping what the
// callback does not consume.
func scanFields(data []byte, fn func(num protowire.Number, typ protowire.Type, f field) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		var f field
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.varint = v
			data = data[n:]
		case protowire.Fixed32Type:
			v, n := protowire.ConsumeFixed32(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.fixed32 = v
			data = data[n:]
		case protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.fixed64 = v
			data = data[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			f.bytes = v
			data = data[n:]
		default:
			return fmt.Errorf("unsupported wire type %d for field %d", typ, num)
		}

		if err := fn(num, typ, f); err != nil {
			return err
		}
	}
	return nil
}

func scanKey(data []byte, key *Key) error {
	return scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case fkeyRemoteJid:
			key.RemoteJid = string(f.bytes)
		case fkeyFromMe:
			key.FromMe = f.varint != 0
		case fkeyID:
			key.ID = string(f.bytes)
		case fkeyParticipant:
			key.Participant = string(f.bytes)
		}
		return nil
	})
}

func scanContent(data []byte) (Content, error) {
	var content Content
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case fmsgConversation:
			content = Text(f.bytes)
		case fmsgImage:
			img, err := scanImage(f.bytes)
			if err != nil {
				return err
			}
			content = img
		case fmsgContact:
			content = scanContact(f.bytes)
		case fmsgLocation:
			loc, err := scanLocation(f.bytes)
			if err != nil {
				return err
			}
			content = loc
		case fmsgExtendedText:
			content = scanExtendedText(f.bytes)
		case fmsgDocument:
			doc, err := scanDocument(f.bytes)
			if err != nil {
				return err
			}
			content = doc
		case fmsgAudio:
			audio, err := scanAudio(f.bytes)
			if err != nil {
				return err
			}
			content = audio
		case fmsgVideo:
			video, err := scanVideo(f.bytes)
			if err != nil {
				return err
			}
			content = video
		case fmsgCall:
			content = scanCall(f.bytes)
		case fmsgProtocol:
			p, err := scanProtocol(f.bytes)
			if err != nil {
				return err
			}
			content = p
		case fmsgContactsArray:
			content = scanContactsArray(f.bytes)
		case fmsgLiveLocation:
			loc, err := scanLiveLocation(f.bytes)
			if err != nil {
				return err
			}
			content = loc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if content == nil {
		content = Unknown{Raw: data}
	}
	return content, nil
}

func scanImage(data []byte) (Image, error) {
	var img Image
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			img.File.URL = string(f.bytes)
		case 2:
			img.File.Mime = string(f.bytes)
		case 3:
			img.Caption = string(f.bytes)
		case 4:
			img.File.Sha256 = f.bytes
		case 5:
			img.File.Size = f.varint
		case 6:
			img.Height = uint32(f.varint)
		case 7:
			img.Width = uint32(f.varint)
		case 8:
			img.File.Key = f.bytes
		case 9:
			img.File.EncSha256 = f.bytes
		case 16:
			img.Thumbnail = f.bytes
		}
		return nil
	})
	return img, err
}

func scanAudio(data []byte) (Audio, error) {
	var audio Audio
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			audio.File.URL = string(f.bytes)
		case 2:
			audio.File.Mime = string(f.bytes)
		case 3:
			audio.File.Sha256 = f.bytes
		case 4:
			audio.File.Size = f.varint
		case 5:
			audio.Duration = time.Duration(f.varint) * time.Second
		case 7:
			audio.File.Key = f.bytes
		case 8:
			audio.File.EncSha256 = f.bytes
		}
		return nil
	})
	return audio, err
}

func scanVideo(data []byte) (Video, error) {
	var video Video
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			video.File.URL = string(f.bytes)
		case 2:
			video.File.Mime = string(f.bytes)
		case 3:
			video.File.Sha256 = f.bytes
		case 4:
			video.File.Size = f.varint
		case 5:
			video.Duration = time.Duration(f.varint) * time.Second
		case 6:
			video.File.Key = f.bytes
		case 7:
			video.Caption = string(f.bytes)
		case 9:
			video.Height = uint32(f.varint)
		case 10:
			video.Width = uint32(f.varint)
		case 11:
			video.File.EncSha256 = f.bytes
		case 16:
			video.Thumbnail = f.bytes
		}
		return nil
	})
	return video, err
}

func scanDocument(data []byte) (Document, error) {
	var doc Document
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			doc.File.URL = string(f.bytes)
		case 2:
			doc.File.Mime = string(f.bytes)
		case 4:
			doc.File.Sha256 = f.bytes
		case 5:
			doc.File.Size = f.varint
		case 7:
			doc.File.Key = f.bytes
		case 8:
			doc.FileName = string(f.bytes)
		case 9:
			doc.File.EncSha256 = f.bytes
		}
		return nil
	})
	return doc, err
}

func scanLocation(data []byte) (Location, error) {
	var loc Location
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			loc.DegreesLatitude = math.Float64frombits(f.fixed64)
		case 2:
			loc.DegreesLongitude = math.Float64frombits(f.fixed64)
		case 3:
			loc.Name = string(f.bytes)
		case 4:
			loc.Address = string(f.bytes)
		case 5:
			loc.URL = string(f.bytes)
		case 16:
			loc.Thumbnail = f.bytes
		}
		return nil
	})
	return loc, err
}

func scanLiveLocation(data []byte) (LiveLocation, error) {
	var loc LiveLocation
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			loc.DegreesLatitude = math.Float64frombits(f.fixed64)
		case 2:
			loc.DegreesLongitude = math.Float64frombits(f.fixed64)
		case 3:
			loc.AccuracyInMeters = uint32(f.varint)
		case 4:
			loc.SpeedInMps = math.Float32frombits(f.fixed32)
		case 5:
			loc.DegreesClockwiseFromMagneticNorth = uint32(f.varint)
		case 6:
			loc.Caption = string(f.bytes)
		case 7:
			loc.SequenceNumber = int64(f.varint)
		case 16:
			loc.Thumbnail = f.bytes
		}
		return nil
	})
	return loc, err
}

func scanContact(data []byte) Contact {
	var c Contact
	_ = scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			c.DisplayName = string(f.bytes)
		case 16:
			c.Vcard = string(f.bytes)
		}
		return nil
	})
	return c
}

func scanContactsArray(data []byte) ContactsArray {
	var arr ContactsArray
	_ = scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			arr.DisplayName = string(f.bytes)
		case 2:
			arr.Contacts = append(arr.Contacts, scanContact(f.bytes))
		}
		return nil
	})
	return arr
}

func scanExtendedText(data []byte) ExtendedText {
	var ext ExtendedText
	_ = scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			ext.Text = string(f.bytes)
		case 5:
			ext.Description = string(f.bytes)
		case 6:
			ext.Title = string(f.bytes)
		case 16:
			ext.Thumbnail = f.bytes
		}
		return nil
	})
	return ext
}

func scanProtocol(data []byte) (Protocol, error) {
	var p Protocol
	err := scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		switch num {
		case 1:
			return scanKey(f.bytes, &p.Key)
		case 2:
			switch f.varint {
			case 0:
				p.Type = "REVOKE"
			default:
				p.Type = fmt.Sprintf("TYPE_%d", f.varint)
			}
		}
		return nil
	})
	return p, err
}

func scanCall(data []byte) Call {
	var c Call
	_ = scanFields(data, func(num protowire.Number, _ protowire.Type, f field) error {
		if num == 1 {
			c.CallKey = f.bytes
		}
		return nil
	})
	return c
}
