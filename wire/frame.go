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

// Package wire implements the tag/payload frame layer on top of the
// websocket. Every frame starts with an ASCII tag terminated by ','; the
// remainder is either a JSON document or an encrypted binary payload.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
)

// ErrMalformedFrame reports a websocket message that does not follow the
// tag,payload layout.
var ErrMalformedFrame = errors.New("malformed frame")

// Payload is the frame payload variant: JSON, Binary, Empty or Pong.
type Payload interface {
	isPayload()
}

// JSON is a text frame carrying a JSON document.
type JSON json.RawMessage

// Binary is an encrypted binary payload. Metric tags outgoing frames;
// inbound frames always carry MetricNone.
type Binary struct {
	Metric Metric
	Data   []byte
}

// Empty is a bare "tag," text frame, used to acknowledge pings.
type Empty struct{}

// Pong is a "!..." text frame sent by the peer; it carries no tag.
type Pong struct{}

func (JSON) isPayload()   {}
func (Binary) isPayload() {}
func (Empty) isPayload()  {}
func (Pong) isPayload()   {}

// Frame is one websocket message.
type Frame struct {
	Tag     string
	Payload Payload
}

// Marshal renders the frame into a websocket message. The returned message
// type is one of websocket.TextMessage or websocket.BinaryMessage.
func (f Frame) Marshal() (messageType int, data []byte, err error) {
	switch p := f.Payload.(type) {
	case JSON:
		return websocket.TextMessage, []byte(f.Tag + "," + string(p)), nil
	case Binary:
		var buf bytes.Buffer
		buf.WriteString(f.Tag)
		if p.Metric != MetricNone {
			buf.WriteByte(',')
			buf.WriteByte(byte(p.Metric))
			buf.WriteByte(0x80)
		} else {
			buf.WriteString(",,")
		}
		buf.Write(p.Data)
		return websocket.BinaryMessage, buf.Bytes(), nil
	case Empty:
		return websocket.TextMessage, []byte(f.Tag + ","), nil
	default:
		return 0, nil, fmt.Errorf("%w: unsendable payload %T", ErrMalformedFrame, f.Payload)
	}
}

// Unmarshal splits a received websocket message into tag and payload.
func Unmarshal(messageType int, data []byte) (Frame, error) {
	switch messageType {
	case websocket.TextMessage:
		text := string(data)
		sep := strings.IndexByte(text, ',')
		if sep < 0 {
			if strings.HasPrefix(text, "!") {
				return Frame{Payload: Pong{}}, nil
			}
			return Frame{}, fmt.Errorf("%w: text frame without tag", ErrMalformedFrame)
		}
		tag, payload := text[:sep], text[sep+1:]
		if payload == "" {
			return Frame{Tag: tag, Payload: Empty{}}, nil
		}
		if !json.Valid([]byte(payload)) {
			return Frame{}, fmt.Errorf("%w: invalid json payload for tag %q", ErrMalformedFrame, tag)
		}
		return Frame{Tag: tag, Payload: JSON(payload)}, nil

	case websocket.BinaryMessage:
		sep := bytes.IndexByte(data, ',')
		if sep < 0 {
			return Frame{}, fmt.Errorf("%w: binary frame without tag", ErrMalformedFrame)
		}
		return Frame{Tag: string(data[:sep]), Payload: Binary{Data: data[sep+1:]}}, nil

	default:
		return Frame{}, fmt.Errorf("%w: unsupported websocket message type %d", ErrMalformedFrame, messageType)
	}
}
