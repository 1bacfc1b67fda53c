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

package node

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"unicode/utf8"

	"github.com/waveline-project/waveline/jid"
)

const (
	tagListEmpty = 0
	tokenTagBase = 3
	tokenTagMax  = 161
	tagDict0     = 236
	tagDict3     = 239
	tagList8     = 248
	tagList16    = 249
	tagJidPair   = 250
	tagHex8      = 251
	tagBinary8   = 252
	tagBinary20  = 253
	tagBinary32  = 254
	tagNibble8   = 255

	binary20Max = 1<<20 - 1
)

// ErrInvalidTag reports a wire tag outside the protocol's value space.
var ErrInvalidTag = errors.New("invalid node wire tag")

// Marshal serializes the tree.
func Marshal(n Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeNode(&buf, n); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal parses a serialized tree.
func Unmarshal(data []byte) (Node, error) {
	r := bytes.NewReader(data)
	n, err := readNode(r)
	if err != nil {
		return Node{}, fmt.Errorf("node has invalid binary format: %w", err)
	}
	return n, nil
}

func writeNode(buf *bytes.Buffer, n Node) error {
	listSize := 1 + 2*len(n.Attrs)
	if n.Content != nil {
		listSize++
	}
	writeListSize(buf, listSize)

	if err := writeString(buf, n.Desc); err != nil {
		return err
	}

	keys := make([]string, 0, len(n.Attrs))
	for k := range n.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := writeString(buf, k); err != nil {
			return err
		}
		if err := writeValue(buf, n.Attrs[k]); err != nil {
			return fmt.Errorf("attribute %q: %w", k, err)
		}
	}

	if n.Content != nil {
		if err := writeValue(buf, n.Content); err != nil {
			return fmt.Errorf("content of %q: %w", n.Desc, err)
		}
	}
	return nil
}

func writeValue(buf *bytes.Buffer, v Value) error {
	switch v := v.(type) {
	case String:
		return writeString(buf, string(v))
	case Binary:
		writeBinary(buf, v)
		return nil
	case Jid:
		buf.WriteByte(tagJidPair)
		id, suffix := jid.Jid(v).NodePair()
		if nibblePackable(id) {
			writeNibble(buf, id)
		} else if err := writeString(buf, id); err != nil {
			return err
		}
		return writeString(buf, suffix)
	case List:
		writeListSize(buf, len(v))
		for _, child := range v {
			if err := writeNode(buf, child); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported value type %T", v)
	}
}

func writeString(buf *bytes.Buffer, s string) error {
	if tag, ok := tokenIndex[s]; ok {
		buf.WriteByte(tag)
		return nil
	}
	writeBinary(buf, []byte(s))
	return nil
}

func writeBinary(buf *bytes.Buffer, b []byte) {
	switch n := len(b); {
	case n <= 0xFF:
		buf.WriteByte(tagBinary8)
		buf.WriteByte(byte(n))
	case n <= binary20Max:
		buf.WriteByte(tagBinary20)
		buf.WriteByte(byte(n >> 16)) // top nibble stays zero
		buf.WriteByte(byte(n >> 8))
		buf.WriteByte(byte(n))
	default:
		buf.WriteByte(tagBinary32)
		var l [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(n))
		buf.Write(l[:])
	}
	buf.Write(b)
}

func writeListSize(buf *bytes.Buffer, size int) {
	switch {
	case size == 0:
		buf.WriteByte(tagListEmpty)
	case size <= 0xFF:
		buf.WriteByte(tagList8)
		buf.WriteByte(byte(size))
	default:
		buf.WriteByte(tagList16)
		var l [2]byte
		binary.BigEndian.PutUint16(l[:], uint16(size))
		buf.Write(l[:])
	}
}

// nibblePackable reports whether s fits the nibble alphabet and count byte.
func nibblePackable(s string) bool {
	if len(s) == 0 || len(s) > 254 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if c := s[i]; (c < '0' || c > '9') && c != '-' && c != '.' {
			return false
		}
	}
	return true
}

func writeNibble(buf *bytes.Buffer, s string) {
	buf.WriteByte(tagNibble8)
	// High bit flags odd length; decoders ignore it and stop on the
	// terminator nibble instead.
	buf.WriteByte(byte(len(s)%2)<<7 | byte((len(s)+1)/2))

	var pending byte
	havePending := false
	for i := 0; i < len(s); i++ {
		n := charToNibble(s[i])
		if havePending {
			buf.WriteByte(pending<<4 | n)
			havePending = false
		} else {
			pending = n
			havePending = true
		}
	}
	if havePending {
		buf.WriteByte(pending<<4 | 0x0F)
	}
}

func charToNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c == '-':
		return 10
	case c == '.':
		return 11
	default:
		panic(fmt.Sprintf("invalid nibble char %q", c))
	}
}

func nibbleToChar(n byte) (byte, error) {
	switch {
	case n <= 9:
		return '0' + n, nil
	case n == 10:
		return '-', nil
	case n == 11:
		return '.', nil
	default:
		return 0, fmt.Errorf("%w: nibble %d", ErrInvalidTag, n)
	}
}

func readNode(r *bytes.Reader) (Node, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Node{}, err
	}
	listSize, err := readListSize(tag, r)
	if err != nil {
		return Node{}, fmt.Errorf("couldn't read attribute count: %w", err)
	}
	if listSize == 0 {
		return Node{}, fmt.Errorf("%w: empty node", ErrInvalidTag)
	}

	descVal, err := readValueTagged(r, false)
	if err != nil {
		return Node{}, fmt.Errorf("couldn't read description: %w", err)
	}
	desc, err := valueToString(descVal)
	if err != nil {
		return Node{}, err
	}

	attrs := make(map[string]Value, (listSize-1)/2)
	for i := 0; i < (listSize-1)/2; i++ {
		nameVal, err := readValueTagged(r, false)
		if err != nil {
			return Node{}, fmt.Errorf("couldn't read attribute name of %q: %w", desc, err)
		}
		name, err := valueToString(nameVal)
		if err != nil {
			return Node{}, err
		}
		value, err := readValueTagged(r, false)
		if err != nil {
			return Node{}, fmt.Errorf("couldn't read attribute %q of %q: %w", name, desc, err)
		}
		attrs[name] = value
	}

	var content Value
	if listSize%2 == 0 {
		if content, err = readValueTagged(r, true); err != nil {
			return Node{}, fmt.Errorf("couldn't read content of %q: %w", desc, err)
		}
	}

	return Node{Desc: desc, Attrs: attrs, Content: content}, nil
}

// readValueTagged reads the tag byte and the value it introduces. Top-level
// node content keeps binary payloads raw; elsewhere valid UTF-8 byte values
// decode as strings, since the wire does not distinguish the two.
func readValueTagged(r *bytes.Reader, rawBinary bool) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return readValue(tag, r, rawBinary)
}

func readValue(tag byte, r *bytes.Reader, rawBinary bool) (Value, error) {
	switch {
	case tag >= tokenTagBase && tag <= tokenTagMax:
		return String(tokens[tag-tokenTagBase]), nil

	case tag >= tagDict0 && tag <= tagDict3:
		// Secondary dictionaries are reserved; consume the index byte.
		if _, err := r.ReadByte(); err != nil {
			return nil, err
		}
		return List{}, nil

	case tag == tagListEmpty || tag == tagList8 || tag == tagList16:
		size, err := readListSize(tag, r)
		if err != nil {
			return nil, err
		}
		list := make(List, 0, size)
		for i := 0; i < size; i++ {
			child, err := readNode(r)
			if err != nil {
				return nil, fmt.Errorf("couldn't read list item %d of %d: %w", i, size, err)
			}
			list = append(list, child)
		}
		return list, nil

	case tag == tagBinary8 || tag == tagBinary20 || tag == tagBinary32:
		buf, err := readBinary(tag, r)
		if err != nil {
			return nil, err
		}
		if !rawBinary && utf8.Valid(buf) {
			return String(buf), nil
		}
		return Binary(buf), nil

	case tag == tagJidPair:
		idVal, err := readValueTagged(r, false)
		if err != nil {
			return nil, err
		}
		id, err := valueToString(idVal)
		if err != nil {
			return nil, err
		}
		suffixVal, err := readValueTagged(r, false)
		if err != nil {
			return nil, err
		}
		suffix, err := valueToString(suffixVal)
		if err != nil {
			return nil, err
		}
		j, err := jid.FromNodePair(id, suffix)
		if err != nil {
			return nil, err
		}
		return Jid(j), nil

	case tag == tagHex8 || tag == tagNibble8:
		return readPacked(tag, r)

	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidTag, tag)
	}
}

func readPacked(tag byte, r *bytes.Reader) (Value, error) {
	start, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	count := int(start & 0x7F)
	out := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if tag == tagHex8 {
			out = append(out, hexDigit(b>>4), hexDigit(b&0x0F))
			continue
		}
		hi := (b >> 4) & 0x0F
		if hi == 0x0F {
			return String(out), nil
		}
		c, err := nibbleToChar(hi)
		if err != nil {
			return nil, err
		}
		out = append(out, c)

		lo := b & 0x0F
		if lo == 0x0F {
			return String(out), nil
		}
		if c, err = nibbleToChar(lo); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return String(out), nil
}

func hexDigit(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'A' + n - 10
}

func readListSize(tag byte, r *bytes.Reader) (int, error) {
	switch tag {
	case tagListEmpty:
		return 0, nil
	case tagList8:
		b, err := r.ReadByte()
		return int(b), err
	case tagList16:
		var l [2]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return 0, err
		}
		return int(binary.BigEndian.Uint16(l[:])), nil
	default:
		return 0, fmt.Errorf("%w: list size tag %d", ErrInvalidTag, tag)
	}
}

func readBinary(tag byte, r *bytes.Reader) ([]byte, error) {
	var size int
	switch tag {
	case tagBinary8:
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size = int(b)
	case tagBinary20:
		var l [3]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return nil, err
		}
		size = (int(l[0])&0x0F)<<16 | int(l[1])<<8 | int(l[2])
	case tagBinary32:
		var l [4]byte
		if _, err := io.ReadFull(r, l[:]); err != nil {
			return nil, err
		}
		size = int(binary.BigEndian.Uint32(l[:]))
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func valueToString(v Value) (string, error) {
	switch v := v.(type) {
	case String:
		return string(v), nil
	case Binary:
		return string(v), nil
	case Jid:
		return jid.Jid(v).String(), nil
	default:
		return "", fmt.Errorf("%w: expected string value, got %T", ErrInvalidTag, v)
	}
}
