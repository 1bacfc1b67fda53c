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

// Package node implements the compact binary tree encoding exchanged inside
// encrypted frames. A tree consists of a description, a unique-keyed
// attribute map, and an optional content value.
package node

import (
	"fmt"

	"github.com/waveline-project/waveline/jid"
)

// Value is a node attribute or content value. The concrete types are
// String, Binary, Jid and (content only) List.
type Value interface {
	isValue()
}

// String is a text value. Strings matching a dictionary token are encoded
// as a single token byte, all others as length-prefixed bytes; packed
// nibbles are only used for Jid ids.
type String string

// Binary is a raw byte value.
type Binary []byte

// Jid is an identifier value encoded as a JID_PAIR.
type Jid jid.Jid

// List is a list-of-nodes content value.
type List []Node

func (String) isValue() {}
func (Binary) isValue() {}
func (Jid) isValue()    {}
func (List) isValue()   {}

// Node is one element of the tree.
type Node struct {
	Desc    string
	Attrs   map[string]Value
	Content Value // nil means no content
}

// New builds a node with the given description, attributes and content.
func New(desc string, attrs map[string]Value, content Value) Node {
	if attrs == nil {
		attrs = map[string]Value{}
	}
	return Node{Desc: desc, Attrs: attrs, Content: content}
}

// AttrError reports a missing or mistyped node attribute.
type AttrError struct {
	Attr string
}

func (e *AttrError) Error() string {
	return fmt.Sprintf("missing node attribute %q", e.Attr)
}

// StringAttr returns the attribute as text. Jid values render their surface
// form, mirroring the wire where both arrive as interchangeable encodings.
func (n Node) StringAttr(key string) (string, error) {
	v, ok := n.Attrs[key]
	if !ok {
		return "", &AttrError{Attr: key}
	}
	switch v := v.(type) {
	case String:
		return string(v), nil
	case Binary:
		return string(v), nil
	case Jid:
		return jid.Jid(v).String(), nil
	default:
		return "", fmt.Errorf("attribute %q is not a string", key)
	}
}

// JidAttr returns the attribute as a Jid.
func (n Node) JidAttr(key string) (jid.Jid, error) {
	v, ok := n.Attrs[key]
	if !ok {
		return jid.Jid{}, &AttrError{Attr: key}
	}
	switch v := v.(type) {
	case Jid:
		return jid.Jid(v), nil
	case String:
		return jid.Parse(string(v))
	default:
		return jid.Jid{}, fmt.Errorf("attribute %q is not a jid", key)
	}
}

// Children returns the content as a node list, or nil.
func (n Node) Children() List {
	if l, ok := n.Content.(List); ok {
		return l
	}
	return nil
}

// ContentString returns string-ish content as text.
func (n Node) ContentString() (string, error) {
	switch v := n.Content.(type) {
	case String:
		return string(v), nil
	case Binary:
		return string(v), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("node %q content is not a string", n.Desc)
	}
}
