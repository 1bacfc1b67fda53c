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

package jid

import (
	"fmt"
	"strings"
)

// Suffixes used on the wire. Individuals appear as c.us in the companion
// protocol and as s.whatsapp.net inside chat message keys.
const (
	SuffixUser      = "c.us"
	SuffixGroup     = "g.us"
	SuffixMessage   = "s.whatsapp.net"
	SuffixBroadcast = "broadcast"
)

// Jid identifies either an individual or a group in the peer's namespace.
// The id of an individual is the international phone number without the
// leading +; group ids are alphanumeric with '-'.
type Jid struct {
	ID      string
	IsGroup bool
}

// Parse decodes the surface form <id>@<suffix>.
func Parse(s string) (Jid, error) {
	at := strings.IndexByte(s, '@')
	if at < 0 {
		return Jid{}, fmt.Errorf("jid %q missing @", s)
	}
	id, suffix := s[:at], s[at+1:]
	isGroup, err := groupFromSuffix(suffix)
	if err != nil {
		return Jid{}, err
	}
	return Jid{ID: id, IsGroup: isGroup}, nil
}

// FromPhoneNumber builds an individual Jid from an international phone
// number, with or without the leading +.
func FromPhoneNumber(number string) (Jid, error) {
	number = strings.TrimPrefix(number, "+")
	for _, c := range number {
		if c < '0' || c > '9' {
			return Jid{}, fmt.Errorf("%q is not a valid phone number", number)
		}
	}
	if number == "" {
		return Jid{}, fmt.Errorf("empty phone number")
	}
	return Jid{ID: number, IsGroup: false}, nil
}

// FromNodePair assembles a Jid from the two halves of a JID_PAIR node value.
func FromNodePair(id, suffix string) (Jid, error) {
	isGroup, err := groupFromSuffix(suffix)
	if err != nil {
		return Jid{}, err
	}
	return Jid{ID: id, IsGroup: isGroup}, nil
}

func groupFromSuffix(suffix string) (bool, error) {
	switch suffix {
	case SuffixUser, SuffixMessage, SuffixBroadcast:
		return false, nil
	case SuffixGroup:
		return true, nil
	default:
		return false, fmt.Errorf("invalid jid suffix %q", suffix)
	}
}

// String renders the companion-protocol surface form.
func (j Jid) String() string {
	if j.IsGroup {
		return j.ID + "@" + SuffixGroup
	}
	return j.ID + "@" + SuffixUser
}

// MessageJid renders the form used inside chat message keys.
func (j Jid) MessageJid() string {
	if j.IsGroup {
		return j.ID + "@" + SuffixGroup
	}
	return j.ID + "@" + SuffixMessage
}

// NodePair splits the Jid into the two halves of a JID_PAIR node value.
func (j Jid) NodePair() (id, suffix string) {
	if j.IsGroup {
		return j.ID, SuffixGroup
	}
	return j.ID, SuffixUser
}

// PhoneNumber returns the international phone number of an individual,
// or "" for groups.
func (j Jid) PhoneNumber() string {
	if j.IsGroup {
		return ""
	}
	return "+" + j.ID
}
