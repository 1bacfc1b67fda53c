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

// Package protocol translates between the application data model and the
// two wire schemas: the JSON control protocol on text frames and the node
// envelope inside encrypted binary frames.
package protocol

import (
	"fmt"

	"github.com/waveline-project/waveline/jid"
)

// PresenceStatus is the availability state shown to peers.
type PresenceStatus uint8

const (
	PresenceUnavailable PresenceStatus = iota
	PresenceAvailable
	PresenceComposing
	PresenceRecording
)

func (s PresenceStatus) wire() string {
	switch s {
	case PresenceAvailable:
		return "available"
	case PresenceComposing:
		return "composing"
	case PresenceRecording:
		return "recording"
	default:
		return "unavailable"
	}
}

func presenceFromWire(v string) (PresenceStatus, error) {
	switch v {
	case "unavailable":
		return PresenceUnavailable, nil
	case "available":
		return PresenceAvailable, nil
	case "composing":
		return PresenceComposing, nil
	case "recording":
		return PresenceRecording, nil
	default:
		return 0, fmt.Errorf("invalid presence status %q", v)
	}
}

// ChatActionKind enumerates per-chat operations.
type ChatActionKind uint8

const (
	ChatSpam ChatActionKind = iota
	ChatDelete
	ChatArchive
	ChatUnarchive
	ChatClear
	ChatPin
	ChatUnpin
	ChatMute
	ChatUnmute
	ChatRead
	ChatUnread
)

// ChatAction is a per-chat operation; Time carries the pin or mute-until
// timestamp for ChatPin and ChatMute.
type ChatAction struct {
	Kind ChatActionKind
	Time int64
}

// Contact is a phonebook entry pushed by the app.
type Contact struct {
	// Name is the phonebook name set by the user; empty when absent.
	Name string
	// Notify is the push name set by the opposite peer.
	Notify string
	Jid    jid.Jid
}

// Chat is a conversation summary pushed by the app.
type Chat struct {
	Name         string
	Jid          jid.Jid
	LastActivity int64
	PinTime      int64 // 0 when not pinned
	MuteUntil    int64 // 0 when not muted
	Spam         bool
	ReadOnly     bool
}

// GroupParticipant pairs a member with its admin flag.
type GroupParticipant struct {
	Jid     jid.Jid
	IsAdmin bool
}

// GroupMetadata describes a group chat.
type GroupMetadata struct {
	ID           jid.Jid
	Owner        *jid.Jid
	CreationTime int64
	Subject      string
	SubjectOwner jid.Jid
	SubjectTime  int64
	Participants []GroupParticipant
}

// GroupParticipantsChange enumerates membership operations.
type GroupParticipantsChange uint8

const (
	GroupAdd GroupParticipantsChange = iota
	GroupRemove
	GroupPromote
	GroupDemote
)

func (c GroupParticipantsChange) wire() string {
	switch c {
	case GroupAdd:
		return "add"
	case GroupRemove:
		return "remove"
	case GroupPromote:
		return "promote"
	default:
		return "demote"
	}
}

func participantsChangeFromWire(v string) (GroupParticipantsChange, error) {
	switch v {
	case "add":
		return GroupAdd, nil
	case "remove":
		return GroupRemove, nil
	case "promote":
		return GroupPromote, nil
	case "demote":
		return GroupDemote, nil
	default:
		return 0, fmt.Errorf("invalid group command %q", v)
	}
}
