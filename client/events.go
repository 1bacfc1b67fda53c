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

package client

import (
	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
	"github.com/waveline-project/waveline/protocol"
)

// State is the externally visible connection state.
type State uint8

const (
	StateUninitialized State = iota
	StateConnected
	StateDisconnecting
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "reconnecting"
	}
}

// DisconnectReason tells why a session ended for good.
type DisconnectReason uint8

const (
	// DisconnectRemoved: the session was deleted on the phone, or the
	// stored credentials were rejected.
	DisconnectRemoved DisconnectReason = iota
	// DisconnectReplaced: another client took the session over.
	DisconnectReplaced
)

// UserData is a non-message event pushed by the app.
type UserData interface {
	isUserData()
}

type (
	// ContactsInitial is the initial contact sync.
	ContactsInitial struct {
		Contacts []protocol.Contact
	}
	// ContactAddChange reports an added or changed contact.
	ContactAddChange struct {
		Contact protocol.Contact
	}
	// ContactDelete reports a removed contact.
	ContactDelete struct {
		Jid jid.Jid
	}
	// ChatsInitial is the initial chat sync.
	ChatsInitial struct {
		Chats []protocol.Chat
	}
	// ChatActionEvent reports a per-chat operation.
	ChatActionEvent struct {
		Jid    jid.Jid
		Action protocol.ChatAction
	}
	// UserJid is the jid of the own user.
	UserJid struct {
		Jid jid.Jid
	}
	// PresenceUpdate reports a peer's availability; Time is the last-seen
	// unix timestamp, 0 when not disclosed.
	PresenceUpdate struct {
		Jid    jid.Jid
		Status protocol.PresenceStatus
		Time   int64
	}
	// MessageAck reports message delivery progress.
	MessageAck struct {
		Ack message.Ack
	}
	// GroupIntroduce announces a group.
	GroupIntroduce struct {
		NewlyCreated bool
		Inducer      jid.Jid
		Meta         protocol.GroupMetadata
	}
	// GroupParticipantsChange reports a membership change.
	GroupParticipantsChange struct {
		Group        jid.Jid
		Change       protocol.GroupParticipantsChange
		Inducer      *jid.Jid
		Participants []jid.Jid
	}
	// GroupSubjectChange reports a subject change.
	GroupSubjectChange struct {
		Group        jid.Jid
		Subject      string
		SubjectTime  int64
		SubjectOwner jid.Jid
	}
	// PictureChange reports a profile picture change.
	PictureChange struct {
		Jid     jid.Jid
		Removed bool
	}
	// StatusChange reports a profile status text change.
	StatusChange struct {
		Jid    jid.Jid
		Status string
	}
	// Battery is the phone's battery level.
	Battery struct {
		Level uint8
	}
)

func (ContactsInitial) isUserData()         {}
func (ContactAddChange) isUserData()        {}
func (ContactDelete) isUserData()           {}
func (ChatsInitial) isUserData()            {}
func (ChatActionEvent) isUserData()         {}
func (UserJid) isUserData()                 {}
func (PresenceUpdate) isUserData()          {}
func (MessageAck) isUserData()              {}
func (GroupIntroduce) isUserData()          {}
func (GroupParticipantsChange) isUserData() {}
func (GroupSubjectChange) isUserData()      {}
func (PictureChange) isUserData()           {}
func (StatusChange) isUserData()            {}
func (Battery) isUserData()                 {}

// Handler receives session events. All methods are invoked without the
// session lock held; it is safe to call back into the Conn from any of
// them.
type Handler interface {
	OnStateChanged(state State)

	OnUserDataChanged(data UserData)

	// OnPersistentSessionDataChanged delivers fresh credentials for
	// persistence whenever the peer issues new tokens.
	OnPersistentSessionDataChanged(creds Credentials)

	OnDisconnect(reason DisconnectReason)

	// OnMessage delivers a chat message. relayed is true for live
	// messages, false for history backfill.
	OnMessage(relayed bool, msg *message.ChatMessage)
}
