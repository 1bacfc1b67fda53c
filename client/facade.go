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
	"fmt"
	"time"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
	"github.com/waveline-project/waveline/protocol"
	"github.com/waveline-project/waveline/wire"
)

func eventKind(k protocol.EventKind) *protocol.EventKind {
	return &k
}

// SendMessage sends a chat message to the given chat and returns its id.
func (c *Conn) SendMessage(content message.Content, to jid.Jid) (message.ID, error) {
	id, err := message.GenerateID()
	if err != nil {
		return "", err
	}
	msg := &message.ChatMessage{
		ID:        id,
		Direction: message.Direction{FromMe: true, Remote: to},
		Time:      time.Now(),
		Content:   content,
	}
	tag := string(id)
	return id, c.sendAppMessage(&tag, wire.MetricMessage,
		protocol.Events{Kind: eventKind(protocol.EventRelay), Events: []protocol.AppEvent{
			protocol.EventMessage{Message: msg},
		}}, nil)
}

// SendMessageRead marks a message as read.
func (c *Conn) SendMessageRead(id message.ID, peer message.Peer) error {
	return c.sendAppMessage(nil, wire.MetricRead,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventMessageRead{ID: id, Peer: peer},
		}}, nil)
}

// SendMessagePlayed marks a voice message as played.
func (c *Conn) SendMessagePlayed(id message.ID, peer message.Peer) error {
	return c.sendAppMessage(nil, wire.MetricReceived,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventMessagePlayed{ID: id, Peer: peer},
		}}, nil)
}

// SetPresence publishes the own availability, optionally towards one chat.
func (c *Conn) SetPresence(status protocol.PresenceStatus, to *jid.Jid) error {
	return c.sendAppMessage(nil, wire.MetricPresence,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventPresence{Status: status, To: to},
		}}, nil)
}

// SetStatus sets the own profile status text.
func (c *Conn) SetStatus(status string) error {
	return c.sendAppMessage(nil, wire.MetricStatus,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventStatusChange{Status: status},
		}}, nil)
}

// SetNotifyName sets the own push name.
func (c *Conn) SetNotifyName(name string) error {
	return c.sendAppMessage(nil, wire.MetricProfile,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventNotifyChange{Name: name},
		}}, nil)
}

// BlockProfile blocks (or unblocks) a profile.
func (c *Conn) BlockProfile(unblock bool, j jid.Jid) error {
	return c.sendAppMessage(nil, wire.MetricBlock,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventBlockProfile{Unblock: unblock, Jid: j},
		}}, nil)
}

// SendChatAction applies a per-chat operation.
func (c *Conn) SendChatAction(action protocol.ChatAction, chat jid.Jid) error {
	return c.sendAppMessage(nil, wire.MetricChat,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventChatAction{Jid: chat, Action: action},
		}}, nil)
}

// GroupCreate creates a group with the given subject and members.
func (c *Conn) GroupCreate(subject string, participants []jid.Jid) error {
	return c.sendGroupCommand(protocol.GroupCommand{Kind: protocol.GroupCommandCreate, Subject: subject}, participants)
}

// GroupParticipantsChange adds, removes, promotes or demotes members.
func (c *Conn) GroupParticipantsChange(group jid.Jid, change protocol.GroupParticipantsChange, participants []jid.Jid) error {
	return c.sendGroupCommand(protocol.GroupCommand{
		Kind: protocol.GroupCommandParticipants, Jid: group, Change: change,
	}, participants)
}

// GroupLeave leaves a group.
func (c *Conn) GroupLeave(group jid.Jid) error {
	return c.sendGroupCommand(protocol.GroupCommand{Kind: protocol.GroupCommandLeave, Jid: group}, nil)
}

func (c *Conn) sendGroupCommand(command protocol.GroupCommand, participants []jid.Jid) error {
	c.mu.Lock()
	if c.userJid == nil {
		c.mu.Unlock()
		return fmt.Errorf("%w: own jid unknown", ErrNotEstablished)
	}
	inducer := *c.userJid
	tag := c.pending.allocTag()
	c.mu.Unlock()

	return c.sendAppMessage(&tag, wire.MetricGroup,
		protocol.Events{Kind: eventKind(protocol.EventSet), Events: []protocol.AppEvent{
			protocol.EventGroupCommand{Inducer: inducer, ID: tag, Participants: participants, Command: command},
		}}, nil)
}

// MessagesBefore queries the message history of a chat before the given
// message id. The sink runs on the socket reader goroutine.
func (c *Conn) MessagesBefore(chat jid.Jid, before message.ID, count uint16, sink func([]*message.ChatMessage, error)) error {
	return c.sendAppMessage(nil, wire.MetricQueryMessages,
		protocol.QueryMessagesBefore{Jid: chat, ID: before, Count: count},
		func(resp Response) {
			if resp.Node == nil {
				sink(nil, fmt.Errorf("unexpected reply kind for message query"))
				return
			}
			sink(protocol.ParseMessageResponse(*resp.Node))
		})
}

// SubscribePresence subscribes to a peer's presence updates.
func (c *Conn) SubscribePresence(j jid.Jid) error {
	return c.sendJSON(protocol.BuildPresenceSubscribe(j), nil)
}

// ProfilePicture queries a profile picture thumbnail URL; "" when unset.
func (c *Conn) ProfilePicture(j jid.Jid, sink func(url string)) error {
	return c.sendJSON(protocol.BuildProfilePictureRequest(j), func(resp Response) {
		sink(protocol.ParseProfilePictureResponse(resp.JSON))
	})
}

// ProfileStatus queries a profile status text; "" when unset.
func (c *Conn) ProfileStatus(j jid.Jid, sink func(status string)) error {
	return c.sendJSON(protocol.BuildProfileStatusRequest(j), func(resp Response) {
		sink(protocol.ParseProfileStatusResponse(resp.JSON))
	})
}

// GroupMetadata queries the metadata of a group.
func (c *Conn) GroupMetadata(group jid.Jid, sink func(*protocol.GroupMetadata, error)) error {
	if !group.IsGroup {
		return fmt.Errorf("%s is not a group", group)
	}
	return c.sendJSON(protocol.BuildGroupMetadataRequest(group), func(resp Response) {
		sink(protocol.ParseGroupMetadataResponse(resp.JSON))
	})
}

// RequestFileUpload obtains a signed upload URL for a file hash. Media
// encryption and the HTTP upload are collaborator concerns.
func (c *Conn) RequestFileUpload(hash []byte, mediaType message.MediaType, sink func(url string, err error)) error {
	return c.sendJSON(protocol.BuildFileUploadRequest(hash, mediaType), func(resp Response) {
		sink(protocol.ParseFileUploadResponse(resp.JSON))
	})
}
