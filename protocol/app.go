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
	"errors"
	"fmt"
	"strconv"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
	"github.com/waveline-project/waveline/node"
)

// ErrEnvelope reports a node tree that is not a valid app message.
var ErrEnvelope = errors.New("invalid app message")

// EventKind classifies the batch semantics of an action envelope.
type EventKind uint8

const (
	EventRelay EventKind = iota
	EventLast
	EventBefore
	EventSet
)

func (k EventKind) wire() string {
	switch k {
	case EventRelay:
		return "relay"
	case EventLast:
		return "last"
	case EventBefore:
		return "before"
	default:
		return "set"
	}
}

func eventKindFromWire(v string) (EventKind, bool) {
	switch v {
	case "relay":
		return EventRelay, true
	case "last":
		return EventLast, true
	case "before":
		return EventBefore, true
	case "set":
		return EventSet, true
	}
	return 0, false
}

// AppEvent is one entry of an action envelope.
type AppEvent interface {
	isAppEvent()
}

// Inbound events.
type (
	// EventMessage carries a chat message.
	EventMessage struct {
		Message *message.ChatMessage
	}
	// EventAck carries a delivery acknowledgement.
	EventAck struct {
		Ack message.Ack
	}
	// EventContactChange reports an added or changed contact.
	EventContactChange struct {
		Contact Contact
	}
	// EventContactDelete reports a removed contact.
	EventContactDelete struct {
		Jid jid.Jid
	}
	// EventChatAction reports a per-chat operation, in either direction.
	EventChatAction struct {
		Jid    jid.Jid
		Action ChatAction
	}
	// EventBattery reports the phone's battery level.
	EventBattery struct {
		Level uint8
	}
)

// Client-emitted events.
type (
	// EventMessageRead marks a chat message as read.
	EventMessageRead struct {
		ID   message.ID
		Peer message.Peer
	}
	// EventMessagePlayed marks a voice message as played.
	EventMessagePlayed struct {
		ID   message.ID
		Peer message.Peer
	}
	// EventGroupCommand creates a group or changes its membership.
	EventGroupCommand struct {
		Inducer      jid.Jid
		ID           string
		Participants []jid.Jid
		Command      GroupCommand
	}
	// EventPresence changes the own availability, optionally towards one
	// chat.
	EventPresence struct {
		Status PresenceStatus
		To     *jid.Jid
	}
	// EventStatusChange sets the own profile status text.
	EventStatusChange struct {
		Status string
	}
	// EventNotifyChange sets the own push name.
	EventNotifyChange struct {
		Name string
	}
	// EventBlockProfile blocks or unblocks a profile.
	EventBlockProfile struct {
		Unblock bool
		Jid     jid.Jid
	}
)

func (EventMessage) isAppEvent()       {}
func (EventAck) isAppEvent()           {}
func (EventContactChange) isAppEvent() {}
func (EventContactDelete) isAppEvent() {}
func (EventChatAction) isAppEvent()    {}
func (EventBattery) isAppEvent()       {}
func (EventMessageRead) isAppEvent()   {}
func (EventMessagePlayed) isAppEvent() {}
func (EventGroupCommand) isAppEvent()  {}
func (EventPresence) isAppEvent()      {}
func (EventStatusChange) isAppEvent()  {}
func (EventNotifyChange) isAppEvent()  {}
func (EventBlockProfile) isAppEvent()  {}

// GroupCommandKind enumerates group operations.
type GroupCommandKind uint8

const (
	GroupCommandCreate GroupCommandKind = iota
	GroupCommandParticipants
	GroupCommandLeave
)

// GroupCommand is the payload of an EventGroupCommand.
type GroupCommand struct {
	Kind    GroupCommandKind
	Subject string                  // create
	Jid     jid.Jid                 // participants change, leave
	Change  GroupParticipantsChange // participants change
}

// AppMessage is the decoded form of a binary frame payload.
type AppMessage interface {
	isAppMessage()
}

// Events is an action envelope: a batch of app events.
type Events struct {
	Kind   *EventKind
	Events []AppEvent
}

// ContactList is the initial contacts sync pushed by the app.
type ContactList struct {
	Contacts []Contact
}

// ChatList is the initial chats sync pushed by the app.
type ChatList struct {
	Chats []Chat
}

// QueryMessagesBefore requests the message history before a given id.
type QueryMessagesBefore struct {
	Jid   jid.Jid
	ID    message.ID
	Count uint16
}

func (Events) isAppMessage()              {}
func (ContactList) isAppMessage()         {}
func (ChatList) isAppMessage()            {}
func (QueryMessagesBefore) isAppMessage() {}

// EncodeAppMessage renders an outgoing app message as a node tree carrying
// the given epoch.
func EncodeAppMessage(msg AppMessage, epoch uint32) (node.Node, error) {
	attrs := map[string]node.Value{
		"epoch": node.String(strconv.FormatUint(uint64(epoch), 10)),
	}

	switch m := msg.(type) {
	case Events:
		if m.Kind == nil {
			return node.Node{}, fmt.Errorf("%w: outgoing action without type", ErrEnvelope)
		}
		attrs["type"] = node.String(m.Kind.wire())
		children := make(node.List, 0, len(m.Events))
		for _, ev := range m.Events {
			child, err := encodeAppEvent(ev)
			if err != nil {
				return node.Node{}, err
			}
			children = append(children, child)
		}
		return node.New("action", attrs, children), nil

	case QueryMessagesBefore:
		attrs["type"] = node.String("message")
		attrs["kind"] = node.String("before")
		attrs["jid"] = node.Jid(m.Jid)
		attrs["count"] = node.String(strconv.FormatUint(uint64(m.Count), 10))
		attrs["index"] = node.String(string(m.ID))
		attrs["owner"] = node.String("false")
		return node.New("query", attrs, nil), nil

	default:
		return node.Node{}, fmt.Errorf("%w: unsendable app message %T", ErrEnvelope, msg)
	}
}

func encodeAppEvent(ev AppEvent) (node.Node, error) {
	switch ev := ev.(type) {
	case EventMessage:
		payload, err := ev.Message.Marshal()
		if err != nil {
			return node.Node{}, err
		}
		return node.New("message", nil, node.Binary(payload)), nil

	case EventMessageRead:
		attrs := map[string]node.Value{
			"index": node.String(string(ev.ID)),
			"jid":   node.Jid(ev.Peer.Jid),
			"owner": node.String("false"),
			"count": node.String("1"),
		}
		if ev.Peer.Participant != nil {
			attrs["participant"] = node.Jid(*ev.Peer.Participant)
		}
		return node.New("read", attrs, nil), nil

	case EventMessagePlayed:
		attrs := map[string]node.Value{
			"type":  node.String("played"),
			"index": node.String(string(ev.ID)),
			"from":  node.Jid(ev.Peer.Jid),
			"owner": node.String("false"),
			"count": node.String("1"),
		}
		if ev.Peer.Participant != nil {
			attrs["participant"] = node.Jid(*ev.Peer.Participant)
		}
		return node.New("received", attrs, nil), nil

	case EventGroupCommand:
		attrs := map[string]node.Value{
			"author": node.Jid(ev.Inducer),
			"id":     node.String(ev.ID),
		}
		switch ev.Command.Kind {
		case GroupCommandCreate:
			attrs["type"] = node.String("create")
			attrs["subject"] = node.String(ev.Command.Subject)
		case GroupCommandParticipants:
			attrs["type"] = node.String(ev.Command.Change.wire())
			attrs["jid"] = node.Jid(ev.Command.Jid)
		case GroupCommandLeave:
			attrs["type"] = node.String("leave")
			attrs["jid"] = node.Jid(ev.Command.Jid)
		}
		children := make(node.List, 0, len(ev.Participants))
		for _, p := range ev.Participants {
			children = append(children, node.New("participant", map[string]node.Value{
				"jid": node.Jid(p),
			}, nil))
		}
		return node.New("group", attrs, children), nil

	case EventPresence:
		attrs := map[string]node.Value{"type": node.String(ev.Status.wire())}
		if ev.To != nil {
			attrs["to"] = node.Jid(*ev.To)
		}
		return node.New("presence", attrs, nil), nil

	case EventChatAction:
		return encodeChatAction(ev.Jid, ev.Action)

	case EventStatusChange:
		return node.New("status", nil, node.String(ev.Status)), nil

	case EventNotifyChange:
		return node.New("profile", map[string]node.Value{
			"name": node.String(ev.Name),
		}, nil), nil

	case EventBlockProfile:
		blockType := "add"
		if ev.Unblock {
			blockType = "remove"
		}
		user := node.New("user", map[string]node.Value{"jid": node.Jid(ev.Jid)}, nil)
		return node.New("block", map[string]node.Value{
			"type": node.String(blockType),
		}, node.List{user}), nil

	default:
		return node.Node{}, fmt.Errorf("%w: unsendable app event %T", ErrEnvelope, ev)
	}
}

func encodeChatAction(j jid.Jid, action ChatAction) (node.Node, error) {
	attrs := map[string]node.Value{"jid": node.Jid(j)}
	switch action.Kind {
	case ChatSpam:
		attrs["type"] = node.String("spam")
	case ChatDelete:
		attrs["type"] = node.String("delete")
	case ChatArchive:
		attrs["type"] = node.String("archive")
	case ChatUnarchive:
		attrs["type"] = node.String("unarchive")
	case ChatClear:
		attrs["type"] = node.String("clear")
	case ChatPin:
		attrs["type"] = node.String("pin")
		attrs["pin"] = node.String(strconv.FormatInt(action.Time, 10))
	case ChatUnpin:
		// The sidecar attribute with the previous pin time is omitted and
		// only the bare type is sent, as for ChatUnmute below; whether the
		// live peer accepts this form is unverified.
		attrs["type"] = node.String("pin")
	case ChatMute:
		attrs["type"] = node.String("mute")
		attrs["mute"] = node.String(strconv.FormatInt(action.Time, 10))
	case ChatUnmute:
		attrs["type"] = node.String("mute")
	default:
		return node.Node{}, fmt.Errorf("%w: unsendable chat action %d", ErrEnvelope, action.Kind)
	}
	return node.New("chat", attrs, nil), nil
}

// DecodeAppMessage interprets a decrypted node tree.
func DecodeAppMessage(n node.Node) (AppMessage, error) {
	switch n.Desc {
	case "action":
		return decodeAction(n)
	case "response":
		return decodeResponse(n)
	default:
		return nil, fmt.Errorf("%w: unsupported root %q", ErrEnvelope, n.Desc)
	}
}

func decodeAction(n node.Node) (AppMessage, error) {
	var kind *EventKind
	if v, err := n.StringAttr("add"); err == nil {
		if k, ok := eventKindFromWire(v); ok {
			kind = &k
		}
	}

	children := n.Children()
	if children == nil {
		return nil, fmt.Errorf("%w: action without event list", ErrEnvelope)
	}

	events := make([]AppEvent, 0, len(children))
	for _, child := range children {
		ev, err := decodeAppEvent(child)
		if err != nil {
			return nil, err
		}
		if ev != nil {
			events = append(events, ev)
		}
	}
	return Events{Kind: kind, Events: events}, nil
}

func decodeAppEvent(n node.Node) (AppEvent, error) {
	switch n.Desc {
	case "message":
		payload, ok := n.Content.(node.Binary)
		if !ok {
			return nil, fmt.Errorf("%w: message node without binary content", ErrEnvelope)
		}
		msg, err := message.Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		return EventMessage{Message: msg}, nil

	case "received":
		index, err := n.StringAttr("index")
		if err != nil {
			return nil, err
		}
		typ, err := n.StringAttr("type")
		if err != nil {
			return nil, err
		}
		level, err := message.AckLevelFromNode(typ)
		if err != nil {
			return nil, err
		}
		j, err := n.JidAttr("jid")
		if err != nil {
			return nil, err
		}
		var participant *jid.Jid
		if p, err := n.JidAttr("participant"); err == nil {
			participant = &p
		}
		ownerStr, err := n.StringAttr("owner")
		if err != nil {
			return nil, err
		}
		owner, err := strconv.ParseBool(ownerStr)
		if err != nil {
			return nil, fmt.Errorf("%w: owner attribute %q", ErrEnvelope, ownerStr)
		}
		return EventAck{Ack: message.AckFromApp(message.ID(index), level, j, participant, owner)}, nil

	case "read":
		j, err := n.JidAttr("jid")
		if err != nil {
			return nil, err
		}
		action := ChatAction{Kind: ChatRead}
		if typ, err := n.StringAttr("type"); err == nil && typ == "false" {
			action.Kind = ChatUnread
		}
		return EventChatAction{Jid: j, Action: action}, nil

	case "user":
		contact, err := decodeContact(n)
		if err != nil {
			return nil, err
		}
		if contact.Name == "" {
			return EventContactDelete{Jid: contact.Jid}, nil
		}
		return EventContactChange{Contact: contact}, nil

	case "chat":
		j, err := n.JidAttr("jid")
		if err != nil {
			return nil, err
		}
		action, err := decodeChatAction(n)
		if err != nil {
			return nil, err
		}
		return EventChatAction{Jid: j, Action: action}, nil

	case "battery":
		value, err := n.StringAttr("value")
		if err != nil {
			return nil, err
		}
		level, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: battery value %q", ErrEnvelope, value)
		}
		return EventBattery{Level: uint8(level)}, nil

	default:
		// Unknown event nodes are skipped, not fatal.
		return nil, nil
	}
}

func decodeChatAction(n node.Node) (ChatAction, error) {
	typ, err := n.StringAttr("type")
	if err != nil {
		return ChatAction{}, err
	}
	switch typ {
	case "spam":
		return ChatAction{Kind: ChatSpam}, nil
	case "delete":
		return ChatAction{Kind: ChatDelete}, nil
	case "archive":
		return ChatAction{Kind: ChatArchive}, nil
	case "unarchive":
		return ChatAction{Kind: ChatUnarchive}, nil
	case "clear":
		return ChatAction{Kind: ChatClear}, nil
	case "pin":
		if v, err := n.StringAttr("pin"); err == nil {
			t, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ChatAction{}, fmt.Errorf("%w: pin time %q", ErrEnvelope, v)
			}
			return ChatAction{Kind: ChatPin, Time: t}, nil
		}
		return ChatAction{Kind: ChatUnpin}, nil
	case "mute":
		if v, err := n.StringAttr("mute"); err == nil {
			t, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return ChatAction{}, fmt.Errorf("%w: mute time %q", ErrEnvelope, v)
			}
			return ChatAction{Kind: ChatMute, Time: t}, nil
		}
		return ChatAction{Kind: ChatUnmute}, nil
	default:
		return ChatAction{}, fmt.Errorf("%w: chat action type %q", ErrEnvelope, typ)
	}
}

func decodeContact(n node.Node) (Contact, error) {
	j, err := n.JidAttr("jid")
	if err != nil {
		return Contact{}, err
	}
	contact := Contact{Jid: j}
	if name, err := n.StringAttr("name"); err == nil {
		contact.Name = name
	}
	if notify, err := n.StringAttr("notify"); err == nil {
		contact.Notify = notify
	}
	return contact, nil
}

func decodeResponse(n node.Node) (AppMessage, error) {
	typ, err := n.StringAttr("type")
	if err != nil {
		return nil, err
	}
	children := n.Children()

	switch typ {
	case "contacts":
		contacts := make([]Contact, 0, len(children))
		for _, child := range children {
			contact, err := decodeContact(child)
			if err != nil {
				return nil, err
			}
			contacts = append(contacts, contact)
		}
		return ContactList{Contacts: contacts}, nil

	case "chat":
		chats := make([]Chat, 0, len(children))
		for _, child := range children {
			chat, err := decodeChat(child)
			if err != nil {
				return nil, err
			}
			chats = append(chats, chat)
		}
		return ChatList{Chats: chats}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported response type %q", ErrEnvelope, typ)
	}
}

func decodeChat(n node.Node) (Chat, error) {
	j, err := n.JidAttr("jid")
	if err != nil {
		return Chat{}, err
	}
	lastActivity, err := n.StringAttr("t")
	if err != nil {
		return Chat{}, err
	}
	t, err := strconv.ParseInt(lastActivity, 10, 64)
	if err != nil {
		return Chat{}, fmt.Errorf("%w: chat timestamp %q", ErrEnvelope, lastActivity)
	}
	spam, err := n.StringAttr("spam")
	if err != nil {
		return Chat{}, err
	}
	isSpam, err := strconv.ParseBool(spam)
	if err != nil {
		return Chat{}, fmt.Errorf("%w: chat spam flag %q", ErrEnvelope, spam)
	}

	chat := Chat{Jid: j, LastActivity: t, Spam: isSpam}
	if name, err := n.StringAttr("name"); err == nil {
		chat.Name = name
	}
	if v, err := n.StringAttr("mute"); err == nil {
		chat.MuteUntil, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, err := n.StringAttr("pin"); err == nil {
		chat.PinTime, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, err := n.StringAttr("read_only"); err == nil {
		chat.ReadOnly, _ = strconv.ParseBool(v)
	}
	return chat, nil
}

// ParseMessageResponse decodes a message history query reply.
func ParseMessageResponse(n node.Node) ([]*message.ChatMessage, error) {
	if n.Desc != "response" {
		return nil, fmt.Errorf("%w: unexpected root %q", ErrEnvelope, n.Desc)
	}
	if typ, err := n.StringAttr("type"); err != nil || typ != "message" {
		return nil, fmt.Errorf("%w: unexpected response type", ErrEnvelope)
	}
	children := n.Children()
	messages := make([]*message.ChatMessage, 0, len(children))
	for _, child := range children {
		payload, ok := child.Content.(node.Binary)
		if !ok {
			return nil, fmt.Errorf("%w: message node without binary content", ErrEnvelope)
		}
		msg, err := message.Unmarshal(payload)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
