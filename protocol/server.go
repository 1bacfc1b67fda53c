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
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
)

// FieldError reports a missing JSON field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("missing field %q in json", e.Field)
}

// ServerMessage is an unsolicited JSON event pushed by the peer.
type ServerMessage interface {
	isServerMessage()
}

// ConnAck acknowledges a pairing or takeover login. Secret is only present
// on first pairing.
type ConnAck struct {
	UserJid     jid.Jid
	ClientToken string
	ServerToken string
	Secret      []byte // nil on resumption
}

// ChallengeRequest asks the client to prove possession of the mac key.
type ChallengeRequest struct {
	Challenge []byte
}

// Disconnect is a peer-initiated teardown. Kind is "" when the session was
// removed from the phone, "replaced" when another client took over.
type Disconnect struct {
	Kind string
}

// PictureChange signals a profile picture change.
type PictureChange struct {
	Jid     jid.Jid
	Removed bool
}

// PresenceChange reports a peer's availability. Time is the last-seen unix
// timestamp, 0 when not disclosed.
type PresenceChange struct {
	Jid    jid.Jid
	Status PresenceStatus
	Time   int64
}

// StatusChange reports a profile status text change.
type StatusChange struct {
	Jid    jid.Jid
	Status string
}

// MessageAcks carries one or more delivery acknowledgements.
type MessageAcks struct {
	IDs         []string
	Level       message.AckLevel
	Sender      jid.Jid
	Receiver    jid.Jid
	Participant *jid.Jid
	Time        int64
}

// GroupIntroduce announces a group the user is part of.
type GroupIntroduce struct {
	NewlyCreated bool
	Inducer      jid.Jid
	Meta         GroupMetadata
}

// GroupParticipantsChanged reports a membership change.
type GroupParticipantsChanged struct {
	Group        jid.Jid
	Change       GroupParticipantsChange
	Inducer      *jid.Jid
	Participants []jid.Jid
}

// GroupSubjectChange reports a subject change.
type GroupSubjectChange struct {
	Group        jid.Jid
	Subject      string
	SubjectTime  int64
	SubjectOwner jid.Jid
}

func (ConnAck) isServerMessage()                  {}
func (ChallengeRequest) isServerMessage()         {}
func (Disconnect) isServerMessage()               {}
func (PictureChange) isServerMessage()            {}
func (PresenceChange) isServerMessage()           {}
func (StatusChange) isServerMessage()             {}
func (MessageAcks) isServerMessage()              {}
func (GroupIntroduce) isServerMessage()           {}
func (GroupParticipantsChanged) isServerMessage() {}
func (GroupSubjectChange) isServerMessage()       {}

// ParseServerMessage decodes an inbound ["OpCode", payload] document.
func ParseServerMessage(raw []byte) (ServerMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, fmt.Errorf("server message is not a json array: %w", err)
	}
	if len(parts) < 2 {
		return nil, fmt.Errorf("server message without payload")
	}
	var opcode string
	if err := json.Unmarshal(parts[0], &opcode); err != nil {
		return nil, fmt.Errorf("server message without opcode: %w", err)
	}
	payload := parts[1]

	switch opcode {
	case "Conn":
		return parseConn(payload)
	case "Cmd":
		return parseCmd(payload)
	case "Chat":
		return parseChat(payload)
	case "Msg", "MsgInfo":
		return parseMsg(payload)
	case "Presence":
		return parsePresence(payload)
	case "Status":
		return parseStatus(payload)
	default:
		return nil, fmt.Errorf("invalid or unsupported opcode %q", opcode)
	}
}

func parseConn(payload []byte) (ServerMessage, error) {
	var body struct {
		Wid         string `json:"wid"`
		ClientToken string `json:"clientToken"`
		ServerToken string `json:"serverToken"`
		Secret      string `json:"secret"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	if body.Wid == "" {
		return nil, &FieldError{Field: "wid"}
	}
	if body.ClientToken == "" {
		return nil, &FieldError{Field: "clientToken"}
	}
	if body.ServerToken == "" {
		return nil, &FieldError{Field: "serverToken"}
	}
	userJid, err := jid.Parse(body.Wid)
	if err != nil {
		return nil, err
	}
	ack := ConnAck{UserJid: userJid, ClientToken: body.ClientToken, ServerToken: body.ServerToken}
	if body.Secret != "" {
		if ack.Secret, err = base64.StdEncoding.DecodeString(body.Secret); err != nil {
			return nil, fmt.Errorf("invalid secret: %w", err)
		}
	}
	return ack, nil
}

func parseCmd(payload []byte) (ServerMessage, error) {
	var body struct {
		Type      string `json:"type"`
		Challenge string `json:"challenge"`
		Kind      string `json:"kind"`
		Jid       string `json:"jid"`
		Tag       string `json:"tag"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	switch body.Type {
	case "challenge":
		if body.Challenge == "" {
			return nil, &FieldError{Field: "challenge"}
		}
		challenge, err := base64.StdEncoding.DecodeString(body.Challenge)
		if err != nil {
			return nil, fmt.Errorf("invalid challenge: %w", err)
		}
		return ChallengeRequest{Challenge: challenge}, nil
	case "disconnect":
		return Disconnect{Kind: body.Kind}, nil
	case "picture":
		j, err := jid.Parse(body.Jid)
		if err != nil {
			return nil, err
		}
		return PictureChange{Jid: j, Removed: body.Tag == "removed"}, nil
	default:
		return nil, fmt.Errorf("invalid or unsupported 'Cmd' subcommand type %q", body.Type)
	}
}

func parseChat(payload []byte) (ServerMessage, error) {
	var body struct {
		ID   string            `json:"id"`
		Data []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	chat, err := jid.Parse(body.ID)
	if err != nil {
		return nil, err
	}
	if len(body.Data) < 2 {
		return nil, fmt.Errorf("chat command without subcommand")
	}
	var subtype string
	if err := json.Unmarshal(body.Data[0], &subtype); err != nil {
		return nil, fmt.Errorf("chat command without subcommand: %w", err)
	}
	var inducer *jid.Jid
	var inducerStr string
	if json.Unmarshal(body.Data[1], &inducerStr) == nil && inducerStr != "" {
		if j, err := jid.Parse(inducerStr); err == nil {
			inducer = &j
		}
	}

	switch subtype {
	case "introduce", "create":
		if len(body.Data) < 3 {
			return nil, &FieldError{Field: "data[2]"}
		}
		if inducer == nil {
			return nil, fmt.Errorf("missing inducer")
		}
		var meta struct {
			Creation     int64    `json:"creation"`
			Subject      string   `json:"subject"`
			SubjectOwner string   `json:"s_o"`
			SubjectTime  int64    `json:"s_t"`
			Admins       []string `json:"admins"`
			Regulars     []string `json:"regulars"`
		}
		if err := json.Unmarshal(body.Data[2], &meta); err != nil {
			return nil, err
		}
		subjectOwner, err := jid.Parse(meta.SubjectOwner)
		if err != nil {
			return nil, err
		}
		participants := make([]GroupParticipant, 0, len(meta.Admins)+len(meta.Regulars))
		for _, a := range meta.Admins {
			j, err := jid.Parse(a)
			if err != nil {
				return nil, err
			}
			participants = append(participants, GroupParticipant{Jid: j, IsAdmin: true})
		}
		for _, r := range meta.Regulars {
			j, err := jid.Parse(r)
			if err != nil {
				return nil, err
			}
			participants = append(participants, GroupParticipant{Jid: j})
		}
		return GroupIntroduce{
			NewlyCreated: subtype == "create",
			Inducer:      *inducer,
			Meta: GroupMetadata{
				ID:           chat,
				CreationTime: meta.Creation,
				Subject:      meta.Subject,
				SubjectOwner: subjectOwner,
				SubjectTime:  meta.SubjectTime,
				Participants: participants,
			},
		}, nil

	case "add", "remove", "promote", "demote":
		if len(body.Data) < 3 {
			return nil, &FieldError{Field: "data[2]"}
		}
		var detail struct {
			Participants []string `json:"participants"`
		}
		if err := json.Unmarshal(body.Data[2], &detail); err != nil {
			return nil, err
		}
		participants := make([]jid.Jid, 0, len(detail.Participants))
		for _, p := range detail.Participants {
			j, err := jid.Parse(p)
			if err != nil {
				return nil, err
			}
			participants = append(participants, j)
		}
		change, err := participantsChangeFromWire(subtype)
		if err != nil {
			return nil, err
		}
		return GroupParticipantsChanged{Group: chat, Change: change, Inducer: inducer, Participants: participants}, nil

	case "subject":
		if len(body.Data) < 3 {
			return nil, &FieldError{Field: "data[2]"}
		}
		if inducer == nil {
			return nil, fmt.Errorf("missing inducer")
		}
		var detail struct {
			Subject     string `json:"subject"`
			SubjectTime int64  `json:"s_t"`
		}
		if err := json.Unmarshal(body.Data[2], &detail); err != nil {
			return nil, err
		}
		return GroupSubjectChange{Group: chat, Subject: detail.Subject, SubjectTime: detail.SubjectTime, SubjectOwner: *inducer}, nil

	default:
		return nil, fmt.Errorf("invalid or unsupported 'Chat' subcommand type %q", subtype)
	}
}

func parseMsg(payload []byte) (ServerMessage, error) {
	var body struct {
		Cmd         string          `json:"cmd"`
		ID          json.RawMessage `json:"id"`
		From        string          `json:"from"`
		To          string          `json:"to"`
		Participant string          `json:"participant"`
		T           int64           `json:"t"`
		Ack         uint8           `json:"ack"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}

	var ids []string
	switch body.Cmd {
	case "ack":
		var id string
		if err := json.Unmarshal(body.ID, &id); err != nil {
			return nil, &FieldError{Field: "id"}
		}
		ids = []string{id}
	case "acks":
		if err := json.Unmarshal(body.ID, &ids); err != nil {
			return nil, &FieldError{Field: "id"}
		}
	default:
		return nil, fmt.Errorf("invalid or unsupported 'Msg' subcommand type %q", body.Cmd)
	}

	sender, err := jid.Parse(body.From)
	if err != nil {
		return nil, err
	}
	receiver, err := jid.Parse(body.To)
	if err != nil {
		return nil, err
	}
	var participant *jid.Jid
	if body.Participant != "" {
		if j, err := jid.Parse(body.Participant); err == nil {
			participant = &j
		}
	}
	level, err := message.AckLevelFromJSON(body.Ack)
	if err != nil {
		return nil, err
	}
	return MessageAcks{IDs: ids, Level: level, Sender: sender, Receiver: receiver, Participant: participant, Time: body.T}, nil
}

func parsePresence(payload []byte) (ServerMessage, error) {
	var body struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		T    int64  `json:"t"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	j, err := jid.Parse(body.ID)
	if err != nil {
		return nil, err
	}
	status, err := presenceFromWire(body.Type)
	if err != nil {
		return nil, err
	}
	return PresenceChange{Jid: j, Status: status, Time: body.T}, nil
}

func parseStatus(payload []byte) (ServerMessage, error) {
	var body struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, err
	}
	if body.Status == "" {
		return nil, &FieldError{Field: "status"}
	}
	j, err := jid.Parse(body.ID)
	if err != nil {
		return nil, err
	}
	return StatusChange{Jid: j, Status: body.Status}, nil
}
