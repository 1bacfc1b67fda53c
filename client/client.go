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

// Package client implements the session engine: pairing and resumption,
// the reconnect loop, request/response correlation, the keep-alive timer
// and the public send API.
package client

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/waveline-project/waveline/config"
	"github.com/waveline-project/waveline/crypto"
	"github.com/waveline-project/waveline/internal/logger"
	"github.com/waveline-project/waveline/internal/metrics"
	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
	"github.com/waveline-project/waveline/node"
	"github.com/waveline-project/waveline/protocol"
	"github.com/waveline-project/waveline/wire"
)

var (
	// ErrNotConnected is returned when no socket is open.
	ErrNotConnected = errors.New("not connected")
	// ErrNotEstablished is returned when binary frames cannot flow yet.
	ErrNotEstablished = errors.New("session not established")
)

// Conn is one session towards the web-companion endpoint. All methods are
// safe to call from any goroutine.
type Conn struct {
	cfg     *config.Config
	handler Handler
	log     logger.Logger

	// mu guards every mutable field below. It is never held across a
	// socket write or a handler callback; writeMu serializes writes and
	// preserves enqueue order (lock order: mu before writeMu).
	mu      sync.Mutex
	writeMu sync.Mutex
	session sessionState
	ws      *websocket.Conn
	timer   *keepAlive
	pending *pendingTable
	epoch   uint32
	userJid *jid.Jid

	done chan struct{}
}

// Connect starts a fresh pairing. The QR payload is handed to qrSink once
// the peer issues a pairing reference; the derived credentials arrive at
// the handler for persistence.
func Connect(cfg *config.Config, qrSink func(qr string), handler Handler) (*Conn, error) {
	c, err := newConn(cfg, handler)
	if err != nil {
		return nil, err
	}

	keyPair, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	var clientID [8]byte
	if _, err := io.ReadFull(rand.Reader, clientID[:]); err != nil {
		return nil, fmt.Errorf("failed to generate client id: %w", err)
	}

	c.session = sessionState{
		phase:   phasePendingNew,
		keyPair: keyPair,
		qrSink:  qrSink,
		creds:   Credentials{ClientID: clientID},
	}
	go c.run()
	return c, nil
}

// Resume restores a session from stored credentials.
func Resume(cfg *config.Config, creds Credentials, handler Handler) (*Conn, error) {
	c, err := newConn(cfg, handler)
	if err != nil {
		return nil, err
	}
	c.session = sessionState{phase: phasePendingPersistent, creds: creds}
	go c.run()
	return c, nil
}

func newConn(cfg *config.Config, handler Handler) (*Conn, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, fmt.Errorf("nil handler")
	}
	return &Conn{
		cfg:     cfg,
		handler: handler,
		log:     logger.GetDefaultLogger().WithFields(logger.String("component", "client")),
		pending: newPendingTable(),
		done:    make(chan struct{}),
	}, nil
}

// State returns the externally visible connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.session.phase {
	case phasePendingNew:
		return StateUninitialized
	case phasePendingPersistent:
		return StateReconnecting
	case phaseEstablished:
		return StateConnected
	default:
		return StateDisconnecting
	}
}

// UserJid returns the own user jid once the peer disclosed it.
func (c *Conn) UserJid() (jid.Jid, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userJid == nil {
		return jid.Jid{}, false
	}
	return *c.userJid, true
}

// Wait blocks until the reconnect worker exits, i.e. the session reached
// TornDown.
func (c *Conn) Wait() {
	<-c.done
}

// Disconnect tears the session down for good. Pending completions are
// discarded without being invoked.
func (c *Conn) Disconnect() {
	c.handler.OnStateChanged(StateDisconnecting)

	c.mu.Lock()
	c.session = sessionState{phase: phaseTornDown}
	if c.timer != nil {
		c.timer.disarm()
		c.timer = nil
	}
	ws := c.ws
	c.pending.drop()
	c.mu.Unlock()

	metrics.SessionState.Set(float64(StateDisconnecting))
	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = ws.Close()
	}
}

// run is the reconnect worker: it owns the socket lifecycle and is the
// only goroutine that sleeps outside user callbacks.
func (c *Conn) run() {
	defer close(c.done)
	for {
		start := time.Now()
		metrics.Reconnects.Inc()
		if err := c.runOnce(); err != nil {
			c.log.Warn("connection attempt failed", logger.Error(err))
		}

		c.mu.Lock()
		tornDown := c.session.phase == phaseTornDown
		c.mu.Unlock()
		if tornDown {
			return
		}

		if d := c.cfg.ReconnectFloor - time.Since(start); d > 0 {
			time.Sleep(d)
		}
	}
}

func (c *Conn) runOnce() error {
	dialer := &websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	header := http.Header{"Origin": {c.cfg.Origin}}
	ws, resp, err := dialer.Dial(c.cfg.Endpoint, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	c.mu.Lock()
	if c.session.phase == phaseTornDown {
		c.mu.Unlock()
		return ws.Close()
	}
	c.ws = ws
	c.timer = newKeepAlive(c.cfg.PingWindow, timerNormal, c.onTimerExpire)
	c.mu.Unlock()

	c.log.Debug("socket connected", logger.String("endpoint", c.cfg.Endpoint))
	c.sendOpening()

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			c.log.Debug("socket read ended", logger.Error(err))
			break
		}
		frame, err := wire.Unmarshal(messageType, data)
		if err != nil {
			c.log.Warn("dropping malformed frame", logger.Error(err))
			continue
		}
		c.handleFrame(frame)
	}

	c.onSocketClosed()
	return nil
}

// onSocketClosed reverts an established session to pending-persistent and
// releases per-connection state. Pending completions do not survive a
// connection.
func (c *Conn) onSocketClosed() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.disarm()
		c.timer = nil
	}
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.pending.drop()

	wasEstablished := c.session.phase == phaseEstablished
	if wasEstablished {
		c.session = sessionState{phase: phasePendingPersistent, creds: c.session.creds}
	}
	c.mu.Unlock()

	if wasEstablished {
		metrics.SessionState.Set(float64(StateReconnecting))
		c.handler.OnStateChanged(StateReconnecting)
	}
}

// sendOpening emits the init request right after the socket opened.
func (c *Conn) sendOpening() {
	c.mu.Lock()
	phase := c.session.phase
	clientID := c.session.creds.ClientID
	c.mu.Unlock()

	switch phase {
	case phasePendingNew:
		_ = c.sendJSON(protocol.BuildInitRequest(clientID[:]), func(resp Response) {
			c.handleInitResponseNew(resp.JSON)
		})
	case phasePendingPersistent:
		_ = c.sendJSON(protocol.BuildInitRequest(clientID[:]), func(resp Response) {
			c.handleInitResponseResume(resp.JSON)
		})
	}
}

func (c *Conn) handleInitResponseNew(raw []byte) {
	ref, err := protocol.ParseInitResponse(raw)
	if err != nil {
		c.log.Error("init request rejected", logger.Error(err))
		return
	}

	c.mu.Lock()
	if c.session.phase != phasePendingNew {
		c.mu.Unlock()
		return
	}
	qr := fmt.Sprintf("%s,%s,%s", ref,
		base64.StdEncoding.EncodeToString(c.session.keyPair.PublicBytes()),
		base64.StdEncoding.EncodeToString(c.session.creds.ClientID[:]))
	sink := c.session.qrSink
	c.mu.Unlock()

	c.log.Debug("pairing reference received")
	if sink != nil {
		sink(qr)
	}
}

func (c *Conn) handleInitResponseResume(raw []byte) {
	if err := protocol.ParseResponseStatus(raw); err != nil {
		c.log.Error("init request rejected", logger.Error(err))
		return
	}

	c.mu.Lock()
	if c.session.phase != phasePendingPersistent {
		c.mu.Unlock()
		return
	}
	creds := c.session.creds
	c.mu.Unlock()

	takeover := protocol.BuildTakeoverRequest(creds.ClientToken, creds.ServerToken, creds.ClientID[:])
	_ = c.sendJSON(takeover, func(resp Response) {
		if err := protocol.ParseResponseStatus(resp.JSON); err != nil {
			c.log.Error("takeover login rejected", logger.Error(err))
			c.Disconnect()
			c.handler.OnDisconnect(DisconnectRemoved)
		}
	})
}

// sendJSON allocates a tag, registers the completion and enqueues a text
// frame.
func (c *Conn) sendJSON(payload []byte, cb completion) error {
	c.mu.Lock()
	if c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	tag := c.pending.allocTag()
	c.pending.register(tag, cb)
	return c.writeFrameLocked(wire.Frame{Tag: tag, Payload: wire.JSON(payload)}, "json")
}

// sendAppMessage encrypts an app message and enqueues a binary frame. A
// nil tag allocates the next counter tag. The epoch is incremented under
// the lock immediately before the event leaves.
func (c *Conn) sendAppMessage(tag *string, metric wire.Metric, msg protocol.AppMessage, cb completion) error {
	c.mu.Lock()
	if c.session.phase != phaseEstablished {
		c.mu.Unlock()
		return ErrNotEstablished
	}
	if c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}

	c.epoch++
	n, err := protocol.EncodeAppMessage(msg, c.epoch)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	plain, err := node.Marshal(n)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	encrypted, err := crypto.SignAndEncrypt(c.session.creds.EncKey[:], c.session.creds.MacKey[:], plain)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	t := ""
	if tag != nil {
		t = *tag
	} else {
		t = c.pending.allocTag()
	}
	c.pending.register(t, cb)
	return c.writeFrameLocked(wire.Frame{Tag: t, Payload: wire.Binary{Metric: metric, Data: encrypted}}, "binary")
}

// writeFrameLocked writes a frame while transferring from the session lock
// to the write lock, so enqueue order matches write order without blocking
// the session lock on socket I/O. Callers must hold mu; it is released
// here.
func (c *Conn) writeFrameLocked(f wire.Frame, kind string) error {
	messageType, data, err := f.Marshal()
	if err != nil {
		c.mu.Unlock()
		return err
	}
	ws := c.ws

	c.writeMu.Lock()
	c.mu.Unlock()
	err = ws.WriteMessage(messageType, data)
	c.writeMu.Unlock()

	if err != nil {
		c.log.Warn("socket write failed", logger.Error(err))
		return fmt.Errorf("socket write: %w", err)
	}
	metrics.FramesSent.WithLabelValues(kind).Inc()
	return nil
}

// handleFrame processes one inbound frame: re-arm the liveness timer,
// resolve a pending completion by tag, or dispatch an unsolicited event.
func (c *Conn) handleFrame(f wire.Frame) {
	c.mu.Lock()
	if c.session.phase == phaseTornDown {
		c.mu.Unlock()
		return
	}
	if c.timer != nil {
		c.timer.arm(c.cfg.PingWindow, timerNormal)
	}

	switch p := f.Payload.(type) {
	case wire.Pong:
		c.mu.Unlock()
		metrics.FramesReceived.WithLabelValues("pong").Inc()

	case wire.Empty:
		c.mu.Unlock()
		metrics.FramesReceived.WithLabelValues("empty").Inc()

	case wire.JSON:
		cb, found := c.pending.take(f.Tag)
		c.mu.Unlock()
		metrics.FramesReceived.WithLabelValues("json").Inc()
		if found {
			cb(Response{JSON: []byte(p)})
			return
		}
		c.handleServerJSON([]byte(p))

	case wire.Binary:
		if c.session.phase != phaseEstablished {
			c.mu.Unlock()
			c.log.Warn("binary frame before establishment", logger.String("tag", f.Tag))
			return
		}
		plain, err := crypto.VerifyAndDecrypt(c.session.creds.EncKey[:], c.session.creds.MacKey[:], p.Data)
		if err != nil {
			c.mu.Unlock()
			metrics.CryptoFailures.Inc()
			c.log.Error("dropping unauthenticated frame", logger.String("tag", f.Tag), logger.Error(err))
			return
		}
		n, err := node.Unmarshal(plain)
		if err != nil {
			c.mu.Unlock()
			c.log.Error("dropping undecodable frame", logger.String("tag", f.Tag), logger.Error(err))
			return
		}
		cb, found := c.pending.take(f.Tag)
		c.mu.Unlock()
		metrics.FramesReceived.WithLabelValues("binary").Inc()
		if found {
			cb(Response{Node: &n})
			return
		}
		c.handleAppNode(n)

	default:
		c.mu.Unlock()
	}
}

func (c *Conn) handleServerJSON(raw []byte) {
	msg, err := protocol.ParseServerMessage(raw)
	if err != nil {
		c.log.Debug("unhandled server message", logger.Error(err))
		return
	}

	switch m := msg.(type) {
	case protocol.ConnAck:
		c.handleConnAck(m)

	case protocol.ChallengeRequest:
		c.handleChallenge(m)

	case protocol.Disconnect:
		c.handleServerDisconnect(m)

	case protocol.PresenceChange:
		c.handler.OnUserDataChanged(PresenceUpdate{Jid: m.Jid, Status: m.Status, Time: m.Time})

	case protocol.StatusChange:
		c.handler.OnUserDataChanged(StatusChange{Jid: m.Jid, Status: m.Status})

	case protocol.PictureChange:
		c.handler.OnUserDataChanged(PictureChange{Jid: m.Jid, Removed: m.Removed})

	case protocol.MessageAcks:
		c.mu.Lock()
		own := c.userJid
		c.mu.Unlock()
		if own == nil {
			return
		}
		for _, id := range m.IDs {
			ack := message.AckFromServer(id, m.Level, m.Sender, m.Receiver, m.Participant, m.Time, *own)
			c.handler.OnUserDataChanged(MessageAck{Ack: ack})
		}

	case protocol.GroupIntroduce:
		c.handler.OnUserDataChanged(GroupIntroduce{NewlyCreated: m.NewlyCreated, Inducer: m.Inducer, Meta: m.Meta})

	case protocol.GroupParticipantsChanged:
		c.handler.OnUserDataChanged(GroupParticipantsChange{
			Group: m.Group, Change: m.Change, Inducer: m.Inducer, Participants: m.Participants,
		})

	case protocol.GroupSubjectChange:
		c.handler.OnUserDataChanged(GroupSubjectChange{
			Group: m.Group, Subject: m.Subject, SubjectTime: m.SubjectTime, SubjectOwner: m.SubjectOwner,
		})
	}
}

// handleConnAck finishes pairing or resumption: the only path into
// Established.
func (c *Conn) handleConnAck(m protocol.ConnAck) {
	c.mu.Lock()
	var creds Credentials
	switch c.session.phase {
	case phasePendingNew:
		if m.Secret == nil {
			c.mu.Unlock()
			c.failPairing(fmt.Errorf("conn ack without pairing secret"))
			return
		}
		keys, err := c.session.keyPair.DeriveSessionKeys(m.Secret)
		if err != nil {
			c.mu.Unlock()
			metrics.CryptoFailures.Inc()
			c.failPairing(err)
			return
		}
		creds = Credentials{
			ClientToken: m.ClientToken,
			ServerToken: m.ServerToken,
			ClientID:    c.session.creds.ClientID,
			EncKey:      keys.Enc,
			MacKey:      keys.Mac,
		}

	case phasePendingPersistent:
		creds = c.session.creds
		creds.ClientToken = m.ClientToken
		creds.ServerToken = m.ServerToken

	default:
		c.mu.Unlock()
		c.log.Warn("conn ack in unexpected session state")
		return
	}

	userJid := m.UserJid
	c.session = sessionState{phase: phaseEstablished, creds: creds}
	c.userJid = &userJid
	c.epoch = 0
	c.mu.Unlock()

	metrics.SessionState.Set(float64(StateConnected))
	c.log.Info("session established", logger.String("jid", userJid.String()))
	c.handler.OnStateChanged(StateConnected)
	c.handler.OnPersistentSessionDataChanged(creds)
	c.handler.OnUserDataChanged(UserJid{Jid: userJid})
}

// failPairing tears the session down after an unrecoverable pairing error.
func (c *Conn) failPairing(err error) {
	c.log.Error("pairing failed", logger.Error(err))
	c.Disconnect()
	c.handler.OnDisconnect(DisconnectRemoved)
}

func (c *Conn) handleChallenge(m protocol.ChallengeRequest) {
	c.mu.Lock()
	if c.session.phase != phasePendingPersistent && c.session.phase != phaseEstablished {
		c.mu.Unlock()
		return
	}
	creds := c.session.creds
	c.mu.Unlock()

	signature := crypto.SignChallenge(creds.MacKey[:], m.Challenge)
	response := protocol.BuildChallengeResponse(signature, creds.ServerToken, creds.ClientID[:])
	c.log.Debug("answering login challenge")
	_ = c.sendJSON(response, func(Response) {})
}

func (c *Conn) handleServerDisconnect(m protocol.Disconnect) {
	c.mu.Lock()
	c.session = sessionState{phase: phaseTornDown}
	if c.timer != nil {
		c.timer.disarm()
		c.timer = nil
	}
	ws := c.ws
	c.pending.drop()
	c.mu.Unlock()

	metrics.SessionState.Set(float64(StateDisconnecting))
	c.handler.OnStateChanged(StateDisconnecting)
	reason := DisconnectRemoved
	if m.Kind != "" {
		reason = DisconnectReplaced
	}
	c.handler.OnDisconnect(reason)
	if ws != nil {
		_ = ws.Close()
	}
}

func (c *Conn) handleAppNode(n node.Node) {
	msg, err := protocol.DecodeAppMessage(n)
	if err != nil {
		c.log.Debug("unhandled app message", logger.Error(err))
		return
	}

	switch m := msg.(type) {
	case protocol.ContactList:
		c.handler.OnUserDataChanged(ContactsInitial{Contacts: m.Contacts})

	case protocol.ChatList:
		c.handler.OnUserDataChanged(ChatsInitial{Chats: m.Chats})

	case protocol.Events:
		relayed := m.Kind != nil && *m.Kind == protocol.EventRelay
		for _, ev := range m.Events {
			switch e := ev.(type) {
			case protocol.EventMessage:
				c.handler.OnMessage(relayed, e.Message)
			case protocol.EventAck:
				c.handler.OnUserDataChanged(MessageAck{Ack: e.Ack})
			case protocol.EventContactChange:
				c.handler.OnUserDataChanged(ContactAddChange{Contact: e.Contact})
			case protocol.EventContactDelete:
				c.handler.OnUserDataChanged(ContactDelete{Jid: e.Jid})
			case protocol.EventChatAction:
				c.handler.OnUserDataChanged(ChatActionEvent{Jid: e.Jid, Action: e.Action})
			case protocol.EventBattery:
				c.handler.OnUserDataChanged(Battery{Level: e.Level})
			}
		}
	}
}

// onTimerExpire runs on a timer goroutine. Normal expiry probes the peer
// and arms the deathline; deathline expiry terminates the socket so the
// reconnect loop takes over.
func (c *Conn) onTimerExpire(gen uint64) {
	c.mu.Lock()
	if c.timer == nil || !c.timer.valid(gen) {
		c.mu.Unlock()
		return
	}

	switch c.timer.state {
	case timerNormal:
		ws := c.ws
		if ws == nil {
			c.mu.Unlock()
			return
		}
		c.timer.reset(c.cfg.DeathlineWindow, timerDeathline)

		c.writeMu.Lock()
		c.mu.Unlock()
		err := ws.WriteMessage(websocket.TextMessage, []byte("?,,"))
		c.writeMu.Unlock()

		metrics.KeepAliveProbes.Inc()
		if err != nil {
			c.log.Warn("keep-alive probe failed", logger.Error(err))
		} else {
			c.log.Debug("keep-alive probe sent")
		}

	case timerDeathline:
		ws := c.ws
		c.mu.Unlock()
		metrics.DeathlineExpiries.Inc()
		c.log.Warn("liveness deadline expired, closing socket")
		if ws != nil {
			_ = ws.Close()
		}
	}
}
