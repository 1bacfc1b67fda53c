package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
	"github.com/waveline-project/waveline/node"
)

func mustJid(t *testing.T, s string) jid.Jid {
	t.Helper()
	j, err := jid.Parse(s)
	require.NoError(t, err)
	return j
}

func TestEncodeGroupCreate(t *testing.T) {
	self := mustJid(t, "49123@c.us")
	a := mustJid(t, "49456@c.us")
	b := mustJid(t, "49789@c.us")

	kind := EventSet
	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventGroupCommand{
			Inducer:      self,
			ID:           "17",
			Participants: []jid.Jid{a, b},
			Command:      GroupCommand{Kind: GroupCommandCreate, Subject: "X"},
		},
	}}, 4)
	require.NoError(t, err)

	assert.Equal(t, "action", n.Desc)
	typ, err := n.StringAttr("type")
	require.NoError(t, err)
	assert.Equal(t, "set", typ)
	epoch, err := n.StringAttr("epoch")
	require.NoError(t, err)
	assert.Equal(t, "4", epoch)

	children := n.Children()
	require.Len(t, children, 1)
	group := children[0]
	assert.Equal(t, "group", group.Desc)

	typ, err = group.StringAttr("type")
	require.NoError(t, err)
	assert.Equal(t, "create", typ)
	subject, err := group.StringAttr("subject")
	require.NoError(t, err)
	assert.Equal(t, "X", subject)
	id, err := group.StringAttr("id")
	require.NoError(t, err)
	assert.Equal(t, "17", id)
	author, err := group.JidAttr("author")
	require.NoError(t, err)
	assert.Equal(t, self, author)

	participants := group.Children()
	require.Len(t, participants, 2)
	for i, want := range []jid.Jid{a, b} {
		assert.Equal(t, "participant", participants[i].Desc)
		got, err := participants[i].JidAttr("jid")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestEncodeMessageRead(t *testing.T) {
	group := mustJid(t, "111-222@g.us")
	member := mustJid(t, "49456@c.us")

	kind := EventSet
	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventMessageRead{ID: "3EB0AA", Peer: message.Peer{Jid: group, Participant: &member}},
	}}, 1)
	require.NoError(t, err)

	read := n.Children()[0]
	assert.Equal(t, "read", read.Desc)
	index, _ := read.StringAttr("index")
	assert.Equal(t, "3EB0AA", index)
	owner, _ := read.StringAttr("owner")
	assert.Equal(t, "false", owner)
	count, _ := read.StringAttr("count")
	assert.Equal(t, "1", count)
	j, err := read.JidAttr("jid")
	require.NoError(t, err)
	assert.Equal(t, group, j)
	p, err := read.JidAttr("participant")
	require.NoError(t, err)
	assert.Equal(t, member, p)
}

func TestEncodeMessagePlayed(t *testing.T) {
	peer := mustJid(t, "49456@c.us")
	kind := EventSet
	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventMessagePlayed{ID: "3EB0BB", Peer: message.Peer{Jid: peer}},
	}}, 2)
	require.NoError(t, err)

	played := n.Children()[0]
	assert.Equal(t, "received", played.Desc)
	typ, _ := played.StringAttr("type")
	assert.Equal(t, "played", typ)
	from, err := played.JidAttr("from")
	require.NoError(t, err)
	assert.Equal(t, peer, from)
	_, err = played.StringAttr("jid")
	assert.Error(t, err)
}

func TestEncodeChatActions(t *testing.T) {
	chat := mustJid(t, "49456@c.us")
	kind := EventSet

	tests := []struct {
		name      string
		action    ChatAction
		wantType  string
		sidecar   string
		wantValue string
	}{
		{"archive", ChatAction{Kind: ChatArchive}, "archive", "", ""},
		{"unarchive", ChatAction{Kind: ChatUnarchive}, "unarchive", "", ""},
		{"spam", ChatAction{Kind: ChatSpam}, "spam", "", ""},
		{"delete", ChatAction{Kind: ChatDelete}, "delete", "", ""},
		{"clear", ChatAction{Kind: ChatClear}, "clear", "", ""},
		{"pin", ChatAction{Kind: ChatPin, Time: 1600000000}, "pin", "pin", "1600000000"},
		{"unpin", ChatAction{Kind: ChatUnpin}, "pin", "pin", ""},
		{"mute", ChatAction{Kind: ChatMute, Time: 1600009999}, "mute", "mute", "1600009999"},
		{"unmute", ChatAction{Kind: ChatUnmute}, "mute", "mute", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
				EventChatAction{Jid: chat, Action: tt.action},
			}}, 1)
			require.NoError(t, err)

			child := n.Children()[0]
			assert.Equal(t, "chat", child.Desc)
			typ, err := child.StringAttr("type")
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)

			if tt.sidecar != "" {
				v, err := child.StringAttr(tt.sidecar)
				if tt.wantValue == "" {
					assert.Error(t, err, "sidecar %q should be absent", tt.sidecar)
				} else {
					require.NoError(t, err)
					assert.Equal(t, tt.wantValue, v)
				}
			}
		})
	}

	// Read state changes travel as dedicated read nodes, not chat actions.
	_, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventChatAction{Jid: chat, Action: ChatAction{Kind: ChatRead}},
	}}, 1)
	assert.Error(t, err)
}

func TestEncodeBlockProfile(t *testing.T) {
	target := mustJid(t, "49456@c.us")
	kind := EventSet
	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventBlockProfile{Unblock: false, Jid: target},
	}}, 1)
	require.NoError(t, err)

	block := n.Children()[0]
	assert.Equal(t, "block", block.Desc)
	typ, _ := block.StringAttr("type")
	assert.Equal(t, "add", typ)
	users := block.Children()
	require.Len(t, users, 1)
	assert.Equal(t, "user", users[0].Desc)
}

func TestEncodePresenceAndProfile(t *testing.T) {
	kind := EventSet
	to := mustJid(t, "49456@c.us")

	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventPresence{Status: PresenceComposing, To: &to},
	}}, 1)
	require.NoError(t, err)
	presence := n.Children()[0]
	typ, _ := presence.StringAttr("type")
	assert.Equal(t, "composing", typ)
	j, err := presence.JidAttr("to")
	require.NoError(t, err)
	assert.Equal(t, to, j)

	n, err = EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventStatusChange{Status: "around"},
	}}, 1)
	require.NoError(t, err)
	status := n.Children()[0]
	assert.Equal(t, "status", status.Desc)
	content, err := status.ContentString()
	require.NoError(t, err)
	assert.Equal(t, "around", content)

	n, err = EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{
		EventNotifyChange{Name: "Alice"},
	}}, 1)
	require.NoError(t, err)
	profile := n.Children()[0]
	assert.Equal(t, "profile", profile.Desc)
	name, _ := profile.StringAttr("name")
	assert.Equal(t, "Alice", name)
}

func TestEncodeQueryMessagesBefore(t *testing.T) {
	chat := mustJid(t, "49456@c.us")
	n, err := EncodeAppMessage(QueryMessagesBefore{Jid: chat, ID: "3EB0CC", Count: 20}, 7)
	require.NoError(t, err)

	assert.Equal(t, "query", n.Desc)
	assert.Nil(t, n.Content)
	for attr, want := range map[string]string{
		"type": "message", "kind": "before", "count": "20", "index": "3EB0CC", "owner": "false", "epoch": "7",
	} {
		v, err := n.StringAttr(attr)
		require.NoError(t, err, attr)
		assert.Equal(t, want, v, attr)
	}
}

func TestEncodeRelayMessageRoundTripsThroughWire(t *testing.T) {
	to := mustJid(t, "491234567@c.us")
	msg := &message.ChatMessage{
		ID:        "3EB0DD",
		Direction: message.Direction{FromMe: true, Remote: to},
		Time:      time.Unix(1700000000, 0).UTC(),
		Content:   message.Text("hi"),
	}
	kind := EventRelay
	n, err := EncodeAppMessage(Events{Kind: &kind, Events: []AppEvent{EventMessage{Message: msg}}}, 9)
	require.NoError(t, err)

	typ, _ := n.StringAttr("type")
	assert.Equal(t, "relay", typ)

	// Through the node codec and back: the message child keeps its binary
	// payload and decodes to the same protobuf content.
	data, err := node.Marshal(n)
	require.NoError(t, err)
	back, err := node.Unmarshal(data)
	require.NoError(t, err)

	child := back.Children()[0]
	require.Equal(t, "message", child.Desc)
	payload, ok := child.Content.(node.Binary)
	require.True(t, ok)
	decoded, err := message.Unmarshal(payload)
	require.NoError(t, err)
	assert.Equal(t, message.Text("hi"), decoded.Content)
	assert.True(t, decoded.Direction.FromMe)
}

func TestDecodeActionBatch(t *testing.T) {
	user := mustJid(t, "49456@c.us")

	action := node.New("action", map[string]node.Value{
		"add": node.String("relay"),
	}, node.List{
		node.New("battery", map[string]node.Value{"value": node.String("80")}, nil),
		node.New("user", map[string]node.Value{
			"jid":    node.Jid(user),
			"name":   node.String("Bob"),
			"notify": node.String("bobby"),
		}, nil),
		node.New("user", map[string]node.Value{"jid": node.Jid(user)}, nil),
		node.New("read", map[string]node.Value{"jid": node.Jid(user)}, nil),
		node.New("received", map[string]node.Value{
			"index": node.String("3EB0EE"),
			"type":  node.String("read"),
			"jid":   node.Jid(user),
			"owner": node.String("true"),
		}, nil),
		node.New("mystery", nil, nil),
	})

	msg, err := DecodeAppMessage(action)
	require.NoError(t, err)
	events, ok := msg.(Events)
	require.True(t, ok)
	require.NotNil(t, events.Kind)
	assert.Equal(t, EventRelay, *events.Kind)
	require.Len(t, events.Events, 5) // mystery node skipped

	assert.Equal(t, EventBattery{Level: 80}, events.Events[0])

	contact := events.Events[1].(EventContactChange)
	assert.Equal(t, "Bob", contact.Contact.Name)
	assert.Equal(t, "bobby", contact.Contact.Notify)

	assert.Equal(t, EventContactDelete{Jid: user}, events.Events[2])

	read := events.Events[3].(EventChatAction)
	assert.Equal(t, ChatRead, read.Action.Kind)

	ack := events.Events[4].(EventAck)
	assert.Equal(t, message.AckRead, ack.Ack.Level)
	assert.True(t, ack.Ack.Side.Owner)
}

func TestDecodeResponses(t *testing.T) {
	user := mustJid(t, "49456@c.us")

	contacts := node.New("response", map[string]node.Value{
		"type": node.String("contacts"),
	}, node.List{
		node.New("user", map[string]node.Value{"jid": node.Jid(user), "name": node.String("Bob")}, nil),
	})
	msg, err := DecodeAppMessage(contacts)
	require.NoError(t, err)
	list := msg.(ContactList)
	require.Len(t, list.Contacts, 1)
	assert.Equal(t, "Bob", list.Contacts[0].Name)

	chats := node.New("response", map[string]node.Value{
		"type": node.String("chat"),
	}, node.List{
		node.New("chat", map[string]node.Value{
			"jid":  node.Jid(user),
			"t":    node.String("1600000000"),
			"spam": node.String("false"),
			"mute": node.String("1700000000"),
		}, nil),
	})
	msg, err = DecodeAppMessage(chats)
	require.NoError(t, err)
	chatList := msg.(ChatList)
	require.Len(t, chatList.Chats, 1)
	assert.Equal(t, int64(1700000000), chatList.Chats[0].MuteUntil)
	assert.False(t, chatList.Chats[0].Spam)
}

func TestParseMessageResponse(t *testing.T) {
	to := mustJid(t, "491234567@c.us")
	msg := &message.ChatMessage{
		ID:        "3EB0FF",
		Direction: message.Direction{FromMe: true, Remote: to},
		Time:      time.Unix(1700000000, 0).UTC(),
		Content:   message.Text("old"),
	}
	payload, err := msg.Marshal()
	require.NoError(t, err)

	response := node.New("response", map[string]node.Value{
		"type": node.String("message"),
	}, node.List{
		node.New("message", nil, node.Binary(payload)),
	})

	messages, err := ParseMessageResponse(response)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, message.Text("old"), messages[0].Content)

	_, err = ParseMessageResponse(node.New("action", nil, nil))
	assert.ErrorIs(t, err, ErrEnvelope)
}

func TestDecodeRejectsUnknownRoot(t *testing.T) {
	_, err := DecodeAppMessage(node.New("mystery", nil, nil))
	assert.ErrorIs(t, err, ErrEnvelope)
}
