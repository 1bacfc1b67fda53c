package protocol

import (
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-project/waveline/message"
)

func TestParseConnAck(t *testing.T) {
	secret := make([]byte, 144)
	for i := range secret {
		secret[i] = byte(i)
	}
	raw := fmt.Sprintf(`["Conn",{"wid":"49123@c.us","clientToken":"CT","serverToken":"ST","secret":%q}]`,
		base64.StdEncoding.EncodeToString(secret))

	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	ack, ok := msg.(ConnAck)
	require.True(t, ok)
	assert.Equal(t, "49123", ack.UserJid.ID)
	assert.Equal(t, "CT", ack.ClientToken)
	assert.Equal(t, "ST", ack.ServerToken)
	assert.Equal(t, secret, ack.Secret)
}

func TestParseConnAckWithoutSecret(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Conn",{"wid":"49123@c.us","clientToken":"CT","serverToken":"ST"}]`))
	require.NoError(t, err)
	ack := msg.(ConnAck)
	assert.Nil(t, ack.Secret)
}

func TestParseConnAckMissingFields(t *testing.T) {
	_, err := ParseServerMessage([]byte(`["Conn",{"wid":"49123@c.us","serverToken":"ST"}]`))
	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "clientToken", fieldErr.Field)
}

func TestParseChallenge(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Cmd",{"type":"challenge","challenge":"yv4="}]`))
	require.NoError(t, err)
	assert.Equal(t, ChallengeRequest{Challenge: []byte{0xCA, 0xFE}}, msg)
}

func TestParseDisconnect(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Cmd",{"type":"disconnect","kind":"replaced"}]`))
	require.NoError(t, err)
	assert.Equal(t, Disconnect{Kind: "replaced"}, msg)

	msg, err = ParseServerMessage([]byte(`["Cmd",{"type":"disconnect"}]`))
	require.NoError(t, err)
	assert.Equal(t, Disconnect{}, msg)
}

func TestParsePicture(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Cmd",{"type":"picture","jid":"49123@c.us","tag":"removed"}]`))
	require.NoError(t, err)
	pic := msg.(PictureChange)
	assert.True(t, pic.Removed)
	assert.Equal(t, "49123", pic.Jid.ID)
}

func TestParsePresence(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Presence",{"id":"49123@c.us","type":"composing","t":1600000000}]`))
	require.NoError(t, err)
	p := msg.(PresenceChange)
	assert.Equal(t, PresenceComposing, p.Status)
	assert.Equal(t, int64(1600000000), p.Time)

	_, err = ParseServerMessage([]byte(`["Presence",{"id":"49123@c.us","type":"warp"}]`))
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`["Status",{"id":"49123@c.us","status":"hi"}]`))
	require.NoError(t, err)
	assert.Equal(t, "hi", msg.(StatusChange).Status)
}

func TestParseMessageAck(t *testing.T) {
	raw := `["Msg",{"cmd":"ack","id":"3EB0AA","from":"49123@c.us","to":"49456@c.us","t":1600000000,"ack":3}]`
	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	acks := msg.(MessageAcks)
	assert.Equal(t, []string{"3EB0AA"}, acks.IDs)
	assert.Equal(t, message.AckRead, acks.Level)
	assert.Nil(t, acks.Participant)
}

func TestParseMessageAcks(t *testing.T) {
	raw := `["MsgInfo",{"cmd":"acks","id":["A","B"],"from":"49123@c.us","to":"1-2@g.us","participant":"49456@c.us","t":1,"ack":2}]`
	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	acks := msg.(MessageAcks)
	assert.Equal(t, []string{"A", "B"}, acks.IDs)
	require.NotNil(t, acks.Participant)
	assert.Equal(t, "49456", acks.Participant.ID)
}

func TestParseGroupIntroduce(t *testing.T) {
	raw := `["Chat",{"id":"111-222@g.us","data":["create","49123@c.us",{
		"creation":1600000000,"subject":"X","s_o":"49123@c.us","s_t":1600000001,
		"admins":["49123@c.us"],"regulars":["49456@c.us"]}]}]`
	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	intro := msg.(GroupIntroduce)
	assert.True(t, intro.NewlyCreated)
	assert.Equal(t, "49123", intro.Inducer.ID)
	assert.Equal(t, "X", intro.Meta.Subject)
	require.Len(t, intro.Meta.Participants, 2)
	assert.True(t, intro.Meta.Participants[0].IsAdmin)
}

func TestParseGroupParticipantsChange(t *testing.T) {
	raw := `["Chat",{"id":"111-222@g.us","data":["promote","49123@c.us",{"participants":["49456@c.us"]}]}]`
	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	change := msg.(GroupParticipantsChanged)
	assert.Equal(t, GroupPromote, change.Change)
	require.NotNil(t, change.Inducer)
	require.Len(t, change.Participants, 1)
}

func TestParseGroupSubjectChange(t *testing.T) {
	raw := `["Chat",{"id":"111-222@g.us","data":["subject","49123@c.us",{"subject":"New","s_t":5}]}]`
	msg, err := ParseServerMessage([]byte(raw))
	require.NoError(t, err)
	subject := msg.(GroupSubjectChange)
	assert.Equal(t, "New", subject.Subject)
	assert.Equal(t, int64(5), subject.SubjectTime)
}

func TestParseUnknownOpcode(t *testing.T) {
	_, err := ParseServerMessage([]byte(`["Mystery",{}]`))
	assert.Error(t, err)
	_, err = ParseServerMessage([]byte(`{}`))
	assert.Error(t, err)
	_, err = ParseServerMessage([]byte(`["OnlyOpcode"]`))
	assert.Error(t, err)
}
