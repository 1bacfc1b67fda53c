package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-project/waveline/jid"
	"github.com/waveline-project/waveline/message"
)

func TestBuildInitRequest(t *testing.T) {
	clientID := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	got := BuildInitRequest(clientID)
	assert.Equal(t, `["admin","init",[0,3,416],["ww-rs","ww-rs"],"AAECAwQFBgc=",true]`, string(got))
}

func TestBuildTakeoverRequest(t *testing.T) {
	got := BuildTakeoverRequest("CT", "ST", []byte{0, 1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, `["admin","login","CT","ST","AAECAwQFBgc=","takeover"]`, string(got))
}

func TestBuildChallengeResponse(t *testing.T) {
	got := BuildChallengeResponse([]byte{0xCA, 0xFE}, "ST", []byte{0, 1, 2, 3, 4, 5, 6, 7})
	assert.Equal(t, `["admin","challenge","yv4=","ST","AAECAwQFBgc="]`, string(got))
}

func TestBuildQueries(t *testing.T) {
	j := jid.Jid{ID: "491234567"}
	assert.Equal(t, `["action","presence","subscribe","491234567@c.us"]`, string(BuildPresenceSubscribe(j)))
	assert.Equal(t, `["query","ProfilePicThumb","491234567@c.us"]`, string(BuildProfilePictureRequest(j)))
	assert.Equal(t, `["query","Status","491234567@c.us"]`, string(BuildProfileStatusRequest(j)))

	group := jid.Jid{ID: "1-2", IsGroup: true}
	assert.Equal(t, `["query","GroupMetadata","1-2@g.us"]`, string(BuildGroupMetadataRequest(group)))

	assert.Equal(t, `["action","encr_upload","image","yv4="]`,
		string(BuildFileUploadRequest([]byte{0xCA, 0xFE}, message.MediaImage)))
}

func TestParseResponseStatus(t *testing.T) {
	assert.NoError(t, ParseResponseStatus([]byte(`{"status":200}`)))
	assert.NoError(t, ParseResponseStatus([]byte(`{"ref":"x"}`)))
	assert.Error(t, ParseResponseStatus([]byte(`{"status":401}`)))
	assert.Error(t, ParseResponseStatus([]byte(`not json`)))
}

func TestParseInitResponse(t *testing.T) {
	ref, err := ParseInitResponse([]byte(`{"status":200,"ref":"REF"}`))
	require.NoError(t, err)
	assert.Equal(t, "REF", ref)

	_, err = ParseInitResponse([]byte(`{"status":200}`))
	var fieldErr *FieldError
	assert.ErrorAs(t, err, &fieldErr)

	_, err = ParseInitResponse([]byte(`{"status":429,"ref":"REF"}`))
	assert.Error(t, err)
}

func TestParseFileUploadResponse(t *testing.T) {
	url, err := ParseFileUploadResponse([]byte(`{"status":200,"url":"https://upload.invalid/x"}`))
	require.NoError(t, err)
	assert.Equal(t, "https://upload.invalid/x", url)

	_, err = ParseFileUploadResponse([]byte(`{"status":200}`))
	assert.Error(t, err)
}

func TestParseProfileResponses(t *testing.T) {
	assert.Equal(t, "https://pic.invalid/1.jpg",
		ParseProfilePictureResponse([]byte(`{"eurl":"https://pic.invalid/1.jpg"}`)))
	assert.Equal(t, "", ParseProfilePictureResponse([]byte(`{"tag":"removed"}`)))

	assert.Equal(t, "busy", ParseProfileStatusResponse([]byte(`{"status":"busy"}`)))
}

func TestParseGroupMetadataResponse(t *testing.T) {
	raw := []byte(`{
		"status": 200,
		"id": "111-222@g.us",
		"owner": "49123@c.us",
		"creation": 1600000000,
		"subject": "X",
		"subjectTime": 1600000001,
		"subjectOwner": "49123@c.us",
		"participants": [
			{"id": "49123@c.us", "isAdmin": true},
			{"id": "49456@c.us", "isAdmin": false}
		]
	}`)

	meta, err := ParseGroupMetadataResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "111-222", meta.ID.ID)
	require.NotNil(t, meta.Owner)
	assert.Equal(t, "49123", meta.Owner.ID)
	assert.Equal(t, "X", meta.Subject)
	require.Len(t, meta.Participants, 2)
	assert.True(t, meta.Participants[0].IsAdmin)
	assert.False(t, meta.Participants[1].IsAdmin)

	_, err = ParseGroupMetadataResponse([]byte(`{"status":404}`))
	assert.Error(t, err)
}
