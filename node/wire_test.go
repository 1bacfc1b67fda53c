package node

import (
	"bytes"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-project/waveline/jid"
)

func roundTrip(t *testing.T, n Node) Node {
	t.Helper()
	data, err := Marshal(n)
	require.NoError(t, err)
	back, err := Unmarshal(data)
	require.NoError(t, err)
	return back
}

func TestRoundTripActionTree(t *testing.T) {
	group, err := jid.Parse("12123123-493244232342@g.us")
	require.NoError(t, err)

	n := New("action", nil, List{
		New("chat", map[string]Value{
			"jid":  Jid(group),
			"type": String("delete"),
		}, nil),
	})

	assert.Equal(t, n, roundTrip(t, n))
}

func TestRoundTripValueKinds(t *testing.T) {
	user, err := jid.Parse("491234567@c.us")
	require.NoError(t, err)

	tests := []struct {
		name string
		node Node
	}{
		{"no attributes no content", New("presence", nil, nil)},
		{"token attribute", New("chat", map[string]Value{"type": String("archive")}, nil)},
		{"free string attribute", New("profile", map[string]Value{"name": String("Alice Example")}, nil)},
		{"jid attribute", New("read", map[string]Value{"jid": Jid(user)}, nil)},
		{"binary content", New("message", nil, Binary{0xDE, 0xAD, 0x00, 0xFF})},
		{"token string content", New("status", nil, String("available"))},
		{"empty list content", New("action", nil, List{})},
		{"nested lists", New("action", nil, List{New("group", nil, List{New("participant", map[string]Value{"jid": Jid(user)}, nil)})})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.node, roundTrip(t, tt.node))
		})
	}
}

func TestListSizeBoundaries(t *testing.T) {
	for _, count := range []int{1, 255, 256, 257} {
		t.Run(strconv.Itoa(count), func(t *testing.T) {
			children := make(List, count)
			for i := range children {
				children[i] = New("item", nil, nil)
			}
			n := New("action", nil, children)
			back := roundTrip(t, n)
			require.Len(t, back.Children(), count)
		})
	}
}

func TestListHeaderEncoding(t *testing.T) {
	small := make(List, 255)
	for i := range small {
		small[i] = New("item", nil, nil)
	}
	data, err := Marshal(New("action", nil, small))
	require.NoError(t, err)
	// Node header, desc token, then the content list header.
	idx := bytes.IndexByte(data[3:], tagList8)
	require.GreaterOrEqual(t, idx, 0)

	big := append(small, New("item", nil, nil))
	data, err = Marshal(New("action", nil, big))
	require.NoError(t, err)
	idx = bytes.IndexByte(data[3:], tagList16)
	require.GreaterOrEqual(t, idx, 0)
}

func TestBinarySizeBoundaries(t *testing.T) {
	for _, size := range []int{0, 255, 256, 1<<20 - 1, 1 << 20} {
		t.Run(strconv.Itoa(size), func(t *testing.T) {
			content := make(Binary, size)
			for i := range content {
				content[i] = 0xA5 // invalid UTF-8 keeps attr values binary too
			}
			n := New("message", nil, content)
			back := roundTrip(t, n)
			require.Equal(t, []byte(content), []byte(back.Content.(Binary)))
		})
	}
}

func TestBinary20HeaderTopNibbleZero(t *testing.T) {
	content := make(Binary, 256)
	data, err := Marshal(New("message", nil, content))
	require.NoError(t, err)

	idx := bytes.IndexByte(data, tagBinary20)
	require.GreaterOrEqual(t, idx, 0)
	require.Equal(t, byte(0), data[idx+1]>>4)
}

func TestTokenEncoding(t *testing.T) {
	data, err := Marshal(New("action", nil, nil))
	require.NoError(t, err)
	// list size 1 (LIST_8) followed by the token byte for "action".
	require.Equal(t, []byte{tagList8, 1, tokenIndex["action"]}, data)
}

func TestNibbleOddEven(t *testing.T) {
	for _, s := range []string{"4", "49", "491", "4912", "12123123-493244232342", "1.5"} {
		t.Run(s, func(t *testing.T) {
			var buf bytes.Buffer
			writeNibble(&buf, s)
			v, err := readValueTagged(bytes.NewReader(buf.Bytes()), false)
			require.NoError(t, err)
			require.Equal(t, String(s), v)
		})
	}
}

func TestNibbleOddFlagIgnoredOnDecode(t *testing.T) {
	var buf bytes.Buffer
	writeNibble(&buf, "491")
	raw := buf.Bytes()
	require.Equal(t, byte(tagNibble8), raw[0])
	require.Equal(t, byte(0x80|2), raw[1])

	// Clearing the odd flag must not change the decode: the terminator
	// nibble stops it.
	raw[1] &= 0x7F
	v, err := readValueTagged(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Equal(t, String("491"), v)
}

func TestHexDecode(t *testing.T) {
	// HEX_8, two packed bytes -> four uppercase hex digits.
	raw := []byte{tagHex8, 2, 0x3E, 0xB0}
	v, err := readValueTagged(bytes.NewReader(raw), false)
	require.NoError(t, err)
	require.Equal(t, String("3EB0"), v)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte{})
	assert.Error(t, err)

	// Valid header, invalid value tag (162 is outside every range).
	_, err = Unmarshal([]byte{tagList8, 1, 162})
	assert.ErrorIs(t, err, ErrInvalidTag)

	// Truncated binary payload.
	_, err = Unmarshal([]byte{tagList8, 2, tokenIndex["message"], tagBinary8, 10, 1, 2})
	assert.Error(t, err)
}

func TestTopLevelBinaryStaysRaw(t *testing.T) {
	// Valid UTF-8 bytes decode as String in attributes but stay Binary as
	// node content, where protobuf payloads live.
	n := New("message", nil, Binary("hello"))
	back := roundTrip(t, n)
	require.IsType(t, Binary{}, back.Content)

	attr := New("chat", map[string]Value{"name": String("hello")}, nil)
	require.Equal(t, attr, roundTrip(t, attr))
}

func TestAttrHelpers(t *testing.T) {
	user, err := jid.Parse("491234567@c.us")
	require.NoError(t, err)
	n := New("chat", map[string]Value{"jid": Jid(user), "type": String("archive")}, nil)

	s, err := n.StringAttr("type")
	require.NoError(t, err)
	assert.Equal(t, "archive", s)

	j, err := n.JidAttr("jid")
	require.NoError(t, err)
	assert.Equal(t, user, j)

	_, err = n.StringAttr("missing")
	var attrErr *AttrError
	assert.ErrorAs(t, err, &attrErr)
}
