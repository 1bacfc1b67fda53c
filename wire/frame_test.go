package wire

import (
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalJSON(t *testing.T) {
	f := Frame{Tag: "12", Payload: JSON(`["admin","test"]`)}
	messageType, data, err := f.Marshal()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, messageType)
	assert.Equal(t, `12,["admin","test"]`, string(data))
}

func TestMarshalBinaryWithMetric(t *testing.T) {
	f := Frame{Tag: "7", Payload: Binary{Metric: MetricMessage, Data: []byte{0xAA, 0xBB}}}
	messageType, data, err := f.Marshal()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, messageType)
	assert.Equal(t, []byte{'7', ',', byte(MetricMessage), 0x80, 0xAA, 0xBB}, data)
}

func TestMarshalBinaryWithoutMetric(t *testing.T) {
	f := Frame{Tag: "7", Payload: Binary{Data: []byte{0xAA}}}
	_, data, err := f.Marshal()
	require.NoError(t, err)
	// Metric None renders as the literal ",," separator.
	assert.Equal(t, []byte{'7', ',', ',', 0xAA}, data)
}

func TestMarshalEmpty(t *testing.T) {
	_, data, err := Frame{Tag: "3", Payload: Empty{}}.Marshal()
	require.NoError(t, err)
	assert.Equal(t, "3,", string(data))
}

func TestMarshalPongFails(t *testing.T) {
	_, _, err := Frame{Payload: Pong{}}.Marshal()
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestUnmarshalText(t *testing.T) {
	f, err := Unmarshal(websocket.TextMessage, []byte(`s1,{"status":200}`))
	require.NoError(t, err)
	assert.Equal(t, "s1", f.Tag)
	assert.Equal(t, JSON(`{"status":200}`), f.Payload)

	f, err = Unmarshal(websocket.TextMessage, []byte("s2,"))
	require.NoError(t, err)
	assert.Equal(t, "s2", f.Tag)
	assert.Equal(t, Empty{}, f.Payload)

	f, err = Unmarshal(websocket.TextMessage, []byte("!1234567"))
	require.NoError(t, err)
	assert.Equal(t, "", f.Tag)
	assert.Equal(t, Pong{}, f.Payload)

	_, err = Unmarshal(websocket.TextMessage, []byte("no separator"))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = Unmarshal(websocket.TextMessage, []byte("tag,not json"))
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestUnmarshalBinary(t *testing.T) {
	f, err := Unmarshal(websocket.BinaryMessage, []byte{'4', '2', ',', 0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, "42", f.Tag)
	assert.Equal(t, Binary{Data: []byte{0x01, 0x02}}, f.Payload)

	_, err = Unmarshal(websocket.BinaryMessage, []byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestUnmarshalUnknownType(t *testing.T) {
	_, err := Unmarshal(websocket.PingMessage, nil)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}
