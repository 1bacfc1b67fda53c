package client

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waveline-project/waveline/config"
)

func TestKeepAliveArmKeepsDeadlineInsideWindow(t *testing.T) {
	window := config.Window{Min: 200 * time.Millisecond, Max: time.Hour}
	k := newKeepAlive(window, timerNormal, func(uint64) {})
	defer k.disarm()

	genBefore := k.gen
	deadlineBefore := k.windowMax

	// Immediately re-arming with the same window keeps the deadline: it
	// still falls inside [now+Min, now+Max].
	k.arm(window, timerNormal)
	assert.Equal(t, genBefore, k.gen)
	assert.Equal(t, deadlineBefore, k.windowMax)
}

func TestKeepAliveArmResetsWhenOutsideWindow(t *testing.T) {
	long := config.Window{Min: time.Hour, Max: 2 * time.Hour}
	short := config.Window{Min: time.Millisecond, Max: 50 * time.Millisecond}

	k := newKeepAlive(long, timerNormal, func(uint64) {})
	defer k.disarm()
	genBefore := k.gen

	// A much shorter window cannot be satisfied by the pending deadline.
	k.arm(short, timerDeathline)
	assert.Equal(t, genBefore+1, k.gen)
	assert.Equal(t, timerDeathline, k.state)

	// And growing back re-arms again.
	k.arm(long, timerNormal)
	assert.Equal(t, genBefore+2, k.gen)
}

func TestKeepAliveExpiry(t *testing.T) {
	fired := make(chan uint64, 1)
	k := newKeepAlive(config.Window{Min: time.Millisecond, Max: 20 * time.Millisecond}, timerDeathline, func(gen uint64) {
		fired <- gen
	})
	defer k.disarm()

	select {
	case gen := <-fired:
		assert.True(t, k.valid(gen))
		assert.Equal(t, timerDeathline, k.state)
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestKeepAliveDisarmInvalidatesGeneration(t *testing.T) {
	var fired atomic.Int32
	k := newKeepAlive(config.Window{Min: time.Millisecond, Max: 10 * time.Millisecond}, timerNormal, func(gen uint64) {
		fired.Add(1)
	})

	gen := k.gen
	k.disarm()
	assert.False(t, k.valid(gen))

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(0), fired.Load())
}

func TestCredentialsBlobRoundTrip(t *testing.T) {
	creds := Credentials{ClientToken: "CT", ServerToken: "ST"}
	copy(creds.ClientID[:], []byte{1, 2, 3, 4, 5, 6, 7, 8})
	creds.EncKey[0] = 0xAA
	creds.MacKey[31] = 0xBB

	blob, err := creds.MarshalBinary()
	require.NoError(t, err)

	var back Credentials
	require.NoError(t, back.UnmarshalBinary(blob))
	assert.Equal(t, creds, back)

	assert.Error(t, back.UnmarshalBinary([]byte("not json")))
}
