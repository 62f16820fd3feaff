package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakePacketSource replays a fixed slice of raw Opus packets, then
// reports exhaustion.
type fakePacketSource struct {
	packets [][]byte
	i       int
}

func (f *fakePacketSource) NextPacket() ([]byte, bool) {
	if f.i >= len(f.packets) {
		return nil, false
	}
	p := f.packets[f.i]
	f.i++
	return p, true
}

func TestOpusReadSamplesEndsWhenSourceExhausted(t *testing.T) {
	src := &fakePacketSource{} // no packets at all
	o, err := NewOpus(48000, 1, src)
	require.NoError(t, err)
	require.NoError(t, o.Create("", 0))

	st, err := o.ReadSamples(960)
	require.NoError(t, err)
	require.Equal(t, StatusEnded, st)
}

func TestOpusSeekIsANoOp(t *testing.T) {
	src := &fakePacketSource{}
	o, err := NewOpus(48000, 2, src)
	require.NoError(t, err)
	require.False(t, o.CanSeek())
	o.Seek(5000) // must not panic, must not change anything observable
}

func TestOpusStatusRoundTrip(t *testing.T) {
	src := &fakePacketSource{}
	o, err := NewOpus(48000, 1, src)
	require.NoError(t, err)
	o.SetStatus(StatusError)
	require.Equal(t, StatusError, o.GetStatus())
}
