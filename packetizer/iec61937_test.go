package packetizer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPacketizeUnwrapRoundTrip(t *testing.T) {
	frame := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03}
	burst := Packetize(frame, DataTypeAC3, 64)
	require.Len(t, burst, 64)

	got, dt, ok := Unwrap(burst)
	require.True(t, ok)
	require.Equal(t, DataTypeAC3, dt)
	require.Equal(t, frame, got)
}

func TestUnwrapRejectsBadPreamble(t *testing.T) {
	burst := make([]byte, 32)
	_, _, ok := Unwrap(burst)
	require.False(t, ok)
}

func TestUnwrapRejectsShortBuffer(t *testing.T) {
	_, _, ok := Unwrap([]byte{1, 2, 3})
	require.False(t, ok)
}

func TestPacketizePadsRemainderWithZero(t *testing.T) {
	frame := []byte{0x01, 0x02}
	burst := Packetize(frame, DataTypeDTS, 32)
	for i := 8 + len(frame); i < len(burst); i++ {
		require.Zero(t, burst[i])
	}
}
