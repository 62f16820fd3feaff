package sink

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3verian/softae/audioformat"
)

func TestNullSinkWriteAlwaysSucceeds(t *testing.T) {
	s := NewNullSink()
	f, err := s.Open(audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT})
	require.NoError(t, err)
	require.Equal(t, 48000, f.SampleRate)

	n, err := s.Write(make([]byte, 32), 4)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.NoError(t, s.Drain())
	require.NoError(t, s.Close())
}

func TestNullSinkSetVolume(t *testing.T) {
	s := NewNullSink()
	require.True(t, s.HasVolume())
	require.NoError(t, s.SetVolume(0.5))
}

func TestRecordingSinkRetainsExactBytesWritten(t *testing.T) {
	s := NewRecordingSink()
	_, err := s.Open(audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT})
	require.NoError(t, err)

	buf := make([]byte, 64)
	for i := range buf {
		buf[i] = byte(i)
	}
	n, err := s.Write(buf, 4) // 4 frames * 8 bytes/frame = 32 bytes
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, buf[:32], s.Written)

	n, err = s.Write(buf[:16], 2) // accumulates across calls
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Len(t, s.Written, 32+16)
}
