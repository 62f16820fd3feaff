package decoder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3verian/softae/audioformat"
)

// These cover the pure bookkeeping paths of FFmpeg that don't require
// spawning a real ffmpeg/ffprobe subprocess; Create/ReadSamples/Seek
// need an actual media file and binary, and are left to integration
// testing.

func TestNewFFmpegDefaults(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	require.Equal(t, StatusNoFile, d.GetStatus())
	require.Equal(t, float32(1.0), d.ReplayGain())
	require.True(t, d.CanSeek())

	ch, rate, df := d.DataFormat()
	require.Equal(t, 2, ch)
	require.Equal(t, 48000, rate)
	require.Equal(t, audioformat.FLOAT, df)
}

func TestFFmpegDataTrimsBufferedSamples(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	d.buffered = []float32{1, 2, 3, 4, 5, 6}

	got := d.Data(4)
	require.Equal(t, []float32{1, 2, 3, 4}, got)
	require.Equal(t, 2, d.DataSize())
}

func TestFFmpegDataCapsAtAvailable(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	d.buffered = []float32{1, 2}

	got := d.Data(10)
	require.Equal(t, []float32{1, 2}, got)
	require.Equal(t, 0, d.DataSize())
}

func TestFFmpegCacheLevelReflectsStreamState(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	require.Equal(t, 0, d.CacheLevel(), "no pipe open yet")
}

func TestFFmpegSetStatusRoundTrips(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	d.SetStatus(StatusEnded)
	require.Equal(t, StatusEnded, d.GetStatus())
}

func TestFFmpegCloseWithoutStartIsSafe(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	require.NoError(t, d.Close())
}

func TestFFmpegTotalTimeDefaultsToZero(t *testing.T) {
	d := NewFFmpeg(48000, 2)
	require.Equal(t, 0, d.TotalTime())
}
