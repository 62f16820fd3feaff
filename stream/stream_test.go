package stream

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/s3verian/softae/audioformat"
)

func newTestStream(t *testing.T, opts Options) *Stream {
	t.Helper()
	formatIn := audioformat.Format{
		SampleRate: 48000,
		Channels:   2,
		DataFormat: audioformat.FLOAT,
	}
	return New(formatIn, audioformat.StereoLayout, 256, opts)
}

func encodeFloat(t *testing.T, samples []float32) []byte {
	t.Helper()
	dst := make([]byte, len(samples)*4)
	require.NoError(t, audioformat.FromFloat(samples, len(samples)/2, 2, audioformat.FLOAT, dst))
	return dst
}

func TestAddDataThenGetFrameRoundTrips(t *testing.T) {
	s := newTestStream(t, 0)
	s.AddData(encodeFloat(t, []float32{0.5, -0.5, 0.25, -0.25}))

	dst := make([]float32, 4)
	n := s.GetFrame(dst, 2)
	require.Equal(t, 2, n)
	require.InDeltaSlice(t, []float32{0.5, -0.5, 0.25, -0.25}, dst, 1e-6)
}

func TestGetFrameReturnsZeroWhilePaused(t *testing.T) {
	s := newTestStream(t, StartPaused)
	s.AddData(encodeFloat(t, []float32{1, 1}))

	dst := make([]float32, 2)
	require.Equal(t, 0, s.GetFrame(dst, 1))

	s.Resume()
	require.Equal(t, 1, s.GetFrame(dst, 1))
}

func TestVolumeAndReplayGainScaleOutput(t *testing.T) {
	s := newTestStream(t, 0)
	s.SetVolume(0.5)
	s.SetReplayGain(2.0)
	s.AddData(encodeFloat(t, []float32{1, 1}))

	dst := make([]float32, 2)
	s.GetFrame(dst, 1)
	require.InDeltaSlice(t, []float32{1, 1}, dst, 1e-6)
}

func TestDrainTransitionsToDrainedOnceRingEmpties(t *testing.T) {
	s := newTestStream(t, 0)
	s.AddData(encodeFloat(t, []float32{1, 1}))
	s.Drain()
	require.False(t, s.Drained(), "ring still has data")

	dst := make([]float32, 2)
	s.GetFrame(dst, 1)
	require.True(t, s.Drained())
}

func TestFreeCallbackFiresExactlyOnce(t *testing.T) {
	s := newTestStream(t, FreeOnDrain)
	fired := 0
	s.SetFreeCallback(func(*Stream) { fired++ })

	s.FireFree()
	s.FireFree()
	require.Equal(t, 1, fired)
}

func TestRawPassthroughBypassesFloatConversion(t *testing.T) {
	formatIn := audioformat.Format{
		SampleRate: 48000,
		Channels:   2,
		DataFormat: audioformat.RAW,
	}
	s := New(formatIn, audioformat.StereoLayout, 256, 0)
	require.True(t, s.RawDataFormat())

	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	n := s.AddData(payload)
	require.Equal(t, len(payload), n)

	out := s.GetRawBytes(2)
	require.Equal(t, []byte{0xDE, 0xAD}, out)
	out = s.GetRawBytes(10)
	require.Equal(t, []byte{0xBE, 0xEF}, out)
}

func TestRequestDataCapsToRingFreeSpace(t *testing.T) {
	s := newTestStream(t, 0)
	var got int
	s.SetDataCallback(func(st *Stream, framesNeeded int) {
		got = framesNeeded
	})
	s.RequestData(1000000)
	require.LessOrEqual(t, got, 256)
	require.Greater(t, got, 0)
}

func TestRequestDataSkipsWhilePausedOrDraining(t *testing.T) {
	s := newTestStream(t, StartPaused)
	called := false
	s.SetDataCallback(func(st *Stream, framesNeeded int) { called = true })
	s.RequestData(10)
	require.False(t, called)

	s.Resume()
	s.Drain() // empty ring, drains immediately
	s.RequestData(10)
	require.False(t, called)
}
