package engine

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/sink"
	"github.com/s3verian/softae/sound"
	"github.com/s3verian/softae/stream"
)

func newTestEngine(t *testing.T) (*Engine, *sink.RecordingSink) {
	t.Helper()
	rec := sink.NewRecordingSink()
	e := New(Config{
		Sink:            rec,
		Desired:         audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT},
		FramesPerPeriod: 64,
	})
	require.NoError(t, e.Open())
	return e, rec
}

func TestGetStreamRejectsInvalidFormat(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.GetStream(audioformat.Format{Channels: 0, DataFormat: audioformat.FLOAT}, 256, 0)
	require.ErrorIs(t, err, ErrStreamCreateFailure)
}

func TestGetStreamRejectsNonPositiveRing(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.GetStream(audioformat.Format{Channels: 2, DataFormat: audioformat.FLOAT}, 0, 0)
	require.ErrorIs(t, err, ErrStreamCreateFailure)
}

// TestIterateMixesSingleStreamToSink is the S1 gapless scenario's core
// assertion in miniature: one stream's frames reach the sink unchanged
// when it is the only source.
func TestIterateMixesSingleStreamToSink(t *testing.T) {
	e, rec := newTestEngine(t)
	formatIn := audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT}
	s, err := e.GetStream(formatIn, 256, 0)
	require.NoError(t, err)

	samples := make([]float32, 64*2)
	for i := range samples {
		samples[i] = 0.1
	}
	raw := make([]byte, len(samples)*4)
	require.NoError(t, audioformat.FromFloat(samples, 64, 2, audioformat.FLOAT, raw))
	s.AddData(raw)

	e.iterate()
	require.NotEmpty(t, rec.Written)

	back := make([]float32, len(samples))
	require.NoError(t, audioformat.ToFloat(rec.Written, 64, 2, audioformat.FLOAT, back))
	require.InDeltaSlice(t, samples, back, 1e-5)
}

// TestNormalizeClampsOnlyWhenClipping is Testable Property: peak-based
// normalization never touches the signal unless some frame exceeds
// unity, and never smooths across iterations.
func TestNormalizeClampsOnlyWhenClipping(t *testing.T) {
	e, _ := newTestEngine(t)
	under := []float32{0.5, -0.5, 0.2}
	e.normalize(under)
	require.Equal(t, []float32{0.5, -0.5, 0.2}, under)

	over := []float32{2.0, -1.0, 0.5}
	e.normalize(over)
	require.InDelta(t, 1.0, over[0], 1e-6)
	require.InDelta(t, -0.5, over[1], 1e-6)
	require.InDelta(t, 0.25, over[2], 1e-6)
}

func TestPlaySoundMixesIntoOutputThenRetires(t *testing.T) {
	e, rec := newTestEngine(t)
	snd := sound.New("click", []float32{1, 1}, 2, 48000)
	e.PlaySound(snd)

	e.iterate()
	require.NotEmpty(t, rec.Written)

	e.mu.RLock()
	remaining := len(e.sounds)
	e.mu.RUnlock()
	require.Equal(t, 0, remaining, "one-shot sound should retire after playing out")
}

func TestStopSoundRemovesBeforeCompletion(t *testing.T) {
	e, _ := newTestEngine(t)
	snd := sound.New("click", make([]float32, 2*10000), 2, 48000)
	pb := e.PlaySound(snd)
	e.StopSound(pb)

	e.mu.RLock()
	defer e.mu.RUnlock()
	require.Empty(t, e.sounds)
}

func TestCollectDrainedFreesFreeOnDrainStreams(t *testing.T) {
	e, _ := newTestEngine(t)
	formatIn := audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT}
	s, err := e.GetStream(formatIn, 256, stream.FreeOnDrain)
	require.NoError(t, err)
	freed := false
	s.SetFreeCallback(func(*stream.Stream) { freed = true })

	s.Drain() // empty ring, drains immediately
	e.collectDrained()

	require.True(t, freed)
	e.mu.RLock()
	defer e.mu.RUnlock()
	require.Empty(t, e.streams)
}

// TestRapidMixedModeWritesExactlyOnePeriodPerIteration is Testable
// Property 3: every mixed-mode iterate() call writes exactly
// frames_per_period * actual_frame_size bytes to the sink, across
// arbitrary channel counts and period sizes.
func TestRapidMixedModeWritesExactlyOnePeriodPerIteration(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		channels := rapid.IntRange(1, 2).Draw(rt, "channels")
		framesPerPeriod := rapid.IntRange(1, 256).Draw(rt, "framesPerPeriod")

		rec := sink.NewRecordingSink()
		e := New(Config{
			Sink:            rec,
			Desired:         audioformat.Format{SampleRate: 48000, Channels: channels, DataFormat: audioformat.FLOAT},
			FramesPerPeriod: framesPerPeriod,
		})
		require.NoError(t, e.Open())

		formatIn := audioformat.Format{SampleRate: 48000, Channels: channels, DataFormat: audioformat.FLOAT}
		s, err := e.GetStream(formatIn, framesPerPeriod*4+16, 0)
		require.NoError(t, err)

		samples := make([]float32, framesPerPeriod*channels)
		raw := make([]byte, len(samples)*4)
		require.NoError(t, audioformat.FromFloat(samples, framesPerPeriod, channels, audioformat.FLOAT, raw))
		s.AddData(raw)

		e.iterate()

		frameBytes := e.ActualFormat().FrameSizeBytes()
		require.Equal(t, framesPerPeriod*frameBytes, len(rec.Written))
	})
}

func TestPassthroughCandidateRequiresExactlyOneRawStream(t *testing.T) {
	rec := sink.NewRecordingSink()
	e := New(Config{
		Sink:            rec,
		Desired:         audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT},
		FramesPerPeriod: 64,
		Passthrough:     true,
	})
	require.NoError(t, e.Open())

	floatFormat := audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.FLOAT}
	rawFormat := audioformat.Format{SampleRate: 48000, Channels: 2, DataFormat: audioformat.RAW}

	sFloat, _ := e.GetStream(floatFormat, 256, 0)
	ok, _ := e.passthroughCandidate([]*stream.Stream{sFloat})
	require.False(t, ok, "no RAW stream present")

	sRaw, _ := e.GetStream(rawFormat, 256, 0)
	ok, _ = e.passthroughCandidate([]*stream.Stream{sFloat, sRaw})
	require.False(t, ok, "mixed RAW and non-RAW is not a passthrough candidate")

	ok, candidate := e.passthroughCandidate([]*stream.Stream{sRaw})
	require.True(t, ok)
	require.Same(t, sRaw, candidate)
}
