package postproc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestFadeLinearRamp is Testable Property 6: gain moves linearly from
// StartGain to EndGain over the configured duration.
func TestFadeLinearRamp(t *testing.T) {
	sampleRate := 100
	f := NewFade(sampleRate, time.Second, 1, 0, nil)

	frames := make([]float32, 100)
	for i := range frames {
		frames[i] = 1
	}
	f.Process(frames, 100, 1)

	require.InDelta(t, 0.99, frames[0], 0.02)
	require.InDelta(t, 0.5, frames[50], 0.02)
	require.InDelta(t, 0.0, frames[99], 0.02)
}

// TestFadeDoneFiresExactlyOnce is the other half of Testable Property 6.
func TestFadeDoneFiresExactlyOnce(t *testing.T) {
	fired := 0
	f := NewFade(10, time.Second, 0, 1, func() { fired++ }) // 10 frames

	frames := make([]float32, 20)
	for i := range frames {
		frames[i] = 1
	}
	f.Process(frames[:5], 5, 1)
	require.False(t, f.Done())
	require.Equal(t, 0, fired)

	f.Process(frames[5:10], 5, 1)
	require.True(t, f.Done())
	require.Equal(t, 1, fired)

	// Further Process calls must not refire DoneCB.
	f.Process(frames[10:], 10, 1)
	require.Equal(t, 1, fired)
}

func TestFadeAppliesEndGainPastCompletion(t *testing.T) {
	f := NewFade(10, 10*time.Millisecond, 1, 0, nil)
	frames := []float32{1, 1, 1, 1, 1}
	f.Process(frames, 5, 1)
	require.InDelta(t, 0.0, frames[4], 1e-6)
}

// TestScenarioCrossfadeGainsSumToOne is the crossfade scenario from the
// player package in miniature: a fade-out (1->0) and fade-in (0->1)
// built with the same sample rate and duration keep their gains summing
// to 1 at every sample, the whole way through the ramp and past it.
func TestScenarioCrossfadeGainsSumToOne(t *testing.T) {
	sampleRate := 48000
	dur := 4 * time.Second
	fadeOut := NewFade(sampleRate, dur, 1, 0, nil)
	fadeIn := NewFade(sampleRate, dur, 0, 1, nil)

	chunk := sampleRate / 10      // 100ms chunks
	total := sampleRate*4 + chunk // run a bit past completion too
	for done := 0; done < total; done += chunk {
		a := make([]float32, chunk)
		b := make([]float32, chunk)
		for i := range a {
			a[i] = 1
			b[i] = 1
		}
		fadeOut.Process(a, chunk, 1)
		fadeIn.Process(b, chunk, 1)
		for i := range a {
			require.InDelta(t, 1.0, a[i]+b[i], 1e-4)
		}
	}
}

func TestChainPrependRunsFirst(t *testing.T) {
	var order []string
	mkTag := func(name string) Processor {
		return fnProcessor(func(frames []float32, frameCount, channels int) {
			order = append(order, name)
		})
	}

	var c Chain
	c.Append(mkTag("a"))
	c.Prepend(mkTag("b"))
	c.Process(make([]float32, 2), 2, 1)

	require.Equal(t, []string{"b", "a"}, order)
}

type fnProcessor func(frames []float32, frameCount, channels int)

func (f fnProcessor) Process(frames []float32, frameCount, channels int) {
	f(frames, frameCount, channels)
}
