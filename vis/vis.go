// Package vis implements the engine's visualization sample feed: up to
// 512 float samples published per iteration, double-buffered so a
// concurrent reader always sees a consistent window instead of a torn
// in-progress write.
package vis

import (
	"math"
	"sync/atomic"

	"github.com/mjibson/go-dsp/fft"
)

// MaxSamples is the per-iteration publish cap.
const MaxSamples = 512

type snapshot struct {
	data [MaxSamples]float32
	n    int
}

// Buffer is a single-producer/multi-consumer double buffer: each
// publish builds a fresh immutable snapshot and swaps it in atomically,
// so a reader that grabbed the pointer before a swap keeps reading a
// complete, never-mutated window.
type Buffer struct {
	live atomic.Pointer[snapshot]
}

// NewBuffer returns an empty, ready-to-use Buffer.
func NewBuffer() *Buffer {
	b := &Buffer{}
	b.live.Store(&snapshot{})
	return b
}

// Publish copies up to MaxSamples of samples into a new snapshot and
// atomically swaps it in as the live one. Producer-only (engine thread).
func (b *Buffer) Publish(samples []float32) {
	n := len(samples)
	if n > MaxSamples {
		n = MaxSamples
	}
	s := &snapshot{n: n}
	copy(s.data[:n], samples[:n])
	b.live.Store(s)
}

// Snapshot returns a copy of the most recently published window.
func (b *Buffer) Snapshot() []float32 {
	s := b.live.Load()
	out := make([]float32, s.n)
	copy(out, s.data[:s.n])
	return out
}

// hanningWindow reduces spectral leakage before the FFT.
func hanningWindow(size int) []float64 {
	window := make([]float64, size)
	for i := range window {
		window[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return window
}

// Spectrum returns the magnitude spectrum (bins 0..n/2) of the most
// recently published window, windowed and transformed with a real FFT.
func (b *Buffer) Spectrum() []float64 {
	s := b.live.Load()
	n := s.n
	if n < 2 {
		return nil
	}
	window := hanningWindow(n)
	samples := make([]float64, n)
	for i := 0; i < n; i++ {
		samples[i] = float64(s.data[i]) * window[i]
	}

	bins := fft.FFTReal(samples)
	mags := make([]float64, n/2+1)
	for i := range mags {
		re, im := real(bins[i]), imag(bins[i])
		mags[i] = math.Sqrt(re*re + im*im)
	}
	return mags
}

// Callback describes a host visualization consumer with Initialize,
// AudioData and Deinitialize hooks. The engine does not call it and has
// no registration point for it: it publishes each window into its
// Buffer, which consumers read with Snapshot or Spectrum.
type Callback interface {
	Initialize(channels, sampleRate, bits int)
	AudioData(samples []float32)
	Deinitialize()
}
