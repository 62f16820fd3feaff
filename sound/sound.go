// Package sound implements preloaded one-shot PCM samples and their
// engine-internal playback instances.
package sound

import "time"

// Sound is a preloaded one-shot sample, already converted to the
// engine's sink channel count at load time: sounds bypass per-stream
// remap, since they are assumed to be preconverted. Shared across
// every concurrently playing instance.
type Sound struct {
	Key          string
	PCM          []float32 // interleaved, sink channel count
	ChannelCount int
	SampleRate   int
	lastUsed     time.Time
}

// New wraps pre-converted PCM data as a Sound.
func New(key string, pcm []float32, channels, sampleRate int) *Sound {
	return &Sound{Key: key, PCM: pcm, ChannelCount: channels, SampleRate: sampleRate}
}

// Touch records that the sound was just played, for cache eviction by
// callers that preload a pool of sounds (e.g. a UI sound bank).
func (s *Sound) Touch(now time.Time) {
	s.lastUsed = now
}

// LastUsed returns the timestamp of the most recent Touch call.
func (s *Sound) LastUsed() time.Time {
	return s.lastUsed
}

// FrameCount returns the number of frames (not samples) in PCM.
func (s *Sound) FrameCount() int {
	if s.ChannelCount == 0 {
		return 0
	}
	return len(s.PCM) / s.ChannelCount
}

// Playback is an engine-internal instance of a Sound currently mixing:
// one Sound, one cursor. Created by Engine.PlaySound, destroyed when
// the cursor reaches the end of the PCM buffer (or by StopSound).
type Playback struct {
	Owner  *Sound
	cursor int // frame index into Owner.PCM
}

// NewPlayback starts a fresh playback instance at frame 0.
func NewPlayback(owner *Sound) *Playback {
	return &Playback{Owner: owner}
}

// Remaining reports how many frames are left to mix.
func (p *Playback) Remaining() int {
	return p.Owner.FrameCount() - p.cursor
}

// Done reports whether the playback has reached the end of the sample.
func (p *Playback) Done() bool {
	return p.Remaining() <= 0
}

// MixInto adds up to frameCount frames of this playback into dst
// (interleaved, channels wide, starting at frame 0 of dst), advancing
// the cursor. Returns the number of frames actually mixed.
func (p *Playback) MixInto(dst []float32, frameCount, channels int) int {
	n := frameCount
	if r := p.Remaining(); n > r {
		n = r
	}
	if n <= 0 {
		return 0
	}
	srcOff := p.cursor * channels
	for i := 0; i < n*channels; i++ {
		dst[i] += p.Owner.PCM[srcOff+i]
	}
	p.cursor += n
	return n
}
