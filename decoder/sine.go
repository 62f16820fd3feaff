package decoder

import (
	"math"
	"sync"

	"github.com/s3verian/softae/audioformat"
)

// Sine is a synthetic Codec generating a fixed-frequency tone for a
// fixed duration, used to drive end-to-end scenario tests without a
// real audio file.
type Sine struct {
	mu sync.Mutex

	freqHz     float64
	sampleRate int
	channels   int
	totalMs    int
	gain       float32

	posFrame int // current read position, in frames
	buffered []float32
	status   Status
}

// NewSine builds a Sine codec. durationMs and freqHz fully determine its
// output; Create only records the requested start offset.
func NewSine(freqHz float64, sampleRate, channels, durationMs int) *Sine {
	return &Sine{
		freqHz:     freqHz,
		sampleRate: sampleRate,
		channels:   channels,
		totalMs:    durationMs,
		gain:       1.0,
		status:     StatusNoFile,
	}
}

func (s *Sine) Create(file string, startMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posFrame = startMs * s.sampleRate / 1000
	s.status = StatusPlaying
	return nil
}

func (s *Sine) DataFormat() (channels, sampleRate int, format audioformat.DataFormat) {
	return s.channels, s.sampleRate, audioformat.FLOAT
}

func (s *Sine) totalFrames() int {
	return s.totalMs * s.sampleRate / 1000
}

// ReadSamples synthesizes up to packetSize samples (interleaved) of the
// tone, stopping at the track's configured duration.
func (s *Sine) ReadSamples(packetSize int) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.posFrame >= s.totalFrames() {
		s.status = StatusEnded
		return StatusEnded, nil
	}

	framesWanted := packetSize / s.channels
	if framesWanted <= 0 {
		return StatusPlaying, nil
	}
	if remaining := s.totalFrames() - s.posFrame; framesWanted > remaining {
		framesWanted = remaining
	}

	chunk := make([]float32, framesWanted*s.channels)
	for f := 0; f < framesWanted; f++ {
		t := float64(s.posFrame+f) / float64(s.sampleRate)
		v := float32(math.Sin(2*math.Pi*s.freqHz*t)) * s.gain
		for c := 0; c < s.channels; c++ {
			chunk[f*s.channels+c] = v
		}
	}
	s.posFrame += framesWanted
	s.buffered = append(s.buffered, chunk...)
	s.status = StatusPlaying
	return StatusPlaying, nil
}

func (s *Sine) Data(n int) []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.buffered) {
		n = len(s.buffered)
	}
	out := make([]float32, n)
	copy(out, s.buffered[:n])
	s.buffered = s.buffered[n:]
	return out
}

func (s *Sine) DataSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffered)
}

func (s *Sine) Seek(ms int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posFrame = ms * s.sampleRate / 1000
	s.buffered = s.buffered[:0]
}

func (s *Sine) TotalTime() int { return s.totalMs }
func (s *Sine) CanSeek() bool  { return true }

func (s *Sine) ReplayGain() float32 { return 1.0 }

func (s *Sine) SkipNext() {}

func (s *Sine) CacheLevel() int { return 100 }

func (s *Sine) GetStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Sine) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

func (s *Sine) Close() error { return nil }

var _ Codec = (*Sine)(nil)
