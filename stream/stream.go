// Package stream implements SoftAEStream: a per-producer ring buffer
// with a post-processor chain, volume, replay-gain, and a
// Paused -> Running -> Draining -> Drained lifecycle.
package stream

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/postproc"
	"github.com/s3verian/softae/remap"
	"github.com/s3verian/softae/ringbuffer"
)

// Options are the per-stream creation flags.
type Options uint8

const (
	FreeOnDrain Options = 1 << iota
	OwnsPostProc
	StartPaused
)

// DataCallback is invoked from the engine thread, with the engine lock
// held in shared mode, whenever the ring has free space and the stream
// is neither paused nor draining. It should push up to framesNeeded
// frames via AddData; doing nothing is legal; it is called again next
// iteration.
type DataCallback func(s *Stream, framesNeeded int)

// FreeCallback fires exactly once, from the engine thread, when the
// engine observes the stream Drained with FreeOnDrain set. It is the
// single legal point at which the producer may release resources tied
// to this Stream.
type FreeCallback func(s *Stream)

// state is the stream's lifecycle.
type state int32

const (
	stateRunning state = iota
	stateDraining
	stateDrained
)

// Stream is a per-producer ring buffer feeding the mixing engine.
type Stream struct {
	formatIn       audioformat.Format
	canonicalChans int
	remapMatrix    remap.Matrix

	ring *ringbuffer.Ring

	volumeBits     atomic.Uint32 // float32 bits, [0,1]
	replayGainBits atomic.Uint32 // float32 bits, linear scalar

	mu       sync.Mutex
	paused   bool
	st       state
	chain    postproc.Chain
	ownsPP   bool
	freeOnDr bool

	dataCB DataCallback
	freeCB FreeCallback

	scratch  []float32 // reused conversion buffer, engine-thread only
	remapped []float32

	rawBuf []byte // queued compressed bytes, RAW-format streams only

	freed bool
}

// New builds a Stream converting from formatIn into canonicalChans-wide
// canonical float frames (the engine's internal mixing layout).
func New(formatIn audioformat.Format, canonicalLayout audioformat.Layout, ringFrames int, opts Options) *Stream {
	s := &Stream{
		formatIn:       formatIn,
		canonicalChans: len(canonicalLayout),
		ring:           ringbuffer.New(ringFrames * len(canonicalLayout)),
		paused:         opts&StartPaused != 0,
		ownsPP:         opts&OwnsPostProc != 0,
		freeOnDr:       opts&FreeOnDrain != 0,
	}
	s.volumeBits.Store(math.Float32bits(1.0))
	s.replayGainBits.Store(math.Float32bits(1.0))
	layoutIn := formatIn.ChannelLayout
	if len(layoutIn) == 0 {
		layoutIn = audioformat.DefaultLayout(formatIn.Channels)
	}
	s.remapMatrix = remap.Build(layoutIn, canonicalLayout)
	return s
}

// SetDataCallback registers the producer-side pull callback.
func (s *Stream) SetDataCallback(cb DataCallback) {
	s.mu.Lock()
	s.dataCB = cb
	s.mu.Unlock()
}

// SetFreeCallback registers the release callback.
func (s *Stream) SetFreeCallback(cb FreeCallback) {
	s.mu.Lock()
	s.freeCB = cb
	s.mu.Unlock()
}

// RequestData invokes the registered data callback if the stream can
// accept more frames right now. Called by the engine once per iteration
// per Stream.
func (s *Stream) RequestData(framesNeeded int) {
	s.mu.Lock()
	cb := s.dataCB
	paused := s.paused
	draining := s.st != stateRunning
	s.mu.Unlock()

	if cb == nil || paused || draining || framesNeeded <= 0 {
		return
	}
	if s.ring.Free() < framesNeeded*s.canonicalChans {
		framesNeeded = s.ring.Free() / s.canonicalChans
	}
	if framesNeeded <= 0 {
		return
	}
	cb(s, framesNeeded)
}

// AddData converts raw bytes in formatIn and copies them into the ring,
// remapping to the canonical channel layout. Drops silently if the
// stream is draining or drained. Returns the number of frames actually
// accepted (for RAW streams, the number of bytes queued).
func (s *Stream) AddData(data []byte) int {
	s.mu.Lock()
	draining := s.st != stateRunning
	s.mu.Unlock()
	if draining {
		return 0
	}

	if s.formatIn.DataFormat == audioformat.RAW {
		s.mu.Lock()
		s.rawBuf = append(s.rawBuf, data...)
		s.mu.Unlock()
		return len(data)
	}

	frameBytes := s.formatIn.FrameSizeBytes()
	if frameBytes <= 0 {
		return 0
	}
	frameCount := len(data) / frameBytes
	if frameCount == 0 {
		return 0
	}

	if cap(s.scratch) < frameCount*s.formatIn.Channels {
		s.scratch = make([]float32, frameCount*s.formatIn.Channels)
	}
	scratch := s.scratch[:frameCount*s.formatIn.Channels]
	if err := audioformat.ToFloat(data, frameCount, s.formatIn.Channels, s.formatIn.DataFormat, scratch); err != nil {
		return 0
	}

	if s.remapMatrix.Identity() {
		return s.ring.Write(scratch) / s.canonicalChans
	}

	if cap(s.remapped) < frameCount*s.canonicalChans {
		s.remapped = make([]float32, frameCount*s.canonicalChans)
	}
	remapped := s.remapped[:frameCount*s.canonicalChans]
	remap.Apply(s.remapMatrix, scratch, remapped, frameCount)
	return s.ring.Write(remapped) / s.canonicalChans
}

// GetFrame returns up to max frames of canonical float, post-processed,
// volume- and replay-gain-scaled. Returns 0 if paused or empty.
func (s *Stream) GetFrame(dst []float32, max int) int {
	s.mu.Lock()
	paused := s.paused
	s.mu.Unlock()
	if paused {
		return 0
	}

	need := max * s.canonicalChans
	if need > len(dst) {
		need = len(dst)
		max = need / s.canonicalChans
	}
	n := s.ring.Read(dst[:need])
	frames := n / s.canonicalChans
	if frames == 0 {
		s.maybeTransitionDrained()
		return 0
	}

	vol := math.Float32frombits(s.volumeBits.Load())
	rg := math.Float32frombits(s.replayGainBits.Load())
	scale := vol * rg
	if scale != 1.0 {
		for i := 0; i < frames*s.canonicalChans; i++ {
			dst[i] *= scale
		}
	}

	// Run the chain outside s.mu: a Fade's DoneCB may call back into this
	// Stream (the player drains it when a fade-out completes).
	s.mu.Lock()
	chain := s.chain
	s.mu.Unlock()
	chain.Process(dst[:frames*s.canonicalChans], frames, s.canonicalChans)

	s.maybeTransitionDrained()
	return frames
}

// GetRawBytes pops up to maxBytes of queued compressed data, for raw
// passthrough. Valid only for RAW-format streams; returns nil otherwise.
func (s *Stream) GetRawBytes(maxBytes int) []byte {
	if s.formatIn.DataFormat != audioformat.RAW {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if maxBytes > len(s.rawBuf) {
		maxBytes = len(s.rawBuf)
	}
	if maxBytes == 0 {
		s.maybeTransitionDrainedLocked()
		return nil
	}
	out := make([]byte, maxBytes)
	copy(out, s.rawBuf[:maxBytes])
	s.rawBuf = s.rawBuf[maxBytes:]
	s.maybeTransitionDrainedLocked()
	return out
}

func (s *Stream) maybeTransitionDrainedLocked() {
	if s.st == stateDraining && len(s.rawBuf) == 0 && s.ring.Len() == 0 {
		s.st = stateDrained
	}
}

func (s *Stream) maybeTransitionDrained() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maybeTransitionDrainedLocked()
}

// Pause stops the engine from pulling GetFrame; the producer may
// continue filling the ring via AddData.
func (s *Stream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears Pause.
func (s *Stream) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

func (s *Stream) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Drain marks the stream as having no more incoming data; once the ring
// empties the stream transitions to Drained.
func (s *Stream) Drain() {
	s.mu.Lock()
	if s.st == stateRunning {
		s.st = stateDraining
	}
	s.mu.Unlock()
	s.maybeTransitionDrained()
}

// Flush discards ring contents immediately.
func (s *Stream) Flush() {
	s.ring.Flush()
}

// Drained reports whether the stream has reached the terminal state.
func (s *Stream) Drained() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st == stateDrained
}

// FreeOnDrain reports whether the engine should release this stream
// once Drained.
func (s *Stream) FreeOnDrain() bool {
	return s.freeOnDr
}

// FireFree invokes the registered free callback exactly once. Called
// only by the engine's garbage-collection step.
func (s *Stream) FireFree() {
	s.mu.Lock()
	if s.freed {
		s.mu.Unlock()
		return
	}
	s.freed = true
	cb := s.freeCB
	s.mu.Unlock()
	if cb != nil {
		cb(s)
	}
}

// PrependPostProc inserts pp at the head of the chain, effective on the
// next GetFrame call.
func (s *Stream) PrependPostProc(pp postproc.Processor) {
	s.mu.Lock()
	s.chain.Prepend(pp)
	s.mu.Unlock()
}

// AppendPostProc adds pp at the tail of the chain.
func (s *Stream) AppendPostProc(pp postproc.Processor) {
	s.mu.Lock()
	s.chain.Append(pp)
	s.mu.Unlock()
}

// SetVolume sets the linear volume in [0,1].
func (s *Stream) SetVolume(v float32) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.volumeBits.Store(math.Float32bits(v))
}

func (s *Stream) Volume() float32 {
	return math.Float32frombits(s.volumeBits.Load())
}

// SetReplayGain sets the linear replay-gain scalar, applied before the
// post-proc chain.
func (s *Stream) SetReplayGain(linear float32) {
	s.replayGainBits.Store(math.Float32bits(linear))
}

func (s *Stream) ReplayGain() float32 {
	return math.Float32frombits(s.replayGainBits.Load())
}

// CanonicalChannels returns the channel count frames are stored/returned
// at (the engine's internal mixing layout, not formatIn's).
func (s *Stream) CanonicalChannels() int {
	return s.canonicalChans
}

// FormatIn returns the format the stream was created with.
func (s *Stream) FormatIn() audioformat.Format {
	return s.formatIn
}

// RawDataFormat reports whether this stream carries an undecoded
// compressed bitstream, for raw passthrough mode detection.
func (s *Stream) RawDataFormat() bool {
	return s.formatIn.DataFormat == audioformat.RAW
}
