// Package engine implements SoftAE, the mix-loop thread that pulls
// canonical float frames from Streams, mixes in one-shot Sounds,
// normalizes, remaps to the sink's layout, converts to sink PCM, and
// writes to the blocking Sink.
package engine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/remap"
	"github.com/s3verian/softae/sink"
	"github.com/s3verian/softae/sound"
	"github.com/s3verian/softae/stream"
	"github.com/s3verian/softae/vis"
)

// ErrStreamCreateFailure is returned by GetStream when formatIn is
// invalid or the ring cannot be sized.
var ErrStreamCreateFailure = errors.New("engine: stream create failed")

// Config holds everything the engine needs to open its sink and run.
type Config struct {
	Sink            sink.Sink
	Desired         audioformat.Format // hinted format; sink may coerce
	CanonicalLayout audioformat.Layout // engine's internal mixing layout
	FramesPerPeriod int
	Passthrough     bool // honor RAW single-stream passthrough mode
	Logger          *log.Logger
}

// Engine is SoftAE: the mixing thread plus its active Stream/Sound
// lists and sink.
type Engine struct {
	cfg Config
	log *log.Logger

	sinkMu sync.Mutex
	sk     sink.Sink
	actual audioformat.Format

	mu      sync.RWMutex // guards streams/sounds lists
	streams []*stream.Stream
	sounds  []*sound.Playback

	vis *vis.Buffer

	running     atomic.Bool
	reconfigure atomic.Bool
	newDesired  atomic.Pointer[audioformat.Format]

	// engine-thread-only scratch, reused every iteration
	streamBuf  []float32
	accum      []float32
	remapOut   []float32
	pcmOut     []byte
	canonical  audioformat.Layout
	remapToOut remap.Matrix
}

// New constructs an Engine. Call Open before Run.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	if len(cfg.CanonicalLayout) == 0 {
		cfg.CanonicalLayout = audioformat.DefaultLayout(cfg.Desired.Channels)
	}
	return &Engine{
		cfg:       cfg,
		log:       logger,
		sk:        cfg.Sink,
		vis:       vis.NewBuffer(),
		canonical: cfg.CanonicalLayout,
	}
}

// Vis returns the visualization sample buffer.
func (e *Engine) Vis() *vis.Buffer { return e.vis }

// Open performs the initial sink open.
func (e *Engine) Open() error {
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	actual, err := e.sk.Open(e.cfg.Desired)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStreamCreateFailure, err)
	}
	e.actual = actual
	e.rebuildRemap()
	return nil
}

func (e *Engine) rebuildRemap() {
	outLayout := e.actual.ChannelLayout
	if len(outLayout) == 0 {
		outLayout = audioformat.DefaultLayout(e.actual.Channels)
	}
	e.remapToOut = remap.Build(e.canonical, outLayout)
}

// RequestReconfigure asks the engine to close, reopen with newDesired,
// and rebuild conversion/remap on its next iteration.
func (e *Engine) RequestReconfigure(newDesired audioformat.Format) {
	e.newDesired.Store(&newDesired)
	e.reconfigure.Store(true)
}

// GetStream creates and registers a new Stream, validating formatIn.
func (e *Engine) GetStream(formatIn audioformat.Format, ringFrames int, opts stream.Options) (*stream.Stream, error) {
	if err := formatIn.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamCreateFailure, err)
	}
	if ringFrames <= 0 {
		return nil, fmt.Errorf("%w: ring size must be positive", ErrStreamCreateFailure)
	}
	s := stream.New(formatIn, e.canonical, ringFrames, opts)

	e.mu.Lock()
	e.streams = append(e.streams, s)
	e.mu.Unlock()
	return s, nil
}

// PlaySound appends a new playback instance of snd to the engine's
// one-shot mix list.
func (e *Engine) PlaySound(snd *sound.Sound) *sound.Playback {
	p := sound.NewPlayback(snd)
	e.mu.Lock()
	e.sounds = append(e.sounds, p)
	e.mu.Unlock()
	return p
}

// StopSound removes a playback instance before it finishes naturally.
func (e *Engine) StopSound(p *sound.Playback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, s := range e.sounds {
		if s == p {
			e.sounds = append(e.sounds[:i], e.sounds[i+1:]...)
			return
		}
	}
}

// Run executes the mix loop until Stop is called. Intended to be run on
// its own goroutine.
func (e *Engine) Run() {
	e.running.Store(true)
	for e.running.Load() {
		e.iterate()
	}
	e.sinkMu.Lock()
	if err := e.sk.Close(); err != nil {
		e.log.Warn("sink close on stop", "err", err)
	}
	e.sinkMu.Unlock()
}

// Stop flips the running flag; the in-flight sink write completes, then
// the loop exits and the sink is closed.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Step runs exactly one mix-loop iteration, the single-iteration
// counterpart to Run's free-running loop. Useful for deterministic
// tests and offline rendering where a real-time pacing goroutine isn't
// wanted.
func (e *Engine) Step() {
	e.iterate()
}

func (e *Engine) iterate() {
	if e.reconfigure.CompareAndSwap(true, false) {
		e.reopenSink()
	}

	// Stream data callbacks run with the list lock held in shared mode.
	e.mu.RLock()
	streams := e.streams

	raw, rawStream := e.passthroughCandidate(streams)
	if raw {
		e.runPassthrough(rawStream)
		e.mu.RUnlock()
		e.collectDrained()
		return
	}

	frames := e.cfg.FramesPerPeriod
	channels := len(e.canonical)
	need := frames * channels

	if cap(e.accum) < need {
		e.accum = make([]float32, need)
		e.streamBuf = make([]float32, need)
	}
	accum := e.accum[:need]
	for i := range accum {
		accum[i] = 0
	}

	for _, s := range streams {
		if s.Drained() || s.IsPaused() {
			continue
		}
		s.RequestData(frames)
		buf := e.streamBuf[:need]
		for i := range buf {
			buf[i] = 0
		}
		s.GetFrame(buf, frames) // missing tail stays silence from the zero-fill above
		for i := range accum {
			accum[i] += buf[i]
		}
	}
	e.mu.RUnlock()

	e.mixSounds(accum, frames, channels)
	e.publishVis(accum)
	e.normalize(accum)
	e.writeOut(accum, frames, channels)
	e.collectDrained()
}

// passthroughCandidate reports whether raw passthrough applies this
// iteration: it requires exactly one non-paused Stream advertising RAW.
func (e *Engine) passthroughCandidate(streams []*stream.Stream) (bool, *stream.Stream) {
	if !e.cfg.Passthrough {
		return false, nil
	}
	var candidate *stream.Stream
	count := 0
	for _, s := range streams {
		if s.IsPaused() || s.Drained() {
			continue
		}
		if s.RawDataFormat() {
			count++
			candidate = s
		} else {
			return false, nil
		}
	}
	if count == 1 {
		return true, candidate
	}
	return false, nil
}

// runPassthrough feeds the single RAW stream's already-packetized bytes
// straight to the sink, skipping mix/normalize/remap. The bytes the
// stream carries are expected to already be IEC 61937 bursts (the
// decoder/player packetized them on the way in); the engine only moves
// them, it never builds the burst itself.
func (e *Engine) runPassthrough(s *stream.Stream) {
	const rawPullBytes = 32 * 1024
	s.RequestData(e.cfg.FramesPerPeriod)
	burst := s.GetRawBytes(rawPullBytes)
	if len(burst) == 0 {
		return
	}
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()
	frameBytes := e.actual.FrameSizeBytes()
	if frameBytes == 0 {
		frameBytes = 1
	}
	if _, err := e.sk.Write(burst, len(burst)/frameBytes); err != nil {
		e.log.Error("sink write failed in passthrough", "err", err)
	}
}

func (e *Engine) mixSounds(accum []float32, frames, channels int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	alive := e.sounds[:0]
	for _, p := range e.sounds {
		p.MixInto(accum, frames, channels)
		if !p.Done() {
			alive = append(alive, p)
		}
	}
	e.sounds = alive
}

func (e *Engine) publishVis(accum []float32) {
	n := vis.MaxSamples
	if n > len(accum) {
		n = len(accum)
	}
	e.vis.Publish(accum[:n])
}

// normalize divides the whole period by peak only when clipping. No
// inter-period smoothing: each period is normalized independently.
func (e *Engine) normalize(accum []float32) {
	var peak float32
	for _, v := range accum {
		a := v
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak <= 1.0 {
		return
	}
	inv := 1.0 / peak
	for i := range accum {
		accum[i] *= inv
	}
}

func (e *Engine) writeOut(accum []float32, frames, channels int) {
	if len(e.remapToOut) == 0 || len(e.remapToOut[0]) != channels {
		e.rebuildRemap()
	}
	outChannels := len(e.remapToOut)
	if outChannels == 0 {
		outChannels = channels
	}

	need := frames * outChannels
	if cap(e.remapOut) < need {
		e.remapOut = make([]float32, need)
	}
	out := e.remapOut[:need]
	if e.remapToOut.Identity() {
		copy(out, accum[:need])
	} else {
		remap.Apply(e.remapToOut, accum, out, frames)
	}

	frameBytes := e.actual.FrameSizeBytes()
	if frameBytes == 0 {
		frameBytes = outChannels * audioformat.BytesPerSample(e.actual.DataFormat)
	}
	needBytes := frames * frameBytes
	if cap(e.pcmOut) < needBytes {
		e.pcmOut = make([]byte, needBytes)
	}
	pcm := e.pcmOut[:needBytes]
	if err := audioformat.FromFloat(out, frames, outChannels, e.actual.DataFormat, pcm); err != nil {
		e.log.Error("pcm encode failed", "err", err)
		return
	}

	e.sinkMu.Lock()
	_, err := e.sk.Write(pcm, frames)
	e.sinkMu.Unlock()
	if err != nil {
		e.log.Error("sink write failed", "err", err)
	}
}

// collectDrained fires the free callback for drained FreeOnDrain
// streams and drops them from the active list.
func (e *Engine) collectDrained() {
	e.mu.Lock()
	defer e.mu.Unlock()
	alive := e.streams[:0]
	for _, s := range e.streams {
		if s.Drained() && s.FreeOnDrain() {
			s.FireFree()
			continue
		}
		alive = append(alive, s)
	}
	e.streams = alive
}

func (e *Engine) reopenSink() {
	desired := e.newDesired.Load()
	if desired == nil {
		return
	}
	e.sinkMu.Lock()
	defer e.sinkMu.Unlock()

	if err := e.sk.Close(); err != nil {
		e.log.Warn("sink close during reconfigure", "err", err)
	}
	actual, err := e.sk.Open(*desired)
	if err != nil {
		e.log.Error("sink reopen failed", "err", err)
		return
	}
	e.actual = actual
	e.cfg.Desired = *desired
	e.rebuildRemap()

	e.mu.RLock()
	for _, s := range e.streams {
		s.Flush()
	}
	e.mu.RUnlock()
}

// FramesPerPeriod returns the configured period size.
func (e *Engine) FramesPerPeriod() int { return e.cfg.FramesPerPeriod }

// ActualFormat returns the format the sink last negotiated.
func (e *Engine) ActualFormat() audioformat.Format { return e.actual }

// CanonicalLayout returns the engine's internal mixing layout.
func (e *Engine) CanonicalLayout() audioformat.Layout { return e.canonical }
