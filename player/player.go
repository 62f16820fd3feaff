// Package player implements PAPlayer: a pull-driven, gapless and
// crossfading playback coordinator built on top of engine.Engine,
// stream.Stream and decoder.Codec.
package player

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/decoder"
	"github.com/s3verian/softae/engine"
	"github.com/s3verian/softae/postproc"
	"github.com/s3verian/softae/stream"
)

const (
	// PacketSize is the decoder read granularity, in samples.
	PacketSize = 4096
	// OutputSamples caps how many samples one data-callback invocation
	// pushes into a Stream.
	OutputSamples = 4096
	// TimeToCacheNextFile is how far ahead of track end OnQueueNextItem fires.
	TimeToCacheNextFile = 5000 * time.Millisecond
	// FastXfadeTime clamps crossfade duration when a fade is already
	// in flight in the finishing list.
	FastXfadeTime = 2000 * time.Millisecond

	ringFrames = 16384
)

// Callback is the host collaborator notified of playback state changes.
type Callback interface {
	OnPlaybackStarted()
	OnPlaybackStopped()
	OnPlaybackPaused()
	OnPlaybackResumed()
	OnPlaybackSeek(newMs, deltaMs int)
	OnPlaybackSpeedChanged(speed float64)
	OnQueueNextItem()
}

// NoopCallback implements Callback with no-ops, for tests and hosts that
// don't care about a particular notification.
type NoopCallback struct{}

func (NoopCallback) OnPlaybackStarted()                   {}
func (NoopCallback) OnPlaybackStopped()                   {}
func (NoopCallback) OnPlaybackPaused()                    {}
func (NoopCallback) OnPlaybackResumed()                   {}
func (NoopCallback) OnPlaybackSeek(newMs, deltaMs int)    {}
func (NoopCallback) OnPlaybackSpeedChanged(speed float64) {}
func (NoopCallback) OnQueueNextItem()                      {}

// CodecFactory opens a decoder for a file; the host supplies this as an
// external collaborator.
type CodecFactory func(file string) decoder.Codec

// AudioCallback is the host's visualization collaborator: registered
// with SetAudioCallback, it tracks whichever stream is current.
// OnInitialize fires once a track becomes current (with its format),
// OnAudioData once per chunk of decoded samples pushed for it, and
// OnDeinitialize when it stops being current.
type AudioCallback interface {
	OnInitialize(channels, sampleRate, bits int)
	OnAudioData(samples []float32)
	OnDeinitialize()
}

// streamInfo is a PlayerStream: one queued or playing track plus its
// decoder, engine stream, and trigger bookkeeping.
type streamInfo struct {
	file       string
	dec        decoder.Codec
	handle     *stream.Stream
	channels   int
	sampleRate int

	sentSamples int64
	changeAt    int64
	prepareAt   int64
	snippetEnd  int64
	triggered   bool
}

// Player is PAPlayer.
type Player struct {
	mu sync.RWMutex

	eng      *engine.Engine
	callback Callback
	factory  CodecFactory
	audioCB  AudioCallback

	crossfade time.Duration
	speed     float64
	playing   bool

	playOnQueue bool
	queueFailed bool

	queued    []*streamInfo
	current   *streamInfo
	finishing []*streamInfo
}

// New constructs a Player driving eng, using factory to open decoders
// and callback to notify the host.
func New(eng *engine.Engine, factory CodecFactory, callback Callback) *Player {
	if callback == nil {
		callback = NoopCallback{}
	}
	return &Player{
		eng:      eng,
		callback: callback,
		factory:  factory,
		speed:    1,
	}
}

// SetCrossfade configures the crossfade duration applied on future track
// transitions.
func (p *Player) SetCrossfade(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.crossfade = d
}

// SetAudioCallback registers the visualization collaborator notified as
// tracks become current. A nil value unregisters it.
func (p *Player) SetAudioCallback(cb AudioCallback) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.audioCB = cb
}

// IsPlaying reports whether a current track is active.
func (p *Player) IsPlaying() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// OpenFile resets speed to 1 and starts fresh playback of file.
func (p *Player) OpenFile(file string) error {
	p.mu.Lock()
	p.speed = 1
	p.mu.Unlock()

	if err := p.QueueNextFile(file); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.playNextStreamLocked()
	return nil
}

// QueueNextFile opens a decoder, creates a paused Stream for it, and
// appends it to the queue.
func (p *Player) QueueNextFile(file string) error {
	dec := p.factory(file)
	if err := dec.Create(file, 0); err != nil {
		return fmt.Errorf("player: open decoder for %s: %w", file, err)
	}

	channels, sampleRate, format := dec.DataFormat()
	formatIn := audioformat.Format{
		SampleRate: sampleRate,
		Channels:   channels,
		DataFormat: format,
	}

	handle, err := p.eng.GetStream(formatIn, ringFrames, stream.FreeOnDrain|stream.OwnsPostProc|stream.StartPaused)
	if err != nil {
		dec.Close()
		return fmt.Errorf("%w", engine.ErrStreamCreateFailure)
	}

	si := &streamInfo{
		file:       file,
		dec:        dec,
		handle:     handle,
		channels:   channels,
		sampleRate: sampleRate,
	}
	handle.SetDataCallback(func(s *stream.Stream, framesNeeded int) {
		p.dataCallback(si, framesNeeded)
	})
	handle.SetFreeCallback(func(s *stream.Stream) {
		p.onStreamFreed(si)
	})

	// Seed the decoder: read one packet ahead of first pull.
	dec.ReadSamples(PacketSize)

	p.mu.Lock()
	p.seedThresholdsLocked(si)
	p.queued = append(p.queued, si)
	playOnQueue := p.playOnQueue
	p.playOnQueue = false
	p.mu.Unlock()

	if playOnQueue {
		p.mu.Lock()
		p.playNextStreamLocked()
		p.mu.Unlock()
	}
	return nil
}

func (p *Player) seedThresholdsLocked(si *streamInfo) {
	totalMs := int64(si.dec.TotalTime())
	crossfadeMs := p.crossfade.Milliseconds()
	spc := int64(si.sampleRate) * int64(si.channels)
	si.changeAt = (totalMs - crossfadeMs) * spc / 1000
	si.prepareAt = (totalMs - crossfadeMs - TimeToCacheNextFile.Milliseconds()) * spc / 1000
}

// playNextStreamLocked advances current/finishing/queued by one track.
// Caller must hold p.mu.
func (p *Player) playNextStreamLocked() {
	if len(p.queued) == 0 {
		if p.queueFailed {
			p.stopLocked()
			return
		}
		p.playOnQueue = true
		return
	}

	fadeDur := p.crossfade
	if len(p.finishing) > 0 && fadeDur > FastXfadeTime {
		fadeDur = FastXfadeTime
	}

	if p.current != nil {
		if p.crossfade <= 0 {
			p.current.handle.Flush()
			p.current.handle.Drain()
		} else {
			outgoing := p.current
			outgoing.handle.PrependPostProc(postproc.NewFade(outgoing.sampleRate, fadeDur, 1, 0, func() {
				p.onFadeOutDone(outgoing)
			}))
			p.finishing = append(p.finishing, outgoing)
		}
		if p.audioCB != nil {
			p.audioCB.OnDeinitialize()
		}
		p.current = nil
	}

	next := p.queued[0]
	p.queued = p.queued[1:]
	if p.crossfade > 0 {
		next.handle.PrependPostProc(postproc.NewFade(next.sampleRate, fadeDur, 0, 1, nil))
	}
	p.current = next
	p.playing = true
	p.current.handle.Resume()
	if p.audioCB != nil {
		p.audioCB.OnInitialize(next.channels, next.sampleRate, 32)
	}
	p.callback.OnPlaybackStarted()
}

// onFadeOutDone fires when a fade-out completes: it marks the decoder
// ended and drains the Stream, which is how a crossfading tail
// terminates.
func (p *Player) onFadeOutDone(si *streamInfo) {
	si.dec.SetStatus(decoder.StatusEnded)
	si.handle.Drain()
}

// onStreamFreed runs when the engine releases a FreeOnDrain stream; the
// single legal point to close its decoder and drop the streamInfo.
func (p *Player) onStreamFreed(si *streamInfo) {
	p.mu.Lock()
	for i, f := range p.finishing {
		if f == si {
			p.finishing = append(p.finishing[:i], p.finishing[i+1:]...)
			break
		}
	}
	if p.current == si {
		p.current = nil
	}
	p.mu.Unlock()
	si.dec.Close()
}

// dataCallback pulls decoded samples into si's Stream; invoked from the
// engine thread.
func (p *Player) dataCallback(si *streamInfo, framesNeeded int) {
	p.mu.RLock()
	playing := p.playing
	p.mu.RUnlock()
	if !playing {
		return
	}

	remaining := framesNeeded * si.channels
	for remaining > 0 {
		if si.dec.DataSize() == 0 {
			st, err := si.dec.ReadSamples(PacketSize)
			if err != nil || st == decoder.StatusEnded || st == decoder.StatusError {
				p.handleEOF(si)
				return
			}
		}

		pull := si.dec.DataSize()
		if pull > remaining {
			pull = remaining
		}
		if pull > OutputSamples {
			pull = OutputSamples
		}
		if pull <= 0 {
			return
		}

		chunk := si.dec.Data(pull)
		raw := make([]byte, len(chunk)*4)
		frameCount := len(chunk) / si.channels
		if err := audioformat.FromFloat(chunk, frameCount, si.channels, audioformat.FLOAT, raw); err != nil {
			p.handleEOF(si)
			return
		}
		si.handle.AddData(raw)
		si.sentSamples += int64(pull)
		remaining -= pull

		p.mu.RLock()
		cb, isCurrent := p.audioCB, p.current == si
		p.mu.RUnlock()
		if cb != nil && isCurrent {
			cb.OnAudioData(chunk)
		}

		p.runFFRW(si)
		p.runQueueTrigger(si)
		if p.runChangeTrigger(si) {
			return
		}
	}
}

// runFFRW advances the decode position when fast-forwarding or
// rewinding: step = (speed > 1 ? 0.5 : 1.0) * speed / 2 seconds. The
// asymmetry between forward and reverse step size at the same |speed|
// is intentional, not a bug. A stream already past its change trigger
// (crossfading out in the finishing list) is left alone: seeking its
// decoder mid-fade-out would corrupt the tail it's still draining.
func (p *Player) runFFRW(si *streamInfo) {
	p.mu.RLock()
	speed := p.speed
	p.mu.RUnlock()
	if speed == 1 || si.sentSamples < si.snippetEnd || si.triggered {
		return
	}

	var mul float64
	if speed > 1 {
		mul = 0.5
	} else {
		mul = 1.0
	}
	stepSec := mul * speed / 2

	curMs := int(si.sentSamples * 1000 / int64(si.channels) / int64(si.sampleRate))
	newMs := curMs + int(stepSec*1000)
	if newMs <= 0 {
		p.mu.Lock()
		p.speed = 1
		p.mu.Unlock()
		return
	}

	si.dec.Seek(newMs)
	newFrames := int64(newMs) * int64(si.sampleRate) / 1000
	si.sentSamples = newFrames * int64(si.channels)
	spc := int64(si.sampleRate) * int64(si.channels)
	si.snippetEnd = si.sentSamples + int64(float64(spc)/math.Abs(speed))
}

func (p *Player) runQueueTrigger(si *streamInfo) {
	if si.prepareAt > 0 && si.sentSamples >= si.prepareAt {
		si.prepareAt = 0
		p.callback.OnQueueNextItem()
	}
}

// runChangeTrigger returns true if it initiated a track change (caller
// should stop pulling more data for si this callback).
func (p *Player) runChangeTrigger(si *streamInfo) bool {
	if si.triggered || si.sentSamples < si.changeAt {
		return false
	}
	si.triggered = true
	p.mu.Lock()
	p.playNextStreamLocked()
	p.mu.Unlock()
	return true
}

// handleEOF fires any pending triggers, clears current if this stream
// was it, and drains. Unlike the threshold-gated queue trigger run from
// dataCallback's main loop, EOF fires the queue trigger unconditionally
// whenever one is still pending: a track that ends before sent_samples
// ever reaches prepare_at must still ask for the next file, or nothing
// is ever queued and playback stalls.
func (p *Player) handleEOF(si *streamInfo) {
	if si.prepareAt != 0 {
		si.prepareAt = 0
		p.callback.OnQueueNextItem()
	}
	if !si.triggered {
		si.triggered = true
		p.mu.Lock()
		p.playNextStreamLocked()
		p.mu.Unlock()
	}
	p.mu.Lock()
	if p.current == si {
		p.current = nil
	}
	p.mu.Unlock()
	si.handle.Drain()
}

// StopStream removes si from every list, drains, flushes, and frees the
// Stream.
func (p *Player) StopStream(si *streamInfo) {
	p.mu.Lock()
	for i, q := range p.queued {
		if q == si {
			p.queued = append(p.queued[:i], p.queued[i+1:]...)
			break
		}
	}
	for i, f := range p.finishing {
		if f == si {
			p.finishing = append(p.finishing[:i], p.finishing[i+1:]...)
			break
		}
	}
	if p.current == si {
		p.current = nil
	}
	p.mu.Unlock()

	si.handle.SetDataCallback(nil)
	si.handle.Drain()
	si.handle.Flush()
}

// SeekTime seeks the current track to ms, clamped so it cannot move
// before track start.
func (p *Player) SeekTime(ms int) {
	p.mu.Lock()
	si := p.current
	if si == nil {
		p.mu.Unlock()
		return
	}
	curMs := int(si.sentSamples * 1000 / int64(si.channels) / int64(si.sampleRate))
	delta := ms - curMs
	spc := int64(si.sampleRate) * int64(si.channels)
	deltaSamples := int64(delta) * spc / 1000
	if deltaSamples < -si.sentSamples {
		deltaSamples = -si.sentSamples
	}
	si.dec.Seek(curMs + int(deltaSamples*1000/spc))
	si.handle.Flush()
	si.sentSamples += deltaSamples
	p.mu.Unlock()

	p.callback.OnPlaybackSeek(ms, delta)
}

// ToFFRW sets speed and forces the next data callback into FFRW logic
// immediately.
func (p *Player) ToFFRW(speed float64) {
	p.mu.Lock()
	p.speed = speed
	if p.current != nil {
		p.current.snippetEnd = p.current.sentSamples
	}
	p.mu.Unlock()
	p.callback.OnPlaybackSpeedChanged(speed)
}

// Pause toggles playback: pauses current and every finishing Stream.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = !p.playing
	if p.current != nil {
		if p.playing {
			p.current.handle.Resume()
		} else {
			p.current.handle.Pause()
		}
	}
	for _, f := range p.finishing {
		if p.playing {
			f.handle.Resume()
		} else {
			f.handle.Pause()
		}
	}
	if p.playing {
		p.callback.OnPlaybackResumed()
	} else {
		p.callback.OnPlaybackPaused()
	}
}

// OnNothingToQueueNotify is the queue-failed handshake: the host calls
// this when OnQueueNextItem yielded no next file.
func (p *Player) OnNothingToQueueNotify() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueFailed = true
	if p.playOnQueue {
		p.stopLocked()
	}
}

func (p *Player) stopLocked() {
	p.playing = false
	p.playOnQueue = false
	p.callback.OnPlaybackStopped()
}
