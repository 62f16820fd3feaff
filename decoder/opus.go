package decoder

import (
	"fmt"
	"sync"

	"github.com/thesyncim/gopus"

	"github.com/s3verian/softae/audioformat"
)

// packetSource supplies whole Opus packets in playback order; a real
// player wires this to a container demuxer (Ogg/WebM page reader), kept
// out of scope here as an external collaborator, same as the codec
// factory.
type packetSource interface {
	NextPacket() ([]byte, bool)
}

// Opus decodes a sequence of raw Opus packets using thesyncim/gopus's
// NewDecoder/Decode API.
type Opus struct {
	mu sync.Mutex

	sampleRate int
	channels   int
	totalMs    int
	gainLinear float32

	dec      *gopus.Decoder
	cfg      gopus.DecoderConfig
	src      packetSource
	pcmOut   []float32
	buffered []float32
	posFrame int
	status   Status
}

// NewOpus builds a decoder pulling packets from src.
func NewOpus(sampleRate, channels int, src packetSource) (*Opus, error) {
	cfg := gopus.DefaultDecoderConfig(sampleRate, channels)
	dec, err := gopus.NewDecoder(cfg)
	if err != nil {
		return nil, fmt.Errorf("decoder: opus new decoder: %w", err)
	}
	return &Opus{
		sampleRate: sampleRate,
		channels:   channels,
		gainLinear: 1.0,
		dec:        dec,
		cfg:        cfg,
		src:        src,
		pcmOut:     make([]float32, cfg.MaxPacketSamples*cfg.Channels),
		status:     StatusNoFile,
	}, nil
}

func (o *Opus) Create(file string, startMs int) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.posFrame = startMs * o.sampleRate / 1000
	o.status = StatusPlaying
	return nil
}

func (o *Opus) DataFormat() (channels, sampleRate int, format audioformat.DataFormat) {
	return o.channels, o.sampleRate, audioformat.FLOAT
}

// ReadSamples decodes whole packets until at least packetSize samples
// are buffered or the source is exhausted. Opus packets are fixed-size
// frames in time, not in byte count, so packetSize is advisory: one
// packet at a time is the natural unit.
func (o *Opus) ReadSamples(packetSize int) (Status, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for len(o.buffered) < packetSize {
		packet, ok := o.src.NextPacket()
		if !ok {
			o.status = StatusEnded
			return StatusEnded, nil
		}
		n, err := o.dec.Decode(packet, o.pcmOut)
		if err != nil {
			o.status = StatusError
			return StatusError, fmt.Errorf("decoder: opus decode: %w", err)
		}
		frames := n * o.channels
		o.buffered = append(o.buffered, o.pcmOut[:frames]...)
		o.posFrame += n
	}
	o.status = StatusPlaying
	return StatusPlaying, nil
}

func (o *Opus) Data(n int) []float32 {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n > len(o.buffered) {
		n = len(o.buffered)
	}
	out := make([]float32, n)
	copy(out, o.buffered[:n])
	o.buffered = o.buffered[n:]
	return out
}

func (o *Opus) DataSize() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.buffered)
}

// Seek is unsupported: packetSource is a forward-only stream in this
// minimal wiring (no container index to jump to an arbitrary offset).
func (o *Opus) Seek(ms int) {}

func (o *Opus) TotalTime() int { return o.totalMs }
func (o *Opus) CanSeek() bool  { return false }

func (o *Opus) ReplayGain() float32 { return o.gainLinear }

func (o *Opus) SkipNext() {}

func (o *Opus) CacheLevel() int { return 100 }

func (o *Opus) GetStatus() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Opus) SetStatus(st Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = st
}

func (o *Opus) Close() error { return nil }

var _ Codec = (*Opus)(nil)
