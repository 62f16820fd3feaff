package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/s3verian/softae/audioformat"
	"github.com/s3verian/softae/internal/pulsewire"
)

// PulseSink talks the PulseAudio native protocol directly (no libpulse,
// no cgo).
type PulseSink struct {
	mu      sync.Mutex
	conn    *pulsewire.Connection
	channel uint32
	format  audioformat.Format
	written int64
	opened  time.Time
}

func NewPulseSink() *PulseSink {
	return &PulseSink{}
}

func (s *PulseSink) Open(desired audioformat.Format) (audioformat.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := pulsewire.Connect("softae")
	if err != nil {
		return audioformat.Format{}, fmt.Errorf("sink: pulse connect: %w", err)
	}

	pf, err := pulseSampleFormat(desired.DataFormat)
	if err != nil {
		conn.Close()
		return audioformat.Format{}, err
	}

	channel, err := conn.CreatePlaybackStream(pf, uint8(desired.Channels), uint32(desired.SampleRate))
	if err != nil {
		conn.Close()
		return audioformat.Format{}, fmt.Errorf("sink: pulse create stream: %w", err)
	}

	s.conn = conn
	s.channel = channel
	s.format = desired
	s.opened = time.Now()
	return desired, nil
}

func pulseSampleFormat(df audioformat.DataFormat) (uint8, error) {
	switch df {
	case audioformat.U8:
		return pulsewire.SampleU8, nil
	case audioformat.S16LE:
		return pulsewire.SampleS16LE, nil
	case audioformat.S16BE:
		return pulsewire.SampleS16BE, nil
	case audioformat.S32:
		return pulsewire.SampleS32LE, nil
	case audioformat.FLOAT:
		return pulsewire.SampleFloat32LE, nil
	default:
		return 0, fmt.Errorf("%w: pulse backend cannot encode %v", ErrFormatUnsupported, df)
	}
}

func (s *PulseSink) Write(buf []byte, frameCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := frameCount * s.format.FrameSizeBytes()
	if n > len(buf) {
		n = len(buf)
	}
	if err := s.conn.WriteData(s.channel, buf[:n]); err != nil {
		return 0, fmt.Errorf("sink: pulse write: %w", err)
	}
	s.written += int64(frameCount)
	return frameCount, nil
}

// Drain issues CmdDrainPlaybackStream and waits for the server's reply,
// which PulseAudio only sends once the stream's buffer has emptied.
func (s *PulseSink) Drain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	_, _, _, err := s.conn.DrainReplies()
	return err
}

func (s *PulseSink) GetDelay() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.format.SampleRate == 0 {
		return 0, nil
	}
	frames := s.written % int64(s.format.SampleRate)
	return time.Duration(frames) * time.Second / time.Duration(s.format.SampleRate), nil
}

func (s *PulseSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *PulseSink) HasVolume() bool { return true }

func (s *PulseSink) SetVolume(v float32) error {
	// Volume is expressed as a per-channel CVolume at stream-create time
	// in this minimal client; runtime volume change would require a
	// SET_STREAM_VOLUME control command, which this transport does not
	// yet implement.
	return fmt.Errorf("sink: pulse backend does not support runtime volume change")
}
