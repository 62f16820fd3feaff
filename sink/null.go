package sink

import (
	"sync"
	"time"

	"github.com/s3verian/softae/audioformat"
)

// NullSink discards everything written to it; Write always succeeds
// immediately.
type NullSink struct {
	mu     sync.Mutex
	format audioformat.Format
	volume float32
}

func NewNullSink() *NullSink {
	return &NullSink{volume: 1.0}
}

func (s *NullSink) Open(desired audioformat.Format) (audioformat.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.format = desired
	return desired, nil
}

func (s *NullSink) Write(buf []byte, frameCount int) (int, error) {
	return frameCount, nil
}

func (s *NullSink) Drain() error { return nil }

func (s *NullSink) GetDelay() (time.Duration, error) { return 0, nil }

func (s *NullSink) Close() error { return nil }

func (s *NullSink) HasVolume() bool { return true }

func (s *NullSink) SetVolume(v float32) error {
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	return nil
}

// RecordingSink is a NullSink that additionally retains every byte
// written, for assertions in engine/player scenario tests.
type RecordingSink struct {
	NullSink
	mu      sync.Mutex
	Written []byte
}

func NewRecordingSink() *RecordingSink {
	return &RecordingSink{NullSink: NullSink{volume: 1.0}}
}

func (s *RecordingSink) Write(buf []byte, frameCount int) (int, error) {
	s.mu.Lock()
	s.Written = append(s.Written, buf[:frameCount*s.format.FrameSizeBytes()]...)
	s.mu.Unlock()
	return frameCount, nil
}

func (s *RecordingSink) Open(desired audioformat.Format) (audioformat.Format, error) {
	f, err := s.NullSink.Open(desired)
	s.format = f
	return f, err
}
