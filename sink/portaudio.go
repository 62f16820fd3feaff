package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/s3verian/softae/audioformat"
)

// PortAudioSink is a real blocking output device backed by PortAudio: a
// blocking Write call is the engine's sole pacing point.
//
// PortAudioSink only ever asks for FLOAT frames; non-float desired
// formats are coerced to FLOAT, matching real hardware sinks that
// commonly prefer float32 over the wire.
type PortAudioSink struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	format     audioformat.Format
	deviceName string
	buf        []float32
	written    int64
	opened     time.Time
}

// NewPortAudioSink creates a sink targeting the named output device, or
// the host API default when deviceName is empty.
func NewPortAudioSink(deviceName string) *PortAudioSink {
	return &PortAudioSink{deviceName: deviceName}
}

func (s *PortAudioSink) Open(desired audioformat.Format) (audioformat.Format, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return audioformat.Format{}, fmt.Errorf("sink: portaudio init: %w", err)
	}

	dev, err := s.resolveDevice()
	if err != nil {
		portaudio.Terminate()
		return audioformat.Format{}, err
	}

	actual := desired
	actual.DataFormat = audioformat.FLOAT

	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = actual.Channels
	params.SampleRate = float64(actual.SampleRate)
	params.FramesPerBuffer = actual.FramesPerPeriod

	s.buf = make([]float32, actual.FramesPerPeriod*actual.Channels)
	stream, err := portaudio.OpenStream(params, s.buf)
	if err != nil {
		portaudio.Terminate()
		return audioformat.Format{}, fmt.Errorf("sink: open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return audioformat.Format{}, fmt.Errorf("sink: start stream: %w", err)
	}

	s.stream = stream
	s.format = actual
	s.opened = time.Now()
	return actual, nil
}

func (s *PortAudioSink) resolveDevice() (*portaudio.DeviceInfo, error) {
	if s.deviceName == "" {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("sink: list devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == s.deviceName && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("sink: output device %q not found", s.deviceName)
}

// Write blocks on the PortAudio stream write call: the engine's sole
// pacing point.
func (s *PortAudioSink) Write(buf []byte, frameCount int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := frameCount * s.format.Channels
	if err := audioformat.ToFloat(buf, frameCount, s.format.Channels, audioformat.FLOAT, s.buf[:n]); err != nil {
		return 0, err
	}
	if err := s.stream.Write(); err != nil {
		return 0, fmt.Errorf("sink: write: %w", err)
	}
	s.written += int64(frameCount)
	return frameCount, nil
}

func (s *PortAudioSink) Drain() error {
	// PortAudio has no explicit drain primitive exposed by the binding
	// used here; the blocking Write already paces to real time, so the
	// last Write's return is the drain point. Sleep out the configured
	// buffer's worth of latency to let the hardware finish playing it.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	info := s.stream.Info()
	time.Sleep(info.OutputLatency)
	return nil
}

func (s *PortAudioSink) GetDelay() (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return 0, nil
	}
	return s.stream.Info().OutputLatency, nil
}

func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	err := s.stream.Close()
	s.stream = nil
	portaudio.Terminate()
	return err
}

func (s *PortAudioSink) HasVolume() bool { return false }

func (s *PortAudioSink) SetVolume(v float32) error {
	return fmt.Errorf("sink: portaudio backend has no hardware volume control")
}
