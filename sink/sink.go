// Package sink defines the blocking output device abstraction and
// provides concrete backends: an in-memory sink for tests, and real
// device backends over PortAudio and the PulseAudio native protocol.
package sink

import (
	"errors"
	"time"

	"github.com/s3verian/softae/audioformat"
)

// ErrFormatUnsupported is returned by Open when the sink cannot honor
// the desired format at all (not even by coercion).
var ErrFormatUnsupported = errors.New("sink: format not supported")

// Sink is the blocking output device contract: open, write (blocking),
// drain, query delay, close, and optional volume control.
type Sink interface {
	// Open configures the sink for desired and returns the format it
	// actually settled on; the caller must reconfigure its converter/
	// remap stage to the returned format.
	Open(desired audioformat.Format) (audioformat.Format, error)
	// Write blocks until frameCount frames of buf (in the format Open
	// returned) have been accepted, returning the number actually
	// written.
	Write(buf []byte, frameCount int) (int, error)
	// Drain blocks until all previously written data has been played out.
	Drain() error
	// GetDelay returns the output latency, in seconds, of data most
	// recently written but not yet audible.
	GetDelay() (time.Duration, error)
	Close() error
	HasVolume() bool
	SetVolume(v float32) error
}
