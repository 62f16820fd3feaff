// Package decoder implements the codec collaborator the Player pulls
// from: a source of interleaved PCM samples with seek, replay-gain, and
// cache-level reporting, plus a handful of concrete backends.
package decoder

import "github.com/s3verian/softae/audioformat"

// Status is the decoder's coordination state, queried/set by the Player
// across track transitions.
type Status int

const (
	StatusNoFile Status = iota
	StatusQueued
	StatusPlaying
	StatusEnded
	StatusError
)

// Codec is the decoder collaborator. All sample counts are in samples
// (interleaved, i.e. frames * channels), matching the player's
// sent-samples accounting.
type Codec interface {
	// Create opens file and seeks to startMs before the first read.
	Create(file string, startMs int) error

	// DataFormat reports the format the decoder will emit.
	DataFormat() (channels, sampleRate int, format audioformat.DataFormat)

	// ReadSamples pulls up to packetSize samples from the source into
	// the decoder's internal buffer, returning StatusPlaying on success,
	// StatusEnded at end of stream, StatusError on a decode failure.
	ReadSamples(packetSize int) (Status, error)

	// Data consumes up to n buffered samples and returns them.
	Data(n int) []float32

	// DataSize reports how many samples are currently buffered.
	DataSize() int

	// Seek moves the read position to ms from the start of the file.
	Seek(ms int)

	// TotalTime returns the track duration in ms, 0 if unknown.
	TotalTime() int

	// CanSeek reports whether Seek is meaningful for this source.
	CanSeek() bool

	// ReplayGain returns the linear scalar recovered from metadata, 1.0
	// if none is present.
	ReplayGain() float32

	// SkipNext signals the decoder that the host is abandoning gapless
	// continuation (used by some sources to stop readahead work).
	SkipNext()

	// CacheLevel reports buffering progress, 0..100.
	CacheLevel() int

	GetStatus() Status
	SetStatus(Status)

	Close() error
}
