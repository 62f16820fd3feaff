// Package audioformat converts between interleaved PCM encodings and the
// canonical float frames the mixing engine operates on.
package audioformat

import "fmt"

// DataFormat identifies a PCM sample encoding.
type DataFormat int

const (
	U8 DataFormat = iota
	S16LE
	S16BE
	S24LE3 // 24-bit packed into 3 bytes, little endian
	S24LE4 // 24-bit value in the low 3 bytes of a 4-byte little endian word
	S32
	FLOAT
	RAW // compressed bitstream, no per-sample conversion applies
)

// BytesPerSample returns the storage size of one sample in the given format.
// RAW has no fixed per-sample size; callers must not call this for RAW.
func BytesPerSample(f DataFormat) int {
	switch f {
	case U8:
		return 1
	case S16LE, S16BE:
		return 2
	case S24LE3:
		return 3
	case S24LE4, S32, FLOAT:
		return 4
	default:
		return 0
	}
}

// Channel is a named position in a channel layout.
type Channel int

const (
	ChFrontLeft Channel = iota
	ChFrontRight
	ChFrontCenter
	ChLFE
	ChBackLeft
	ChBackRight
	ChSideLeft
	ChSideRight
)

// Layout is an ordered set of named channels.
type Layout []Channel

// StereoLayout and common layouts used by the remap tables.
var (
	MonoLayout   = Layout{ChFrontCenter}
	StereoLayout = Layout{ChFrontLeft, ChFrontRight}
	Layout51     = Layout{ChFrontLeft, ChFrontRight, ChFrontCenter, ChLFE, ChBackLeft, ChBackRight}
)

// DefaultLayout picks a named layout for a bare channel count: Mono,
// Stereo, or 5.1 when the count matches one of those exactly, otherwise
// a synthetic layout whose only role is to drive remap.Build's even-split
// fallback (the channel identities themselves carry no meaning).
func DefaultLayout(channels int) Layout {
	switch channels {
	case 1:
		return MonoLayout
	case 2:
		return StereoLayout
	case 6:
		return Layout51
	default:
		l := make(Layout, channels)
		for i := range l {
			l[i] = Channel(i)
		}
		return l
	}
}

// Format describes an audio stream's sample rate, channel count/layout,
// data format, and the engine's period size.
type Format struct {
	SampleRate    int
	Channels      int
	ChannelLayout Layout
	DataFormat    DataFormat
	FramesPerPeriod int
}

// FrameSizeBytes returns channels * bytes-per-sample. Undefined
// (returns 0) in RAW mode, where frames have no fixed byte size.
func (f Format) FrameSizeBytes() int {
	if f.DataFormat == RAW {
		return 0
	}
	return f.Channels * BytesPerSample(f.DataFormat)
}

// Validate checks that the channel count is positive and, when a
// layout is given, that it matches the channel count. Skipped in RAW
// mode, where neither applies.
func (f Format) Validate() error {
	if f.DataFormat == RAW {
		return nil
	}
	if f.Channels <= 0 {
		return fmt.Errorf("audioformat: channel count must be positive, got %d", f.Channels)
	}
	if len(f.ChannelLayout) != 0 && len(f.ChannelLayout) != f.Channels {
		return fmt.Errorf("audioformat: layout has %d channels, format declares %d", len(f.ChannelLayout), f.Channels)
	}
	return nil
}
