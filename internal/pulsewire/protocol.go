// Package pulsewire is a minimal client for the PulseAudio native
// protocol: connection handshake, the tagged-value wire format, and
// playback-stream creation/write, used as the transport for
// sink.PulseSink.
package pulsewire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// PulseAudio native protocol command IDs.
const (
	CmdError                = 0
	CmdTimeout              = 1
	CmdReply                = 2
	CmdCreatePlaybackStream = 3
	CmdDeletePlaybackStream = 4
	CmdExit                 = 7
	CmdAuth                 = 8
	CmdSetClientName        = 9
	CmdDrainPlaybackStream  = 12
	CmdRequest              = 61
)

// Sample formats, as used in TAG_SAMPLE_SPEC.
const (
	SampleU8        = 0
	SampleS16LE     = 3
	SampleS16BE     = 4
	SampleFloat32LE = 5
	SampleFloat32BE = 6
	SampleS32LE     = 7
	SampleS32BE     = 8
)

// Channel positions.
const (
	ChannelMono       = 0
	ChannelFrontLeft  = 1
	ChannelFrontRight = 2
)

// Tag types used in the PulseAudio tagged protocol.
const (
	TagStringNull = 'N'
	TagU32        = 'L'
	TagS64        = 'R'
	TagSampleSpec = 'a'
	TagArbitrary  = 'x'
	TagBoolTrue   = '1'
	TagBoolFalse  = '0'
	TagU8         = 'B'
	TagString     = 't'
	TagChannelMap = 'm'
	TagCVolume    = 'v'
	TagPropList   = 'P'
	TagFormatInfo = 'f'
)

// ProtocolVersion is the version we advertise during AUTH.
const ProtocolVersion = 35

// ControlChannel is the channel ID used for control messages.
const ControlChannel = 0xFFFFFFFF

// DescriptorSize is the size of a PA frame descriptor.
const DescriptorSize = 20

var (
	ErrServerError = errors.New("pulsewire: server returned error")
	ErrProtocol    = errors.New("pulsewire: protocol error")
)

// TagBuilder accumulates tagged values into a byte slice.
type TagBuilder struct {
	buf []byte
}

func NewTagBuilder() *TagBuilder { return &TagBuilder{} }

func (tb *TagBuilder) AddU32(v uint32) {
	tb.buf = append(tb.buf, TagU32)
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	tb.buf = append(tb.buf, b...)
}

func (tb *TagBuilder) AddArbitrary(data []byte) {
	tb.buf = append(tb.buf, TagArbitrary)
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(len(data)))
	tb.buf = append(tb.buf, b...)
	tb.buf = append(tb.buf, data...)
}

func (tb *TagBuilder) AddStringNull() {
	tb.buf = append(tb.buf, TagStringNull)
}

func (tb *TagBuilder) AddBool(v bool) {
	if v {
		tb.buf = append(tb.buf, TagBoolTrue)
	} else {
		tb.buf = append(tb.buf, TagBoolFalse)
	}
}

func (tb *TagBuilder) AddU8(v uint8) {
	tb.buf = append(tb.buf, TagU8)
	tb.buf = append(tb.buf, v)
}

func (tb *TagBuilder) AddSampleSpec(format uint8, channels uint8, rate uint32) {
	tb.buf = append(tb.buf, TagSampleSpec)
	tb.buf = append(tb.buf, format)
	tb.buf = append(tb.buf, channels)
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, rate)
	tb.buf = append(tb.buf, b...)
}

func (tb *TagBuilder) AddChannelMap(channels uint8, positions []uint8) {
	tb.buf = append(tb.buf, TagChannelMap)
	tb.buf = append(tb.buf, channels)
	tb.buf = append(tb.buf, positions...)
}

func (tb *TagBuilder) AddCVolume(channels uint8, volume uint32) {
	tb.buf = append(tb.buf, TagCVolume)
	tb.buf = append(tb.buf, channels)
	for i := uint8(0); i < channels; i++ {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, volume)
		tb.buf = append(tb.buf, b...)
	}
}

func (tb *TagBuilder) AddPropList(props map[string]string) {
	tb.buf = append(tb.buf, TagPropList)
	for k, v := range props {
		tb.buf = append(tb.buf, TagString)
		tb.buf = append(tb.buf, []byte(k)...)
		tb.buf = append(tb.buf, 0)

		vBytes := append([]byte(v), 0)
		tb.buf = append(tb.buf, TagU32)
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, uint32(len(vBytes)))
		tb.buf = append(tb.buf, b...)

		tb.buf = append(tb.buf, TagArbitrary)
		binary.BigEndian.PutUint32(b, uint32(len(vBytes)))
		tb.buf = append(tb.buf, b...)
		tb.buf = append(tb.buf, vBytes...)
	}
	tb.buf = append(tb.buf, TagStringNull)
}

func (tb *TagBuilder) Bytes() []byte { return tb.buf }

// TagParser reads tagged values from server replies.
type TagParser struct {
	data []byte
	pos  int
}

func NewTagParser(data []byte) *TagParser { return &TagParser{data: data} }

func (tp *TagParser) ReadU32() (uint32, error) {
	if tp.pos >= len(tp.data) {
		return 0, fmt.Errorf("pulsewire: unexpected end of data reading U32 tag byte")
	}
	tag := tp.data[tp.pos]
	tp.pos++
	if tag != TagU32 {
		return 0, fmt.Errorf("pulsewire: expected TAG_U32 (0x%02x), got 0x%02x", TagU32, tag)
	}
	if tp.pos+4 > len(tp.data) {
		return 0, fmt.Errorf("pulsewire: unexpected end of data reading U32 value")
	}
	v := binary.BigEndian.Uint32(tp.data[tp.pos:])
	tp.pos += 4
	return v, nil
}

// BuildDescriptor creates a 20-byte PA frame descriptor.
func BuildDescriptor(length uint32, channel uint32) []byte {
	desc := make([]byte, DescriptorSize)
	binary.BigEndian.PutUint32(desc[0:], length)
	binary.BigEndian.PutUint32(desc[4:], channel)
	return desc
}

// BuildCommand creates a complete PA control frame: descriptor + command
// tag + tag sequence + payload.
func BuildCommand(command uint32, tag uint32, payload []byte) []byte {
	tb := NewTagBuilder()
	tb.AddU32(command)
	tb.AddU32(tag)
	cmdPayload := append(tb.Bytes(), payload...)

	desc := BuildDescriptor(uint32(len(cmdPayload)), ControlChannel)
	return append(desc, cmdPayload...)
}
