package audioformat

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	errShortDst          = errors.New("audioformat: destination buffer too short")
	errShortSrc          = errors.New("audioformat: source buffer too short")
	errUnsupportedFormat = errors.New("audioformat: unsupported data format")
)

// ToFloat decodes frameCount frames of src (in the given DataFormat) into
// dst, normalized to [-1.0, 1.0]. dst must have length >= frameCount*channels.
//
// This is a plain scalar conversion; there's no SIMD path.
func ToFloat(src []byte, frameCount, channels int, df DataFormat, dst []float32) error {
	n := frameCount * channels
	if len(dst) < n {
		return errShortDst
	}
	switch df {
	case U8:
		for i := 0; i < n; i++ {
			dst[i] = (float32(src[i]) - 128) / 128.0
		}
	case S16LE:
		for i := 0; i < n; i++ {
			v := int16(binary.LittleEndian.Uint16(src[i*2:]))
			dst[i] = float32(v) / 32768.0
		}
	case S16BE:
		for i := 0; i < n; i++ {
			v := int16(binary.BigEndian.Uint16(src[i*2:]))
			dst[i] = float32(v) / 32768.0
		}
	case S24LE3:
		for i := 0; i < n; i++ {
			off := i * 3
			v := int32(src[off]) | int32(src[off+1])<<8 | int32(src[off+2])<<16
			if v&0x800000 != 0 {
				v |= ^int32(0xFFFFFF)
			}
			dst[i] = float32(v) / 8388608.0
		}
	case S24LE4:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(src[i*4:]))
			v = (v << 8) >> 8 // sign-extend the low 24 bits
			dst[i] = float32(v) / 8388608.0
		}
	case S32:
		for i := 0; i < n; i++ {
			v := int32(binary.LittleEndian.Uint32(src[i*4:]))
			dst[i] = float32(v) / 2147483648.0
		}
	case FLOAT:
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(src[i*4:])
			dst[i] = math.Float32frombits(bits)
		}
	default:
		return errUnsupportedFormat
	}
	return nil
}

// FromFloat encodes frameCount frames of src into dst in the given
// DataFormat. src values outside [-1.0, 1.0] are clamped.
func FromFloat(src []float32, frameCount, channels int, df DataFormat, dst []byte) error {
	n := frameCount * channels
	if len(src) < n {
		return errShortSrc
	}
	switch df {
	case U8:
		for i := 0; i < n; i++ {
			dst[i] = byte(clamp(src[i])*127.0 + 128.0)
		}
	case S16LE:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16(clamp(src[i])*32767.0)))
		}
	case S16BE:
		for i := 0; i < n; i++ {
			binary.BigEndian.PutUint16(dst[i*2:], uint16(int16(clamp(src[i])*32767.0)))
		}
	case S24LE3:
		for i := 0; i < n; i++ {
			v := int32(clamp(src[i]) * 8388607.0)
			off := i * 3
			dst[off] = byte(v)
			dst[off+1] = byte(v >> 8)
			dst[off+2] = byte(v >> 16)
		}
	case S24LE4:
		for i := 0; i < n; i++ {
			v := int32(clamp(src[i]) * 8388607.0)
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(v)&0x00FFFFFF)
		}
	case S32:
		for i := 0; i < n; i++ {
			v := int64(float64(clamp(src[i])) * 2147483647.0)
			binary.LittleEndian.PutUint32(dst[i*4:], uint32(int32(v)))
		}
	case FLOAT:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(clamp(src[i])))
		}
	default:
		return errUnsupportedFormat
	}
	return nil
}

func clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
