// Package packetizer wraps encoded AC3/DTS frames into IEC 61937 burst
// payloads for passthrough delivery to an S/PDIF-capable sink.
package packetizer

import "encoding/binary"

// DataType identifies the compressed format being wrapped, per the
// IEC 61937 Pa/Pb/Pc/Pd burst-preamble convention.
type DataType uint16

const (
	DataTypeAC3 DataType = 0x01
	DataTypeDTS DataType = 0x0B
)

const (
	preambleA = 0xF872
	preambleB = 0x4E1F
)

// Packetize wraps a single compressed frame into an IEC 61937 burst: the
// four-word preamble (Pa, Pb, Pc, Pd) followed by the payload padded out
// to burstLen bytes (burstLen is the frame period's byte budget at the
// wrapped sample rate; callers pick it to match the sink's configured
// period). The payload is bit-count (not byte-count) addressed in Pd per
// the standard, so Pd records len(frame)*8.
func Packetize(frame []byte, dt DataType, burstLen int) []byte {
	out := make([]byte, burstLen)
	binary.LittleEndian.PutUint16(out[0:], preambleA)
	binary.LittleEndian.PutUint16(out[2:], preambleB)
	binary.LittleEndian.PutUint16(out[4:], uint16(dt))
	binary.LittleEndian.PutUint16(out[6:], uint16(len(frame)*8))
	copy(out[8:], frame)
	// Remaining bytes are already zero (pause burst / padding).
	return out
}

// Unwrap extracts the original compressed frame from an IEC 61937 burst,
// validating the preamble. Used by tests to round-trip Packetize.
func Unwrap(burst []byte) (frame []byte, dt DataType, ok bool) {
	if len(burst) < 8 {
		return nil, 0, false
	}
	if binary.LittleEndian.Uint16(burst[0:]) != preambleA || binary.LittleEndian.Uint16(burst[2:]) != preambleB {
		return nil, 0, false
	}
	dt = DataType(binary.LittleEndian.Uint16(burst[4:]))
	bits := binary.LittleEndian.Uint16(burst[6:])
	nbytes := int(bits) / 8
	if 8+nbytes > len(burst) {
		return nil, 0, false
	}
	return burst[8 : 8+nbytes], dt, true
}
