package frame

import "encoding/binary"

// QUIC variable-length integer bounds (RFC 9000 §16). The top two bits
// of the first byte select the encoded length.
const (
	varInt1Max = 1<<6 - 1
	varInt2Max = 1<<14 - 1
	varInt4Max = 1<<30 - 1
	varInt8Max = 1<<62 - 1
)

// VarIntLen reports how many bytes AppendVarInt will write for value.
func VarIntLen(value uint64) int {
	switch {
	case value <= varInt1Max:
		return 1
	case value <= varInt2Max:
		return 2
	case value <= varInt4Max:
		return 4
	default:
		return 8
	}
}

// AppendVarInt appends value to dst using the shortest varint class that
// holds it. Values above 2^62-1 are out of range for the wire format;
// this package never constructs one (stream/connection IDs, offsets and
// counts all stay within u62 by construction of their collaborators).
func AppendVarInt(dst []byte, value uint64) []byte {
	switch {
	case value <= varInt1Max:
		return append(dst, byte(value))
	case value <= varInt2Max:
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(value))
		buf[0] |= 0x40
		return append(dst, buf[:]...)
	case value <= varInt4Max:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], uint32(value))
		buf[0] |= 0x80
		return append(dst, buf[:]...)
	default:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], value&varInt8Max)
		buf[0] |= 0xC0
		return append(dst, buf[:]...)
	}
}

// DecodeVarInt reads one variable-length integer from the front of b. ok
// is false when b is too short for the length class its first byte
// declares; the caller must treat that as a truncated frame.
func DecodeVarInt(b []byte) (value uint64, n int, ok bool) {
	if len(b) == 0 {
		return 0, 0, false
	}
	n = 1 << (b[0] >> 6)
	if len(b) < n {
		return 0, 0, false
	}
	switch n {
	case 1:
		value = uint64(b[0] & 0x3F)
	case 2:
		value = uint64(binary.BigEndian.Uint16(b[:2]) & 0x3FFF)
	case 4:
		value = uint64(binary.BigEndian.Uint32(b[:4]) & 0x3FFFFFFF)
	case 8:
		value = binary.BigEndian.Uint64(b[:8]) & varInt8Max
	}
	return value, n, true
}
