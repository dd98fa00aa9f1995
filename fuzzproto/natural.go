package fuzzproto

import (
	"encoding/binary"
	"math/bits"
)

// AppendNatural appends the variable-length encoding of x: the number of
// leading one bits in the first byte gives the count of little-endian bytes
// that follow, the remaining bits of the first byte hold the most
// significant part. Values of 2^56 and above use a 0xff prefix and 8 bytes.
func AppendNatural(dst []byte, x uint64) []byte {
	if x < 1<<7 {
		return append(dst, byte(x))
	}
	for l := uint(1); l < 8; l++ {
		if x < 1<<(7*(l+1)) {
			prefix := byte(uint(0x100) - uint(0x100)>>l)
			dst = append(dst, prefix|byte(x>>(8*l)))
			for i := uint(0); i < l; i++ {
				dst = append(dst, byte(x>>(8*i)))
			}
			return dst
		}
	}
	dst = append(dst, 0xff)
	return binary.LittleEndian.AppendUint64(dst, x)
}

// DecodeNatural reads a natural number from the start of b and returns it
// with the number of bytes consumed.
func DecodeNatural(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, &DecodeError{What: "natural", Reason: "no data"}
	}
	first := b[0]
	l := bits.LeadingZeros8(^first)
	if len(b) < 1+l {
		return 0, 0, &DecodeError{What: "natural", Reason: "truncated"}
	}
	if l == 8 {
		return binary.LittleEndian.Uint64(b[1:9]), 9, nil
	}

	var low uint64
	for i := 0; i < l; i++ {
		low |= uint64(b[1+i]) << (8 * i)
	}
	high := uint64(first & (0xff >> (l + 1)))
	return high<<(8*l) | low, 1 + l, nil
}
