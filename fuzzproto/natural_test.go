package fuzzproto

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaturalKnownEncodings(t *testing.T) {
	tests := []struct {
		value uint64
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x80}},
		{16383, []byte{0xbf, 0xff}},
		{16384, []byte{0xc0, 0x00, 0x40}},
		{1 << 56, []byte{0xff, 0, 0, 0, 0, 0, 0, 0, 0x01}},
		{math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}},
	}
	for _, tt := range tests {
		got := AppendNatural(nil, tt.value)
		assert.Equal(t, tt.want, got, "value %d", tt.value)

		v, n, err := DecodeNatural(got)
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
		assert.Equal(t, len(got), n)
	}
}

func TestNaturalBoundaries(t *testing.T) {
	for l := uint(1); l <= 8; l++ {
		for _, v := range []uint64{1<<(7*l) - 1, 1 << (7 * l), 1<<(7*l) + 1} {
			enc := AppendNatural(nil, v)
			got, n, err := DecodeNatural(append(enc, 0xaa))
			require.NoError(t, err)
			assert.Equal(t, v, got)
			assert.Equal(t, len(enc), n)
		}
	}
}

func TestDecodeNaturalTruncated(t *testing.T) {
	_, _, err := DecodeNatural(nil)
	assert.True(t, IsDecodeError(err))

	_, _, err = DecodeNatural([]byte{0xc0, 0x00})
	assert.True(t, IsDecodeError(err))
}
