package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPack8(t *testing.T) {
	t.Parallel()

	for _, n := range []uint8{0, 1, 74, 127, 128, 200, 255} {
		packed := Pack8(n)
		unpacked, size, err := Unpack8(packed)
		require.NoError(t, err)
		assert.Equal(t, n, unpacked)
		assert.Equal(t, len(packed), size)
	}
}

func TestUnpack8Errors(t *testing.T) {
	t.Parallel()

	_, _, err := Unpack8(nil)
	assert.ErrorIs(t, err, ErrEmptyBuf)
	_, _, err = Unpack8([]byte{200})
	assert.ErrorIs(t, err, ErrTooSmall)
	_, _, err = Unpack8([]byte{200, 0x02})
	assert.ErrorIs(t, err, ErrValueExceeded)
}
