// Package varint packs the single-byte identifiers that prefix dsd data.
package varint

import "errors"

// Errors.
var (
	ErrEmptyBuf      = errors.New("varint: buffer empty")
	ErrTooSmall      = errors.New("varint: buffer too small")
	ErrValueExceeded = errors.New("varint: encoded integer greater than uint8")
)

// Pack8 packs a uint8 into a VarInt.
func Pack8(n uint8) []byte {
	if n < 128 {
		return []byte{n}
	}
	return []byte{n, 0x01}
}

// Unpack8 unpacks a VarInt into a uint8. It returns the extracted int and
// how many bytes were used.
func Unpack8(blob []byte) (uint8, int, error) {
	switch {
	case len(blob) < 1:
		return 0, 0, ErrEmptyBuf
	case blob[0] < 128:
		return blob[0], 1, nil
	case len(blob) < 2:
		return 0, 0, ErrTooSmall
	case blob[1] != 0x01:
		return 0, 0, ErrValueExceeded
	}
	return blob[0], 2, nil
}
