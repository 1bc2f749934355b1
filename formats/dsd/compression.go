package dsd

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/safing/deltatx/formats/varint"
)

// DumpAndCompress dumps t like Dump and compresses the result. The
// compressed data is prefixed with the compression format.
func DumpAndCompress(t interface{}, format SerializationFormat, compression CompressionFormat) ([]byte, error) {
	compression, ok := compression.ValidateCompressionFormat()
	if !ok {
		return nil, ErrIncompatibleFormat
	}

	data, err := Dump(t, format)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(varint.Pack8(uint8(compression)))
	if compression == GZIP {
		zw, err := gzip.NewWriterLevel(buf, gzip.BestCompression)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, fmt.Errorf("dsd: failed to compress: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("dsd: failed to compress: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// DecompressAndLoad decompresses data produced by DumpAndCompress and loads
// it into t.
func DecompressAndLoad(data []byte, t interface{}) (SerializationFormat, error) {
	c, read, err := varint.Unpack8(data)
	if err != nil {
		return 0, err
	}
	if len(data) <= read {
		return 0, ErrNoMoreSpace
	}
	if CompressionFormat(c) != GZIP {
		return 0, fmt.Errorf("%w: compression %d", ErrUnknownFormat, c)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data[read:]))
	if err != nil {
		return 0, fmt.Errorf("dsd: failed to decompress: %w", err)
	}
	// reading to EOF also verifies the checksum
	decompressed, err := io.ReadAll(zr)
	if err != nil {
		return 0, fmt.Errorf("dsd: failed to decompress: %w", err)
	}

	return Load(decompressed, t)
}

// LoadAny loads data that was either dumped with Dump or DumpAndCompress.
func LoadAny(data []byte, t interface{}) (SerializationFormat, error) {
	if len(data) > 0 && CompressionFormat(data[0]) == GZIP {
		return DecompressAndLoad(data, t)
	}
	return Load(data, t)
}
