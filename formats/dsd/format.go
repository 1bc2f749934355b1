package dsd

import (
	"errors"
	"strings"
)

// Errors.
var (
	ErrIncompatibleFormat = errors.New("dsd: format is incompatible with operation")
	ErrNoMoreSpace        = errors.New("dsd: no more space left after reading dsd type")
	ErrUnknownFormat      = errors.New("dsd: format is unknown")
)

// SerializationFormat is the identifier byte of a serialization format.
type SerializationFormat uint8

// Serialization formats.
const (
	AUTO    SerializationFormat = 0
	CBOR    SerializationFormat = 67 // C
	JSON    SerializationFormat = 74 // J
	MsgPack SerializationFormat = 77 // M
	YAML    SerializationFormat = 89 // Y
)

// CompressionFormat is the identifier byte of a compression format.
type CompressionFormat uint8

// Compression formats.
const (
	AutoCompress CompressionFormat = 0
	GZIP         CompressionFormat = 90 // Z
)

// Defaults used when AUTO is given.
var (
	DefaultSerializationFormat = JSON
	DefaultCompressionFormat   = GZIP
)

// ValidateSerializationFormat validates if the format is for serialization,
// and returns the validated format as well as the result of the validation.
// If called on the AUTO format, it returns the default serialization format.
func (format SerializationFormat) ValidateSerializationFormat() (validated SerializationFormat, ok bool) {
	switch format {
	case AUTO:
		return DefaultSerializationFormat, true
	case CBOR, JSON, MsgPack, YAML:
		return format, true
	default:
		return 0, false
	}
}

// ValidateCompressionFormat validates if the format is for compression,
// and returns the validated format as well as the result of the validation.
// If called on the AUTO format, it returns the default compression format.
func (format CompressionFormat) ValidateCompressionFormat() (validated CompressionFormat, ok bool) {
	switch format {
	case AutoCompress:
		return DefaultCompressionFormat, true
	case GZIP:
		return format, true
	default:
		return 0, false
	}
}

func (format SerializationFormat) String() string {
	switch format {
	case AUTO:
		return "auto"
	case CBOR:
		return "cbor"
	case JSON:
		return "json"
	case MsgPack:
		return "msgpack"
	case YAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// ParseFormat returns the serialization format with the given name.
// The empty string maps to AUTO.
func ParseFormat(name string) (SerializationFormat, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return AUTO, true
	case "cbor":
		return CBOR, true
	case "json":
		return JSON, true
	case "msgpack", "messagepack":
		return MsgPack, true
	case "yaml", "yml":
		return YAML, true
	default:
		return 0, false
	}
}
