package dsd

// dynamic structured data
// check here for some benchmarks: https://github.com/alecthomas/go_serialization_benchmarks

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"github.com/ghodss/yaml"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/safing/deltatx/formats/varint"
)

// cborDecoder decodes nested maps into map[string]interface{}, so that loaded
// data looks the same regardless of the format it came from.
var cborDecoder cbor.DecMode

func init() {
	var err error
	cborDecoder, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("dsd: failed to create cbor decoder: %s", err))
	}
}

// Load loads an dsd structured data blob into the given interface.
func Load(data []byte, t interface{}) (format SerializationFormat, err error) {
	f, read, err := varint.Unpack8(data)
	if err != nil {
		return 0, err
	}
	if len(data) <= read {
		return 0, ErrNoMoreSpace
	}

	format = SerializationFormat(f)
	if _, ok := format.ValidateSerializationFormat(); !ok || format == AUTO {
		return 0, fmt.Errorf("%w: %d", ErrUnknownFormat, f)
	}
	return format, LoadAsFormat(data[read:], format, t)
}

// LoadAsFormat loads a data blob into the interface using the specified format.
func LoadAsFormat(data []byte, format SerializationFormat, t interface{}) (err error) {
	switch format {
	case JSON:
		err = json.Unmarshal(data, t)
		if err != nil {
			return fmt.Errorf("dsd: failed to unpack json: %w, data: %s", err, string(data))
		}
		return nil
	case YAML:
		err = yaml.Unmarshal(data, t)
		if err != nil {
			return fmt.Errorf("dsd: failed to unpack yaml: %w", err)
		}
		return nil
	case CBOR:
		err = cborDecoder.Unmarshal(data, t)
		if err != nil {
			return fmt.Errorf("dsd: failed to decode cbor: %w", err)
		}
		return nil
	case MsgPack:
		err = msgpack.Unmarshal(data, t)
		if err != nil {
			return fmt.Errorf("dsd: failed to decode msgpack: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownFormat, format)
	}
}

// Dump stores the interface as a dsd formatted data structure.
func Dump(t interface{}, format SerializationFormat) ([]byte, error) {
	return DumpIndent(t, format, "")
}

// DumpIndent stores the interface as a dsd formatted data structure with indentation, if available.
func DumpIndent(t interface{}, format SerializationFormat, indent string) ([]byte, error) {
	data, err := dumpWithoutIdentifier(t, format, indent)
	if err != nil {
		return nil, err
	}

	f, _ := format.ValidateSerializationFormat()
	return append(varint.Pack8(uint8(f)), data...), nil
}

func dumpWithoutIdentifier(t interface{}, format SerializationFormat, indent string) ([]byte, error) {
	format, ok := format.ValidateSerializationFormat()
	if !ok {
		return nil, ErrIncompatibleFormat
	}

	var data []byte
	var err error
	switch format {
	case JSON:
		if indent != "" {
			data, err = json.MarshalIndent(t, "", indent)
		} else {
			data, err = json.Marshal(t)
		}
		if err != nil {
			return nil, err
		}
	case YAML:
		data, err = yaml.Marshal(t)
		if err != nil {
			return nil, err
		}
	case CBOR:
		data, err = cbor.Marshal(t)
		if err != nil {
			return nil, err
		}
	case MsgPack:
		data, err = msgpack.Marshal(t)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("dsd: tried to dump unknown type %d", format)
	}

	return data, nil
}
