package record

import "errors"

// Common error definitions.
var (
	ErrInvalidJSON = errors.New("record: data is not valid json")
	ErrNotObject   = errors.New("record: json data is not an object")
	ErrEmptyKey    = errors.New("record: empty field name")
)
