package transaction

import "errors"

// Errors.
var (
	ErrAccessAfterRevoke = errors.New("transaction: access after revoke")
	ErrInvalidFormat     = errors.New("transaction: invalid delta format")
	ErrReentrantCall     = errors.New("transaction: called while its listeners are running")
)
