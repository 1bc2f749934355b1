package transaction

import (
	"github.com/safing/deltatx/overlay"
)

// View is the record-like surface of a transaction. Reads observe the pending
// changes over the base record, writes are staged until committed.
type View interface {
	Get(key string) (interface{}, error)
	Set(key string, value interface{}) error
	Delete(key string) error
	Keys() ([]string, error)
}

type undefined struct{}

func (undefined) String() string {
	return "undefined"
}

// Undefined is returned by Get for fields that do not exist.
var Undefined interface{} = undefined{}

// IsUndefined returns whether v is Undefined.
func IsUndefined(v interface{}) bool {
	_, ok := v.(undefined)
	return ok
}

// effectiveView reads the pending changes over the base record without
// calculated fields, events or locking. It is handed to listeners and
// calculated fields, which run while the transaction is locked.
type effectiveView struct {
	t *Transaction
}

func (v effectiveView) Get(key string) (interface{}, bool) {
	value, state := v.t.overlay.Get(key)
	switch state {
	case overlay.Pending:
		return value, true
	case overlay.Deleted:
		return nil, false
	default:
		return v.t.base.Get(key)
	}
}

func (v effectiveView) Keys() []string {
	return v.t.overlay.Keys(v.t.base.Keys())
}

func (v effectiveView) Delta() overlay.Delta {
	return v.t.overlay.Snapshot()
}
