package calc

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/safing/deltatx/record"
)

// Field computes the value of a calculated field from the effective view of
// a transaction.
type Field func(view record.Reader) (interface{}, error)

// Fields maps field names to their calculation.
type Fields map[string]Field

// Resolver resolves calculated fields. It is not safe for concurrent use.
type Resolver struct {
	fields Fields
}

// NewResolver returns a resolver with the given fields. Nil fields are skipped.
func NewResolver(fields Fields) *Resolver {
	r := &Resolver{
		fields: make(Fields, len(fields)),
	}
	for name, fn := range fields {
		r.Register(name, fn)
	}
	return r
}

// Register binds a calculation to a field name, replacing an existing one.
func (r *Resolver) Register(name string, fn Field) {
	if fn == nil {
		return
	}
	r.fields[name] = fn
}

// Has returns whether the name is a calculated field.
func (r *Resolver) Has(name string) bool {
	_, ok := r.fields[name]
	return ok
}

// Resolve computes the field. ok is false if name is not a calculated field.
func (r *Resolver) Resolve(name string, view record.Reader) (value interface{}, ok bool, err error) {
	fn, ok := r.fields[name]
	if !ok {
		return nil, false, nil
	}

	value, err = fn(view)
	if err != nil {
		return nil, true, fmt.Errorf("calc: failed to calculate %s: %w", name, err)
	}
	return value, true, nil
}

// Names returns the sorted names of all calculated fields.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.fields))
	for name := range r.fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone returns a resolver with the same fields.
func (r *Resolver) Clone() *Resolver {
	return NewResolver(r.fields)
}
