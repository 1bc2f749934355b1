package overlay

import (
	"fmt"

	"github.com/armon/go-radix"
	"github.com/mitchellh/copystructure"
	"golang.org/x/exp/slices"

	"github.com/safing/deltatx/record"
)

// State describes what an overlay knows about a field.
type State uint8

// Field states.
const (
	// Missing means the overlay has no opinion, the base record decides.
	Missing State = iota
	// Pending means the overlay holds a new value.
	Pending
	// Deleted means the field is marked for deletion.
	Deleted
)

// Overlay holds the pending changes of a transaction: new field values,
// ordered by key, and the fields marked for deletion. A field is never both
// pending and deleted.
//
// Overlay is not safe for concurrent use.
type Overlay struct {
	pending *radix.Tree
	deletes map[string]struct{}
}

// New returns an empty overlay.
func New() *Overlay {
	return &Overlay{
		pending: radix.New(),
		deletes: make(map[string]struct{}),
	}
}

// Get returns the pending value of a field, if any, and the state of the field.
func (o *Overlay) Get(key string) (interface{}, State) {
	if value, ok := o.pending.Get(key); ok {
		return value, Pending
	}
	if _, ok := o.deletes[key]; ok {
		return nil, Deleted
	}
	return nil, Missing
}

// Set stages a new value for a field. If the base record already holds an
// equal value, the field is removed from the overlay instead. It returns
// whether the overlay changed.
func (o *Overlay) Set(key string, value, baseValue interface{}, inBase bool) (changed bool) {
	_, wasDeleted := o.deletes[key]
	delete(o.deletes, key)

	if inBase && Equal(value, baseValue) {
		_, wasPending := o.pending.Delete(key)
		return wasPending || wasDeleted
	}

	old, wasPending := o.pending.Insert(key, value)
	return wasDeleted || !wasPending || !Equal(old, value)
}

// Delete marks a field for deletion. Deleting an already deleted field
// changes nothing and returns false.
func (o *Overlay) Delete(key string) (changed bool) {
	if _, ok := o.deletes[key]; ok {
		return false
	}
	o.pending.Delete(key)
	o.deletes[key] = struct{}{}
	return true
}

// Clear removes all pending values and deletes.
func (o *Overlay) Clear() {
	o.pending = radix.New()
	o.deletes = make(map[string]struct{})
}

// Len returns the number of fields the overlay has an opinion on.
func (o *Overlay) Len() int {
	return o.pending.Len() + len(o.deletes)
}

// Empty returns whether the overlay holds no changes.
func (o *Overlay) Empty() bool {
	return o.Len() == 0
}

// Keys returns the visible field names: the union of the base keys and the
// pending keys, without the deleted ones, sorted and de-duplicated.
func (o *Overlay) Keys(baseKeys []string) []string {
	keys := make([]string, 0, len(baseKeys)+o.pending.Len())
	for _, key := range baseKeys {
		if _, deleted := o.deletes[key]; !deleted {
			keys = append(keys, key)
		}
	}
	keys = append(keys, o.PendingKeys()...)

	slices.Sort(keys)
	return slices.Compact(keys)
}

// PendingKeys returns the keys of all pending values in order.
func (o *Overlay) PendingKeys() []string {
	keys := make([]string, 0, o.pending.Len())
	o.pending.Walk(func(key string, _ interface{}) bool {
		keys = append(keys, key)
		return false
	})
	return keys
}

// DeletedKeys returns the sorted keys of all fields marked for deletion.
func (o *Overlay) DeletedKeys() []string {
	keys := make([]string, 0, len(o.deletes))
	for key := range o.deletes {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Changes returns the pending values. The values are not copied.
func (o *Overlay) Changes() map[string]interface{} {
	return o.pending.ToMap()
}

// Snapshot returns the current delta without copying the values.
func (o *Overlay) Snapshot() Delta {
	return Delta{
		Changes: o.Changes(),
		Deletes: o.DeletedKeys(),
	}
}

// Delta returns a deep copy of the current delta.
func (o *Overlay) Delta() (Delta, error) {
	changes, err := deepCopy(o.Changes())
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		Changes: changes,
		Deletes: o.DeletedKeys(),
	}, nil
}

// Clone returns a deep copy of the overlay.
func (o *Overlay) Clone() (*Overlay, error) {
	changes, err := deepCopy(o.Changes())
	if err != nil {
		return nil, err
	}

	cloned := New()
	for key, value := range changes {
		cloned.pending.Insert(key, value)
	}
	for key := range o.deletes {
		cloned.deletes[key] = struct{}{}
	}
	return cloned, nil
}

// Apply stages all changes and deletes of the delta, following the same rules
// as Set and Delete.
func (o *Overlay) Apply(d Delta, base record.Reader) (changed bool) {
	for _, key := range d.Deletes {
		if o.Delete(key) {
			changed = true
		}
	}
	for key, value := range d.Changes {
		baseValue, inBase := base.Get(key)
		if o.Set(key, value, baseValue, inBase) {
			changed = true
		}
	}
	return changed
}

func deepCopy(changes map[string]interface{}) (map[string]interface{}, error) {
	if len(changes) == 0 {
		return map[string]interface{}{}, nil
	}

	copied, err := copystructure.Copy(changes)
	if err != nil {
		return nil, fmt.Errorf("overlay: failed to copy pending values: %w", err)
	}
	return copied.(map[string]interface{}), nil
}
