package transaction

import (
	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/overlay"
)

// Get returns the value of a field as seen through the transaction.
// Calculated fields take precedence over pending changes, which take
// precedence over the base record. Missing fields return Undefined.
func (t *Transaction) Get(key string) (interface{}, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return nil, err
	}

	if err := t.dispatchPhase(events.Before, events.Get); err != nil {
		return nil, err
	}

	value, err := t.get(key)
	if err != nil {
		return nil, err
	}

	if err := t.dispatchRest(events.Get); err != nil {
		return nil, err
	}
	return value, nil
}

func (t *Transaction) get(key string) (interface{}, error) {
	if t.fields.Has(key) {
		var value interface{}
		err := t.callOut(func() (err error) {
			value, _, err = t.fields.Resolve(key, t.view())
			return err
		})
		if err != nil {
			return nil, err
		}
		return value, nil
	}

	value, ok := t.view().Get(key)
	if !ok {
		return Undefined, nil
	}
	return value, nil
}

// Set stages a new value for a field. Setting a field to the value the base
// record holds discards the pending change.
func (t *Transaction) Set(key string, value interface{}) error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}

	if err := t.dispatchPhase(events.Before, events.Set); err != nil {
		return err
	}

	baseValue, inBase := t.base.Get(key)
	t.overlay.Set(key, value, baseValue, inBase)

	return t.dispatchRest(events.Set)
}

// Delete marks a field for deletion. Set listeners are notified.
func (t *Transaction) Delete(key string) error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}

	if t.opts.SkipRedundantDeleteEvents {
		if _, state := t.overlay.Get(key); state == overlay.Deleted {
			return nil
		}
	}

	if err := t.dispatchPhase(events.Before, events.Set); err != nil {
		return err
	}

	t.overlay.Delete(key)

	return t.dispatchRest(events.Set)
}

// Keys returns the sorted names of all visible fields. Calculated fields are
// not included.
func (t *Transaction) Keys() ([]string, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return nil, err
	}
	return t.view().Keys(), nil
}

// Delta returns a copy of the pending changes.
func (t *Transaction) Delta() (overlay.Delta, error) {
	if err := t.enter(); err != nil {
		return overlay.Delta{}, err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return overlay.Delta{}, err
	}
	return t.overlay.Delta()
}
