package transaction

import (
	"fmt"

	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/formats/dsd"
	"github.com/safing/deltatx/overlay"
)

// ExportDelta serializes the pending changes. AUTO uses the configured delta
// format. The result is compressed if the options ask for it.
func (t *Transaction) ExportDelta(format dsd.SerializationFormat) ([]byte, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return nil, err
	}

	if format == dsd.AUTO {
		configured, ok := t.opts.Format()
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, t.opts.DeltaFormat)
		}
		format = configured
	}
	if _, ok := format.ValidateSerializationFormat(); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFormat, format)
	}

	d, err := t.overlay.Delta()
	if err != nil {
		return nil, err
	}
	if t.opts.CompressDelta {
		return dsd.DumpAndCompress(d, format, dsd.GZIP)
	}
	return dsd.Dump(d, format)
}

// ImportDelta stages the changes of a serialized delta, compressed or not, as
// if each of them was set or deleted. Set listeners are notified once.
func (t *Transaction) ImportDelta(data []byte) error {
	var d overlay.Delta
	if _, err := dsd.LoadAny(data, &d); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, err)
	}

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

	t.overlay.Apply(d, t.base)

	return t.dispatchRest(events.Set)
}
