package transaction

import (
	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/log"
)

// Before registers a listener that runs before the operation of the channel.
func (t *Transaction) Before(ch events.Channel, l events.Listener) {
	t.register(events.Before, ch, l)
}

// On registers a listener that runs right after the operation of the channel.
func (t *Transaction) On(ch events.Channel, l events.Listener) {
	t.register(events.On, ch, l)
}

// After registers a listener that runs after the on listeners of the channel.
func (t *Transaction) After(ch events.Channel, l events.Listener) {
	t.register(events.After, ch, l)
}

// BeforeName is like Before, but takes the channel name. Unknown names are
// ignored.
func (t *Transaction) BeforeName(name string, l events.Listener) {
	t.registerName(events.Before, name, l)
}

// OnName is like On, but takes the channel name.
func (t *Transaction) OnName(name string, l events.Listener) {
	t.registerName(events.On, name, l)
}

// AfterName is like After, but takes the channel name.
func (t *Transaction) AfterName(name string, l events.Listener) {
	t.registerName(events.After, name, l)
}

func (t *Transaction) register(phase events.Phase, ch events.Channel, l events.Listener) {
	if err := t.enter(); err != nil {
		log.Warningf("transaction: %s: ignoring %s %s listener: %s", t.id, phase, ch, err)
		return
	}
	defer t.lock.Unlock()

	t.bus.Register(phase, ch, l)
}

func (t *Transaction) registerName(phase events.Phase, name string, l events.Listener) {
	if err := t.enter(); err != nil {
		log.Warningf("transaction: %s: ignoring %s %s listener: %s", t.id, phase, name, err)
		return
	}
	defer t.lock.Unlock()

	t.bus.RegisterName(phase, name, l)
}
