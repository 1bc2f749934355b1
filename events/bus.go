package events

import (
	"fmt"

	"github.com/safing/deltatx/overlay"
	"github.com/safing/deltatx/record"
)

// Source gives listeners read access to the state of a transaction at the
// time of the dispatch.
type Source interface {
	record.Reader

	// Delta returns the pending changes without copying the values.
	Delta() overlay.Delta
}

// Event is passed to listeners.
type Event struct {
	Channel     Channel
	Phase       Phase
	Transaction string

	// View is only valid during the listener call.
	View Source
}

// Listener is called when an event is dispatched. A returned error aborts the
// dispatch and is returned to the caller of the operation.
type Listener func(ev *Event) error

// Notify wraps a function that does not care about the event.
func Notify(fn func()) Listener {
	return func(*Event) error {
		fn()
		return nil
	}
}

// Bus holds the listeners of one transaction. It is not safe for concurrent
// use, the owner serializes access.
type Bus struct {
	id        string
	listeners [numPhases][numChannels][]Listener
}

// NewBus returns an empty bus for the transaction with the given ID.
func NewBus(id string) *Bus {
	return &Bus{
		id: id,
	}
}

// Register appends a listener. Unknown phases or channels and nil listeners
// are ignored.
func (b *Bus) Register(phase Phase, ch Channel, l Listener) {
	if !phase.Valid() || !ch.Valid() || l == nil {
		return
	}
	b.listeners[phase][ch] = append(b.listeners[phase][ch], l)
}

// RegisterName appends a listener to the channel with the given name.
// Unknown names are ignored.
func (b *Bus) RegisterName(phase Phase, name string, l Listener) {
	ch, ok := ParseChannel(name)
	if !ok {
		return
	}
	b.Register(phase, ch, l)
}

// Len returns the number of listeners of a phase of a channel.
func (b *Bus) Len(phase Phase, ch Channel) int {
	if !phase.Valid() || !ch.Valid() {
		return 0
	}
	return len(b.listeners[phase][ch])
}

// Reset removes all listeners.
func (b *Bus) Reset() {
	b.listeners = [numPhases][numChannels][]Listener{}
}

// Dispatch calls all before, on and after listeners of the channel.
func (b *Bus) Dispatch(ch Channel, view Source) error {
	if err := b.DispatchPhase(Before, ch, view); err != nil {
		return err
	}
	return b.DispatchRest(ch, view)
}

// DispatchRest calls all on and after listeners of the channel.
func (b *Bus) DispatchRest(ch Channel, view Source) error {
	if err := b.DispatchPhase(On, ch, view); err != nil {
		return err
	}
	return b.DispatchPhase(After, ch, view)
}

// DispatchPhase calls the listeners of one phase of the channel in
// registration order. The first failing listener stops the dispatch.
func (b *Bus) DispatchPhase(phase Phase, ch Channel, view Source) error {
	if !phase.Valid() || !ch.Valid() {
		return nil
	}

	for i, l := range b.listeners[phase][ch] {
		ev := &Event{
			Channel:     ch,
			Phase:       phase,
			Transaction: b.id,
			View:        view,
		}
		if err := Call(l, ev); err != nil {
			return &ListenerError{
				Channel: ch,
				Phase:   phase,
				Index:   i,
				Err:     err,
			}
		}
	}
	return nil
}

// Call runs a single listener and turns a panic into an error wrapping
// ErrListenerPanic.
func Call(l Listener, ev *Event) (err error) {
	defer func() {
		// recover from panic
		if panicVal := recover(); panicVal != nil {
			err = fmt.Errorf("%w: %v", ErrListenerPanic, panicVal)
		}
	}()

	return l(ev)
}
