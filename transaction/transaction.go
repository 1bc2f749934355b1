// Package transaction stages changes to a record and applies them on commit.
//
// A transaction reads through its pending changes to the base record and only
// writes to the base record when committed. Listeners can be registered for
// every operation, and a deadline can resolve the transaction automatically.
//
// All operations of a transaction are serialized. Listeners, calculated
// fields and expiry callbacks run while the transaction is locked. They get a
// read-only view of the transaction; operations called while they run fail
// with ErrReentrantCall. State, LastResolution, TimeoutArmed and
// CancelTimeout may be called at any time.
package transaction

import (
	"sync"
	"sync/atomic"

	"github.com/gofrs/uuid"
	"github.com/tevino/abool"

	"github.com/safing/deltatx/calc"
	"github.com/safing/deltatx/config"
	"github.com/safing/deltatx/deadline"
	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/log"
	"github.com/safing/deltatx/metrics"
	"github.com/safing/deltatx/overlay"
	"github.com/safing/deltatx/record"
)

// State is the lifecycle state of a transaction.
type State uint32

// States.
const (
	Open State = iota
	Committed
	RolledBack
	Revoked
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled back"
	case Revoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// Transaction wraps a base record and stages changes to it.
type Transaction struct {
	lock sync.Mutex

	id   string
	base record.Record
	opts *config.Options

	overlay  *overlay.Overlay
	bus      *events.Bus
	fields   *calc.Resolver
	deadline *deadline.Scheduler

	state          uint32
	lastResolution uint32
	revoked        *abool.AtomicBool
	busy           *abool.AtomicBool
}

// Start starts a transaction over base. The first given options are used,
// the defaults otherwise. If the options have a default timeout, the
// deadline is armed right away.
func Start(base record.Record, fields calc.Fields, opts ...*config.Options) (View, *Transaction) {
	var o *config.Options
	if len(opts) > 0 {
		o = opts[0]
	}

	t := newTransaction(base, calc.NewResolver(fields), o.Copy())
	t.overlay = overlay.New()
	log.Tracef("transaction: %s started", t.id)

	t.arm(t.opts.DefaultTimeout.Std(), t.opts.CommitOnExpiry, nil)

	return t, t
}

func newTransaction(base record.Record, fields *calc.Resolver, opts *config.Options) *Transaction {
	t := &Transaction{
		id:      uuid.Must(uuid.NewV4()).String(),
		base:    base,
		opts:    opts,
		fields:  fields,
		revoked: abool.New(),
		busy:    abool.New(),
	}
	t.bus = events.NewBus(t.id)
	t.deadline = deadline.New(&t.lock)

	metrics.TransactionsStarted.Inc()
	return t
}

// ID returns the unique ID of the transaction.
func (t *Transaction) ID() string {
	return t.id
}

// Base returns the wrapped base record.
func (t *Transaction) Base() record.Record {
	return t.base
}

// State returns the current state. Between operations it is either Open or
// Revoked. It may be called from listeners.
func (t *Transaction) State() State {
	return State(atomic.LoadUint32(&t.state))
}

// LastResolution returns Committed or RolledBack for the last resolution, or
// Open if the transaction was never resolved. It may be called from
// listeners.
func (t *Transaction) LastResolution() State {
	return State(atomic.LoadUint32(&t.lastResolution))
}

func (t *Transaction) setState(s State) {
	atomic.StoreUint32(&t.state, uint32(s))
}

func (t *Transaction) resolved(s State) {
	atomic.StoreUint32(&t.lastResolution, uint32(s))
	t.setState(s)
}

func (t *Transaction) view() effectiveView {
	return effectiveView{t: t}
}

// enter locks the transaction. It fails instead of blocking forever when
// called from a listener, calculated field or expiry callback.
func (t *Transaction) enter() error {
	if t.busy.IsSet() {
		return ErrReentrantCall
	}
	t.lock.Lock()
	return nil
}

// callOut runs caller supplied code. The transaction must be locked.
func (t *Transaction) callOut(fn func() error) error {
	t.busy.Set()
	defer t.busy.UnSet()

	return fn()
}

func (t *Transaction) checkAccess() error {
	if t.revoked.IsSet() {
		return ErrAccessAfterRevoke
	}
	return nil
}

func (t *Transaction) dispatchPhase(phase events.Phase, ch events.Channel) error {
	if t.bus.Len(phase, ch) == 0 {
		return nil
	}
	return t.counted(t.callOut(func() error {
		return t.bus.DispatchPhase(phase, ch, t.view())
	}))
}

func (t *Transaction) dispatchRest(ch events.Channel) error {
	if err := t.dispatchPhase(events.On, ch); err != nil {
		return err
	}
	return t.dispatchPhase(events.After, ch)
}

func (t *Transaction) counted(err error) error {
	if err != nil {
		metrics.ListenerFailures.Inc()
		log.Debugf("transaction: %s: %s", t.id, err)
	}
	return err
}
