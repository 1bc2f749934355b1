package transaction

import (
	"fmt"
	"time"

	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/log"
	"github.com/safing/deltatx/metrics"
)

// Commit applies all pending changes to the base record in one step and
// clears them.
func (t *Transaction) Commit() error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}
	return t.commit(false)
}

func (t *Transaction) commit(expired bool) error {
	if err := t.dispatchPhase(events.Before, events.Commit); err != nil {
		return err
	}

	if !t.overlay.Empty() {
		snapshot := t.overlay.Snapshot()
		if err := t.base.Merge(snapshot.Changes, snapshot.Deletes); err != nil {
			return fmt.Errorf("transaction: failed to commit %s: %w", t.id, err)
		}
		log.Tracef("transaction: %s committed %d changes and %d deletes", t.id, len(snapshot.Changes), len(snapshot.Deletes))
	}
	t.overlay.Clear()
	t.settle(Committed, expired)
	metrics.Commits.Inc()
	defer t.setState(Open)

	return t.dispatchRest(events.Commit)
}

// Rollback discards all pending changes.
func (t *Transaction) Rollback() error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}
	return t.rollback(false)
}

func (t *Transaction) rollback(expired bool) error {
	if err := t.dispatchPhase(events.Before, events.Rollback); err != nil {
		return err
	}

	t.overlay.Clear()
	t.settle(RolledBack, expired)
	metrics.Rollbacks.Inc()
	log.Tracef("transaction: %s rolled back", t.id)
	defer t.setState(Open)

	return t.dispatchRest(events.Rollback)
}

func (t *Transaction) settle(s State, expired bool) {
	t.resolved(s)
	if !expired && t.opts.CancelTimeoutOnResolve {
		t.deadline.Cancel()
	}
}

// Clone returns a new transaction over the same base record with a copy of
// the pending changes, the same calculated fields and options. Listeners and
// the deadline are not carried over.
func (t *Transaction) Clone() (*Transaction, error) {
	if err := t.enter(); err != nil {
		return nil, err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return nil, err
	}

	cloned, err := t.overlay.Clone()
	if err != nil {
		return nil, fmt.Errorf("transaction: failed to clone %s: %w", t.id, err)
	}

	c := newTransaction(t.base, t.fields.Clone(), t.opts.Copy())
	c.overlay = cloned
	log.Tracef("transaction: %s cloned from %s", c.id, t.id)
	return c, nil
}

// Revoke disables the transaction for good. Every later operation fails with
// ErrAccessAfterRevoke. Pending changes are not applied and an armed
// deadline is cancelled.
func (t *Transaction) Revoke() error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}

	if err := t.dispatchPhase(events.Before, events.Revoke); err != nil {
		return err
	}

	t.deadline.Cancel()
	t.revoked.Set()
	t.setState(Revoked)
	metrics.Revokes.Inc()
	log.Tracef("transaction: %s revoked", t.id)

	return t.dispatchRest(events.Revoke)
}

// Timeout arms the deadline of the transaction, replacing an armed one. When
// it expires, the transaction is committed if commitOnExpiry is set and
// rolled back otherwise, then onExpire is called. A duration of zero or less
// does nothing.
//
// Errors during expiry have no caller to return to and are logged.
func (t *Transaction) Timeout(d time.Duration, commitOnExpiry bool, onExpire events.Listener) error {
	if err := t.enter(); err != nil {
		return err
	}
	defer t.lock.Unlock()

	if err := t.checkAccess(); err != nil {
		return err
	}

	t.arm(d, commitOnExpiry, onExpire)
	return nil
}

func (t *Transaction) arm(d time.Duration, commitOnExpiry bool, onExpire events.Listener) {
	if t.deadline.Arm(d, func() {
		t.expire(commitOnExpiry, onExpire)
	}) {
		log.Tracef("transaction: %s expires in %s", t.id, d)
	}
}

// expire runs with the transaction locked.
func (t *Transaction) expire(commitOnExpiry bool, onExpire events.Listener) {
	if t.revoked.IsSet() {
		return
	}
	metrics.Timeouts.Inc()

	if err := t.expireSteps(commitOnExpiry, onExpire); err != nil {
		log.Errorf("transaction: %s: failed to resolve on expiry: %s", t.id, err)
		return
	}
	log.Debugf("transaction: %s expired", t.id)
}

func (t *Transaction) expireSteps(commitOnExpiry bool, onExpire events.Listener) error {
	if err := t.dispatchPhase(events.Before, events.Timeout); err != nil {
		return err
	}

	var err error
	if commitOnExpiry {
		err = t.commit(true)
	} else {
		err = t.rollback(true)
	}
	if err != nil {
		return err
	}

	if onExpire != nil {
		err = t.callOut(func() error {
			return events.Call(onExpire, &events.Event{
				Channel:     events.Timeout,
				Phase:       events.On,
				Transaction: t.id,
				View:        t.view(),
			})
		})
		if err != nil {
			return t.counted(fmt.Errorf("expiry callback failed: %w", err))
		}
	}

	return t.dispatchRest(events.Timeout)
}

// CancelTimeout cancels the armed deadline and returns whether one was armed.
// An expiry that already started is not stopped.
func (t *Transaction) CancelTimeout() bool {
	return t.deadline.Cancel()
}

// TimeoutArmed returns whether a deadline is armed.
func (t *Transaction) TimeoutArmed() bool {
	return t.deadline.Armed()
}
