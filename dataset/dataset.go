// Package dataset runs one transaction per record of a list and keeps a log
// of what happened to them.
package dataset

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/safing/deltatx/config"
	"github.com/safing/deltatx/deadline"
	"github.com/safing/deltatx/events"
	"github.com/safing/deltatx/log"
	"github.com/safing/deltatx/overlay"
	"github.com/safing/deltatx/record"
	"github.com/safing/deltatx/transaction"
)

// Log entry IDs that do not refer to an item.
const (
	StartID   = -1
	TimeoutID = -2
)

// Operations logged for the dataset itself.
const (
	OpStart   = "start"
	OpTimeout = "timeout"
)

// ErrUnknownItem is returned for item IDs outside of the dataset.
var ErrUnknownItem = errors.New("dataset: unknown item")

var loggedChannels = []events.Channel{events.Set, events.Commit, events.Rollback}

// Entry is an operation log entry.
type Entry struct {
	ID        int
	Time      time.Time
	Operation string
	Delta     overlay.Delta
}

// Dataset is a transaction over a list of records. Every item is guarded by
// its own transaction; the dataset holds no lock while resolving them, so
// callbacks may call back into the dataset.
type Dataset struct {
	items    []*transaction.Transaction
	deadline *deadline.Scheduler

	logLock sync.Mutex
	log     []Entry
}

// Start starts a transaction for every record. The options are used for all
// of them.
func Start(records []record.Record, opts ...*config.Options) *Dataset {
	ds := &Dataset{
		items: make([]*transaction.Transaction, 0, len(records)),
	}
	ds.deadline = deadline.New(nil)
	ds.append(StartID, OpStart, overlay.Delta{})

	for id, r := range records {
		_, tx := transaction.Start(r, nil, opts...)
		for _, ch := range loggedChannels {
			id, operation := id, ch.String()
			tx.On(ch, func(ev *events.Event) error {
				ds.append(id, operation, ev.View.Delta())
				return nil
			})
		}
		ds.items = append(ds.items, tx)
	}

	log.Debugf("dataset: started with %d items", len(ds.items))
	return ds
}

func (ds *Dataset) append(id int, operation string, d overlay.Delta) {
	ds.logLock.Lock()
	defer ds.logLock.Unlock()

	ds.log = append(ds.log, Entry{
		ID:        id,
		Time:      time.Now(),
		Operation: operation,
		Delta:     d,
	})
}

// Len returns the number of items.
func (ds *Dataset) Len() int {
	return len(ds.items)
}

// Item returns the view of an item.
func (ds *Dataset) Item(id int) (transaction.View, error) {
	tx, err := ds.Transaction(id)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// Transaction returns the transaction of an item.
func (ds *Dataset) Transaction(id int) (*transaction.Transaction, error) {
	if id < 0 || id >= len(ds.items) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	return ds.items[id], nil
}

// Log returns a copy of the operation log.
func (ds *Dataset) Log() []Entry {
	ds.logLock.Lock()
	defer ds.logLock.Unlock()

	copied := make([]Entry, len(ds.log))
	copy(copied, ds.log)
	return copied
}

// Commit commits all items. Failing items do not stop the others, all
// errors are returned together.
func (ds *Dataset) Commit() error {
	var result *multierror.Error
	for id, tx := range ds.items {
		if err := tx.Commit(); err != nil {
			result = multierror.Append(result, fmt.Errorf("item %d: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

// Rollback rolls back a single item. Unknown IDs are ignored.
func (ds *Dataset) Rollback(id int) error {
	if id < 0 || id >= len(ds.items) {
		return nil
	}
	return ds.items[id].Rollback()
}

// RollbackAll rolls back all items.
func (ds *Dataset) RollbackAll() error {
	var result *multierror.Error
	for id, tx := range ds.items {
		if err := tx.Rollback(); err != nil {
			result = multierror.Append(result, fmt.Errorf("item %d: %w", id, err))
		}
	}
	return result.ErrorOrNil()
}

// Timeout arms the deadline of the dataset, replacing an armed one. When it
// expires, the timeout is logged and all items are committed or rolled back,
// then onExpire is called. A duration of zero or less does nothing.
func (ds *Dataset) Timeout(d time.Duration, commit bool, onExpire func()) {
	ds.deadline.Arm(d, func() {
		ds.expire(commit, onExpire)
	})
}

func (ds *Dataset) expire(commit bool, onExpire func()) {
	ds.append(TimeoutID, OpTimeout, overlay.Delta{})

	var err error
	if commit {
		err = ds.Commit()
	} else {
		err = ds.RollbackAll()
	}
	if err != nil {
		log.Errorf("dataset: failed to resolve on expiry: %s", err)
	}

	if onExpire != nil {
		onExpire()
	}
}

// CancelTimeout cancels the armed deadline and returns whether one was armed.
func (ds *Dataset) CancelTimeout() bool {
	return ds.deadline.Cancel()
}
