// Package deadline provides a one-shot, cancellable timer that fires at most
// once per arm.
package deadline

import (
	"sync"
	"time"

	"github.com/tevino/abool"
)

// Scheduler runs a function after a duration, unless it is cancelled or
// re-armed first.
type Scheduler struct {
	outer sync.Locker

	lock  sync.Mutex
	timer *time.Timer
	gen   uint64
	armed *abool.AtomicBool
}

// New returns a scheduler. If l is not nil, it is held while a fired function
// runs. Callers that also hold l while calling Arm or Cancel get the
// guarantee that a cancelled or replaced timer never runs its function, even
// if it already expired and is waiting for l.
func New(l sync.Locker) *Scheduler {
	return &Scheduler{
		outer: l,
		armed: abool.New(),
	}
}

// Arm starts a new countdown, replacing any armed one. A duration of zero or
// less does nothing and returns false.
func (s *Scheduler) Arm(d time.Duration, fn func()) bool {
	if d <= 0 || fn == nil {
		return false
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.stopLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		s.fire(gen, fn)
	})
	s.armed.Set()
	return true
}

// Cancel stops the armed countdown. It returns whether one was armed and is
// safe to call at any time.
func (s *Scheduler) Cancel() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.stopLocked()
}

// Armed returns whether a countdown is running.
func (s *Scheduler) Armed() bool {
	return s.armed.IsSet()
}

func (s *Scheduler) stopLocked() bool {
	if s.timer == nil {
		return false
	}

	s.timer.Stop()
	s.timer = nil
	// invalidate a firing that is already waiting for the outer lock
	s.gen++
	s.armed.UnSet()
	return true
}

func (s *Scheduler) fire(gen uint64, fn func()) {
	if s.outer != nil {
		s.outer.Lock()
		defer s.outer.Unlock()
	}

	s.lock.Lock()
	if gen != s.gen || s.timer == nil {
		s.lock.Unlock()
		return
	}
	s.timer = nil
	s.armed.UnSet()
	s.lock.Unlock()

	fn()
}
