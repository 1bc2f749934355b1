package events

import (
	"errors"
	"fmt"
)

// ErrListenerPanic is wrapped into the ListenerError of a panicking listener.
var ErrListenerPanic = errors.New("listener panicked")

// ListenerError describes a failed listener.
type ListenerError struct {
	Channel Channel
	Phase   Phase
	Index   int
	Err     error
}

func (le *ListenerError) Error() string {
	return fmt.Sprintf("%s %s listener #%d failed: %s", le.Phase, le.Channel, le.Index, le.Err)
}

func (le *ListenerError) Unwrap() error {
	return le.Err
}
