package events

import "strings"

// Channel is a lifecycle event of a transaction.
type Channel uint8

// Channels.
const (
	Get Channel = iota + 1
	Set
	Commit
	Rollback
	Timeout
	Revoke

	numChannels = int(Revoke) + 1
)

// Channels returns all channels in order.
func Channels() []Channel {
	return []Channel{Get, Set, Commit, Rollback, Timeout, Revoke}
}

// Valid returns whether the channel is one of the known channels.
func (ch Channel) Valid() bool {
	return ch >= Get && ch <= Revoke
}

func (ch Channel) String() string {
	switch ch {
	case Get:
		return "get"
	case Set:
		return "set"
	case Commit:
		return "commit"
	case Rollback:
		return "rollback"
	case Timeout:
		return "timeout"
	case Revoke:
		return "revoke"
	default:
		return "unknown"
	}
}

// ParseChannel returns the channel with the given name.
func ParseChannel(name string) (Channel, bool) {
	for _, ch := range Channels() {
		if strings.EqualFold(ch.String(), name) {
			return ch, true
		}
	}
	return 0, false
}

// Phase is the point in time of a dispatch relative to the operation.
type Phase uint8

// Phases, dispatched in this order.
const (
	Before Phase = iota + 1
	On
	After

	numPhases = int(After) + 1
)

// Valid returns whether the phase is one of the known phases.
func (p Phase) Valid() bool {
	return p >= Before && p <= After
}

func (p Phase) String() string {
	switch p {
	case Before:
		return "before"
	case On:
		return "on"
	case After:
		return "after"
	default:
		return "unknown"
	}
}
