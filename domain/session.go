package domain

import (
	"encoding/json"
	"time"
)

// SessionState is the explicit lifecycle of one real-time session.
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateConnected
	StateJoining
	StateJoined
	StateInteracting
	StateDisconnecting
	StateTerminated
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateJoining:
		return "Joining"
	case StateJoined:
		return "Joined"
	case StateInteracting:
		return "Interacting"
	case StateDisconnecting:
		return "Disconnecting"
	case StateTerminated:
		return "Terminated"
	}
	return "Unknown"
}

// MessageKind discriminates the two inbound event types we record.
type MessageKind string

const (
	KindSystem MessageKind = "system"
	KindChat   MessageKind = "chat"
)

// ReceivedMessage is one inbound event observed during the window.
// The payload is kept verbatim, the harness never interprets it.
type ReceivedMessage struct {
	Kind       MessageKind
	Payload    json.RawMessage
	ObservedAt time.Time
}

// SessionResult is the terminal outcome of one driver. It has a single
// writer (its driver) and becomes read-only once handed to the coordinator.
type SessionResult struct {
	User             string
	Connected        bool
	JoinAcknowledged bool
	Messages         []ReceivedMessage
	Err              error
	Cancelled        bool
	Duration         time.Duration
}

// Observed counts the recorded messages of one kind.
func (r SessionResult) Observed(kind MessageKind) int {
	n := 0
	for _, m := range r.Messages {
		if m.Kind == kind {
			n++
		}
	}
	return n
}

// Failed reports whether the session counts against the failure
// threshold. A cancelled partial result is noteworthy, not a failure.
func (r SessionResult) Failed() bool {
	return r.Err != nil && !r.Cancelled
}
