// Package observability tracks real-time progress of a run so the
// ambient workers can report it without touching session state.
package observability

import (
	"sync/atomic"
)

// Snapshot is a point-in-time view of the run's counters.
type Snapshot struct {
	SessionsActive   int64
	SessionsDone     int64
	SessionsFailed   int64
	MessagesObserved int64
}

// Monitor aggregates counters updated from many session goroutines.
// Atomic counters only: a load generator must not serialize its own
// sessions on a telemetry lock.
type Monitor struct {
	sessionsActive   atomic.Int64
	sessionsDone     atomic.Int64
	sessionsFailed   atomic.Int64
	messagesObserved atomic.Int64
}

func NewMonitor() *Monitor {
	return &Monitor{}
}

func (m *Monitor) SessionStarted() {
	m.sessionsActive.Add(1)
}

func (m *Monitor) SessionFinished(failed bool, observed int) {
	m.sessionsActive.Add(-1)
	m.sessionsDone.Add(1)
	if failed {
		m.sessionsFailed.Add(1)
	}
	m.messagesObserved.Add(int64(observed))
}

func (m *Monitor) GetLatest() Snapshot {
	return Snapshot{
		SessionsActive:   m.sessionsActive.Load(),
		SessionsDone:     m.sessionsDone.Load(),
		SessionsFailed:   m.sessionsFailed.Load(),
		MessagesObserved: m.messagesObserved.Load(),
	}
}
