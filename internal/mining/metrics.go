package mining

import "sync/atomic"

// Metrics tracks usage counters for the mining subsystem.
type Metrics struct {
	sessionsStarted   atomic.Int64
	startsRejected    atomic.Int64
	sessionsCompleted atomic.Int64
	sessionsStopped   atomic.Int64
	staleFires        atomic.Int64
	creditFailures    atomic.Int64
	notifyFailures    atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	SessionsStarted   int64 `json:"sessions_started"`
	StartsRejected    int64 `json:"starts_rejected"`
	SessionsCompleted int64 `json:"sessions_completed"`
	SessionsStopped   int64 `json:"sessions_stopped"`
	StaleFires        int64 `json:"stale_fires"`
	CreditFailures    int64 `json:"credit_failures"`
	NotifyFailures    int64 `json:"notify_failures"`
}

// Snapshot returns a copy of the current counter values.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		SessionsStarted:   m.sessionsStarted.Load(),
		StartsRejected:    m.startsRejected.Load(),
		SessionsCompleted: m.sessionsCompleted.Load(),
		SessionsStopped:   m.sessionsStopped.Load(),
		StaleFires:        m.staleFires.Load(),
		CreditFailures:    m.creditFailures.Load(),
		NotifyFailures:    m.notifyFailures.Load(),
	}
}
