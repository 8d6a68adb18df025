// Package models contains domain models for minebot.
package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle state of a mining session.
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

// MiningSession is a timed per-user commitment that matures into a fixed
// token reward once its duration elapses. At most one session per user is
// running at any time; stores enforce that with atomic check-and-insert.
type MiningSession struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	ChannelID string        `json:"channel_id"`
	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	MaturesAt time.Time     `json:"matures_at"`
}

// NewMiningSession builds a RUNNING session starting at startedAt.
// The generated ID keys the ledger's at-most-once crediting.
func NewMiningSession(userID, channelID string, startedAt time.Time, duration time.Duration) *MiningSession {
	return &MiningSession{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChannelID: channelID,
		Status:    SessionStatusRunning,
		StartedAt: startedAt,
		MaturesAt: startedAt.Add(duration),
	}
}

// Remaining reports how long the session still has to run at the given
// instant. Matured sessions return zero, never a negative duration.
func (s *MiningSession) Remaining(now time.Time) time.Duration {
	if !now.Before(s.MaturesAt) {
		return 0
	}
	return s.MaturesAt.Sub(now)
}
