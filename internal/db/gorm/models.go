package gorm

import "time"

// GORM models. user_id is the session table's primary key, so the
// database itself enforces the one-running-session-per-user invariant.

// Session is a running mining session row.
type Session struct {
	UserID    string    `gorm:"primaryKey"`
	SessionID string    `gorm:"uniqueIndex;not null"`
	ChannelID string    `gorm:"not null"`
	Status    string    `gorm:"type:text;check:status IN ('running');default:'running'"`
	StartedAt time.Time `gorm:"not null"`
	MaturesAt time.Time `gorm:"index;not null"`
}

func (Session) TableName() string { return "mining_sessions" }

// Wallet holds a user's cumulative token balance.
type Wallet struct {
	UserID  string `gorm:"primaryKey"`
	Balance int64  `gorm:"not null;default:0"`
}

func (Wallet) TableName() string { return "wallets" }

// RewardEntry records one session's payout. The unique session_id index
// is the idempotency key for crediting.
type RewardEntry struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	SessionID string    `gorm:"uniqueIndex;not null"`
	UserID    string    `gorm:"index;not null"`
	Amount    int64     `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (RewardEntry) TableName() string { return "reward_entries" }
