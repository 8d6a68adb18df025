package models

import "time"

// RewardEntry records a single completed session's payout. The unique
// session ID is what makes crediting idempotent: a duplicate timer fire
// conflicts on it and never pays twice.
type RewardEntry struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// Wallet holds a user's cumulative token balance. Balances only ever
// grow from this subsystem's perspective.
type Wallet struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}
