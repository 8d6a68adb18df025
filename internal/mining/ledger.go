package mining

import (
	"context"
	"sync"
)

// Ledger is the write path to the wallet balance store. The state
// machine calls Credit once per completed session; implementations key
// payouts by session ID so a duplicate call can never pay twice.
type Ledger interface {
	// Credit adds amount to the user's cumulative balance and returns
	// the new total. A repeat call for the same sessionID is a no-op
	// that returns the current total.
	Credit(ctx context.Context, sessionID, userID string, amount int64) (int64, error)
	// BalanceOf returns the user's cumulative balance, zero for
	// unknown users.
	BalanceOf(ctx context.Context, userID string) (int64, error)
}

// MemoryLedger accumulates balances in process memory, mirroring the
// durable ledger's at-most-once semantics per session ID. Used with the
// memory session backend and in tests.
type MemoryLedger struct {
	mu       sync.Mutex
	balances map[string]int64
	credited map[string]bool
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances: make(map[string]int64),
		credited: make(map[string]bool),
	}
}

// Credit adds amount to the user's balance unless sessionID was already
// credited.
func (l *MemoryLedger) Credit(_ context.Context, sessionID, userID string, amount int64) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.credited[sessionID] {
		l.credited[sessionID] = true
		l.balances[userID] += amount
	}
	return l.balances[userID], nil
}

// BalanceOf returns the user's cumulative balance.
func (l *MemoryLedger) BalanceOf(_ context.Context, userID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID], nil
}
