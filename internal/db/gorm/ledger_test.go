package gorm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_Credit(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	ctx := context.Background()

	balance, err := ledger.Credit(ctx, "sess-1", "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	balance, err = ledger.Credit(ctx, "sess-2", "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
}

// TestLedger_IdempotentPerSession: a duplicate timer fire replays the
// same session ID and must not pay twice.
func TestLedger_IdempotentPerSession(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	ctx := context.Background()

	balance, err := ledger.Credit(ctx, "sess-1", "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	balance, err = ledger.Credit(ctx, "sess-1", "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	got, err := ledger.BalanceOf(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), got)
}

func TestLedger_BalanceOfUnknownUser(t *testing.T) {
	ledger := NewLedger(newTestStore(t))

	balance, err := ledger.BalanceOf(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestLedger_IndependentWallets(t *testing.T) {
	ledger := NewLedger(newTestStore(t))
	ctx := context.Background()

	_, err := ledger.Credit(ctx, "a1", "alice", 50)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, "b1", "bob", 25)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, "a2", "alice", 50)
	require.NoError(t, err)

	alice, err := ledger.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(100), alice)

	bob, err := ledger.BalanceOf(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(25), bob)
}

// TestLedger_EntriesRecorded: every payout leaves an audit row.
func TestLedger_EntriesRecorded(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedger(store)
	ctx := context.Background()

	_, err := ledger.Credit(ctx, "s1", "u1", 50)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, "s2", "u1", 50)
	require.NoError(t, err)
	_, err = ledger.Credit(ctx, "s2", "u1", 50) // duplicate
	require.NoError(t, err)

	var count int64
	require.NoError(t, store.DB.Model(&RewardEntry{}).Where("user_id = ?", "u1").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}
