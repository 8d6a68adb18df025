package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the durable reward ledger. Credit writes the reward entry
// and the balance bump in one transaction, keyed by session ID, so a
// session can never pay out twice and a crash between the two writes
// cannot leave them disagreeing.
type Ledger struct {
	store *Store
}

// NewLedger creates a ledger over the shared connection.
func NewLedger(store *Store) *Ledger {
	return &Ledger{store: store}
}

// Credit adds amount to the user's balance and returns the new total.
// A repeat call for the same sessionID conflicts on the reward entry's
// unique index and returns the current total without paying again.
func (l *Ledger) Credit(ctx context.Context, sessionID, userID string, amount int64) (int64, error) {
	err := l.store.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&RewardEntry{
			SessionID: sessionID,
			UserID:    userID,
			Amount:    amount,
			CreatedAt: time.Now().UTC(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Already credited for this session
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"balance": gorm.Expr("balance + ?", amount),
			}),
		}).Create(&Wallet{UserID: userID, Balance: amount}).Error
	})
	if err != nil {
		return 0, fmt.Errorf("credit session %s: %w", sessionID, err)
	}

	return l.BalanceOf(ctx, userID)
}

// BalanceOf returns the user's cumulative balance, zero for unknown
// users.
func (l *Ledger) BalanceOf(ctx context.Context, userID string) (int64, error) {
	var wallet Wallet
	err := l.store.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load wallet: %w", err)
	}
	return wallet.Balance, nil
}
