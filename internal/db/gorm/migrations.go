package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: sessions, wallets and the reward ledger
		{
			ID: "001_sessions_and_ledger",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Session{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&Wallet{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&RewardEntry{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("mining_sessions", "wallets", "reward_entries")
			},
		},
	})

	return m.Migrate()
}
