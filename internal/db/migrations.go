package db

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: api_tokens table
		{
			ID: "001_api_tokens",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&APIToken{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("api_tokens")
			},
		},

		// Migration 002: ui_selections table
		{
			ID: "002_ui_selections",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&UISelection{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("ui_selections")
			},
		},
	})

	return m.Migrate()
}
