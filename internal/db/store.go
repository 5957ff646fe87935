// Package db provides GORM-based persistence for wapi-dashboard: the
// api_tokens table and the per-user dashboard selection.
package db

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM database connection.
type Store struct {
	DB *gorm.DB
}

// Config holds database configuration.
type Config struct {
	LogLevel logger.LogLevel // GORM log level (logger.Silent for production)
}

// Open creates a Store on the given dialector and runs migrations.
// Production uses Postgres; tests pass a SQLite dialector.
func Open(dialector gorm.Dialector, cfg Config) (*Store, error) {
	level := cfg.LogLevel
	if level == 0 {
		level = logger.Silent
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(level),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db}, nil
}

// OpenPostgres opens the production Postgres store.
func OpenPostgres(dsn string, cfg Config) (*Store, error) {
	return Open(postgres.Open(dsn), cfg)
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
