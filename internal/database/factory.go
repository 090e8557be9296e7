package database

import (
	"fmt"
	"path/filepath"

	"doiver/internal/config"
)

// NewStoreFromConfig creates a SQLiteStore based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		dbPath := filepath.Join(cfg.DataDir, "doiver.db")
		return NewSQLiteStore(dbPath)
	case "memory":
		store, err := NewSQLiteStore(":memory:")
		if err != nil {
			return nil, err
		}
		// Every connection to :memory: is its own database, so the pool
		// must stay at a single connection.
		store.db.SetMaxOpenConns(1)
		// In-memory stores start empty every run; apply the schema directly.
		if _, err := store.db.Exec(Schema); err != nil {
			store.Close()
			return nil, fmt.Errorf("applying schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
