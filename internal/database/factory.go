package database

import (
	"fmt"
	"os"
	"path/filepath"

	"dcat-go/internal/config"
	"dcat-go/internal/dcat"
)

// NewDatabaseFromConfig opens the catalog described by cfg. A sqlite
// catalog lives at <data_dir>/<machineName>.db.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, machineName string) (dcat.Database, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if machineName == "" {
			return nil, fmt.Errorf("machine name required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return openSQLite(CatalogPath(cfg, machineName))
	case "memory":
		return openSQLite(":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// CatalogPath is where a sqlite catalog for machineName lives.
func CatalogPath(cfg config.DatabaseConfig, machineName string) string {
	return filepath.Join(cfg.DataDir, machineName+".db")
}

// openSQLite keeps a failed open from becoming a non-nil interface.
func openSQLite(path string) (dcat.Database, error) {
	store, err := NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	return store, nil
}
