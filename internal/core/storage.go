package core

import (
	"context"
	"fmt"

	"stageplan/internal/infra/persistence/memory"
	"stageplan/internal/infra/persistence/postgres"
	"stageplan/internal/infra/persistence/sqlite"
	"stageplan/pkg/domain"
)

// StorageDriver identifies a concrete snapshot storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// StorageConfig names the snapshot backend and its location.
type StorageConfig struct {
	Driver      StorageDriver
	SQLitePath  string // default sqlite.DefaultPath
	PostgresDSN string // default postgres.DefaultDSN
}

// OpenSnapshotStore selects a backend. Defaults to sqlite when the driver
// is unset.
func OpenSnapshotStore(ctx context.Context, cfg StorageConfig) (domain.SnapshotStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = StorageSQLite
	}
	switch driver {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		s, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case StoragePostgres:
		ps, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return ps, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
