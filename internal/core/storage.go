package core

import (
	"fmt"
	"os"

	"sweepcore/internal/infra/persistence/memory"
	"sweepcore/internal/infra/persistence/postgres"
	"sweepcore/internal/infra/persistence/sqlite"
	"sweepcore/pkg/domain"
)

// StorageDriver identifies a concrete result store implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenResultStore selects a result store backend using environment
// variables. Defaults to sqlite when unset.
//
//	SWEEPCORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	SWEEPCORE_SQLITE_PATH: path to sqlite file (default ./sweepcore.db)
//	SWEEPCORE_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenResultStore(runName string) (domain.ResultStore, error) {
	driver := os.Getenv("SWEEPCORE_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(runName), nil
	case StorageSQLite:
		path := os.Getenv("SWEEPCORE_SQLITE_PATH")
		return sqlite.NewStore(path, runName)
	case StoragePostgres:
		dsn := os.Getenv("SWEEPCORE_POSTGRES_DSN")
		return postgres.NewStore(dsn, runName)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
