package store

import (
	"fmt"
	"path/filepath"
)

// SqliteFile is the database file name used by the "sqlite" backend.
const SqliteFile = "stub.db"

// NewSource creates a Source based on the backend name.
//
// Supported backends:
//
//	"json"   - one JSON (or YAML) file per collection in dataDir (default)
//	"sqlite" - SQLite database at dataDir/stub.db
//	"memory" - empty in-memory source, every collection starts empty
func NewSource(backend, dataDir string) (Source, error) {
	switch backend {
	case "json", "":
		return NewDirSource(dataDir), nil
	case "sqlite":
		return NewSqliteSource(filepath.Join(dataDir, SqliteFile))
	case "memory":
		return NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
