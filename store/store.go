// Package store owns the in-memory collections served by the stub server and
// the backing sources they are first loaded from.
package store

import (
	"errors"
	"strings"

	"github.com/stevemurr/stub-server/record"
)

var (
	// ErrNotFound is returned when no record has the requested id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for collection names that cannot address a
	// backing resource.
	ErrInvalidName = errors.New("invalid collection name")
)

// Source is where collections come from. Sources are read once per
// collection; writes made through the server stay in memory.
type Source interface {
	// Load returns the records of a collection in stored order. A collection
	// with no backing resource is not an error and yields no records.
	Load(name string) ([]record.Record, error)

	// Names returns the names of all collections the source can load.
	Names() ([]string, error)
}

// ValidName reports whether name can be used as a collection name. Names
// must be non-empty and must not contain path separators or be "." or "..".
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}
