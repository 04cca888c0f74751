package store

import (
	"sort"
	"sync"

	"github.com/stevemurr/stub-server/record"
)

// MemorySource serves collections seeded in process. Useful for tests and
// for embedding the server. Safe for concurrent use.
type MemorySource struct {
	mu          sync.RWMutex
	collections map[string][]record.Record
}

func NewMemorySource() *MemorySource {
	return &MemorySource{collections: make(map[string][]record.Record)}
}

// Put sets the records a later Load of name returns.
func (m *MemorySource) Put(name string, recs []record.Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[name] = append([]record.Record(nil), recs...)
}

func (m *MemorySource) Load(name string) ([]record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	recs, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	return append([]record.Record(nil), recs...), nil
}

func (m *MemorySource) Names() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.collections))
	for name := range m.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
