package store

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/stevemurr/stub-server/query"
	"github.com/stevemurr/stub-server/record"
)

// Option configures Collections.
type Option func(*Collections)

// WithStrictLoad makes Get return load failures instead of serving the
// collection as empty. Missing resources are still empty collections.
func WithStrictLoad() Option {
	return func(c *Collections) { c.strict = true }
}

// WithLoadHook registers fn to be called after each collection is loaded.
func WithLoadHook(fn func(name string, records int, err error)) Option {
	return func(c *Collections) { c.onLoad = fn }
}

// Collections caches every collection the server has touched. A collection
// is loaded from the Source on first use and then lives in memory for the
// life of the process; changes are never written back.
type Collections struct {
	source Source
	strict bool
	onLoad func(name string, records int, err error)

	mu      sync.Mutex
	entries map[string]*entry
}

// entry loads one collection at most once. Loads of different collections
// run independently.
type entry struct {
	once sync.Once
	coll *Collection
	err  error
}

func NewCollections(source Source, opts ...Option) *Collections {
	c := &Collections{
		source:  source,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the collection called name, loading it on first use. Every
// call for the same name returns the same *Collection.
//
// A missing, unreadable or malformed resource yields an empty collection and
// a logged warning, unless WithStrictLoad was given.
func (c *Collections) Get(name string) (*Collection, error) {
	if !ValidName(name) {
		return nil, errors.Wrapf(ErrInvalidName, "%q", name)
	}
	c.mu.Lock()
	e, ok := c.entries[name]
	if !ok {
		e = &entry{}
		c.entries[name] = e
	}
	c.mu.Unlock()

	e.once.Do(func() { e.coll, e.err = c.load(name) })
	if e.err != nil {
		// Forget the failure so the next request reads the resource again.
		c.mu.Lock()
		if c.entries[name] == e {
			delete(c.entries, name)
		}
		c.mu.Unlock()
		return nil, e.err
	}
	return e.coll, nil
}

func (c *Collections) load(name string) (*Collection, error) {
	recs, err := c.source.Load(name)
	if c.onLoad != nil {
		c.onLoad(name, len(recs), err)
	}
	if err != nil {
		if c.strict {
			return nil, errors.Wrapf(err, "load collection %q", name)
		}
		slog.Warn("collection load failed, serving empty", "collection", name, "error", err)
		recs = nil
	} else {
		slog.Debug("collection loaded", "collection", name, "records", len(recs))
	}
	if recs == nil {
		recs = []record.Record{}
	}
	return &Collection{name: name, records: recs}, nil
}

// Names returns every collection in memory or available from the source.
func (c *Collections) Names() ([]string, error) {
	names, err := c.source.Names()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		seen[n] = true
	}
	c.mu.Lock()
	for n := range c.entries {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	c.mu.Unlock()
	sort.Strings(names)
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Collection is one named, ordered list of records. All methods hold the
// collection's lock for the duration of a single operation.
type Collection struct {
	name string

	mu      sync.RWMutex
	records []record.Record
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// Snapshot returns a copy of the records in order.
func (c *Collection) Snapshot() []record.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]record.Record(nil), c.records...)
}

// Query runs query.Execute against the collection.
func (c *Collection) Query(params query.Params) (query.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return query.Execute(c.records, params)
}

// Find returns the first record with id.
func (c *Collection) Find(id int64) (record.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i := IndexOf(c.records, id)
	if i < 0 {
		return record.Record{}, ErrNotFound
	}
	return c.records[i], nil
}

// Create stores body under the next free id and returns it.
func (c *Collection) Create(body record.Record) record.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var saved record.Record
	c.records, saved = Create(c.records, body)
	return saved
}

// Update replaces the record with id by body.
func (c *Collection) Update(id int64, body record.Record) (record.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Update(c.records, id, body)
}

// Delete removes every record with id and returns how many were removed.
func (c *Collection) Delete(id int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n int
	c.records, n = Delete(c.records, id)
	return n
}
