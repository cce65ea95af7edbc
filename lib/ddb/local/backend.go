package local

import (
	"sort"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

// Backend is the storage engine below the local client. It stores opaque values
// under string keys, grouped by table.
//
// Implementations must be safe for concurrent use. Get and Range must hand out
// copies of the stored values.
type Backend interface {
	// Get returns the value stored under key in table.
	Get(table, key string) ([]byte, bool, error)

	// Set stores value under key in table, replacing any previous value.
	Set(table, key string, value []byte) error

	// Delete removes key from table. Deleting a missing key is not an error.
	Delete(table, key string) error

	// Range calls fn for every key of table starting with prefix, in ascending
	// key order, until fn returns false.
	Range(table, prefix string, fn func(key string, value []byte) bool) error

	// DropTable removes all keys of table.
	DropTable(table string) error

	// Close releases all resources. The backend must not be used afterwards.
	Close() error
}

// BackendType names a Backend implementation.
type BackendType string

const (
	BackendMemory BackendType = "memory" // in-memory, lost on exit
	BackendBadger BackendType = "badger" // persistent, badger key/value store
)

// --------------------------------------------------------------------------
// Memory backend
// --------------------------------------------------------------------------

type memoryBackend struct {
	tables *xsync.MapOf[string, *xsync.MapOf[string, []byte]]
}

// NewMemoryBackend returns a Backend that keeps all data in memory.
func NewMemoryBackend() Backend {
	return &memoryBackend{
		tables: xsync.NewMapOf[string, *xsync.MapOf[string, []byte]](),
	}
}

func (b *memoryBackend) table(name string) *xsync.MapOf[string, []byte] {
	t, _ := b.tables.LoadOrCompute(name, func() *xsync.MapOf[string, []byte] {
		return xsync.NewMapOf[string, []byte]()
	})
	return t
}

// --------------------------------------------------------------------------
// Interface Methods (docu see Backend)
// --------------------------------------------------------------------------

func (b *memoryBackend) Get(table, key string) ([]byte, bool, error) {
	t, ok := b.tables.Load(table)
	if !ok {
		return nil, false, nil
	}
	v, ok := t.Load(key)
	if !ok {
		return nil, false, nil
	}
	return cloneBytes(v), true, nil
}

func (b *memoryBackend) Set(table, key string, value []byte) error {
	b.table(table).Store(key, cloneBytes(value))
	return nil
}

func (b *memoryBackend) Delete(table, key string) error {
	if t, ok := b.tables.Load(table); ok {
		t.Delete(key)
	}
	return nil
}

func (b *memoryBackend) Range(table, prefix string, fn func(key string, value []byte) bool) error {
	t, ok := b.tables.Load(table)
	if !ok {
		return nil
	}

	// xsync iterates in hash order, collect and sort the keys first
	keys := make([]string, 0, t.Size())
	t.Range(func(key string, _ []byte) bool {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)

	for _, key := range keys {
		v, ok := t.Load(key)
		if !ok {
			continue // deleted concurrently
		}
		if !fn(key, cloneBytes(v)) {
			break
		}
	}
	return nil
}

func (b *memoryBackend) DropTable(table string) error {
	b.tables.Delete(table)
	return nil
}

func (b *memoryBackend) Close() error {
	b.tables.Clear()
	return nil
}

func cloneBytes(v []byte) []byte {
	if v == nil {
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}
