// Package memtable holds entries in key-sorted order ahead of their first
// flush to an SSTable (spec.md §4.5). The backing ordered container is
// pluggable: a balanced tree or a probabilistic skip list, both exposing
// the same CRUD-plus-enumeration contract.
package memtable

import "github.com/drag0dev/nebula/entry"

// Store is the ordered-container contract a memtable backing must satisfy.
// Capacity is counted in distinct keys, never bytes.
type Store interface {
	Put(e entry.Entry)
	Get(key string) (entry.Entry, bool)
	Len() int
	Entries() []entry.Entry // ascending key order
}

// Backing selects which ordered container a new Memtable uses.
type Backing int

const (
	BackingSkipList Backing = iota
	BackingTree
)

// Memtable is the write-absorbing front end of the LSM tree. Update and
// delete mutate entries in place; timestamps are assigned once at
// ingestion and never bumped on mutation (spec.md §3), since the memtable
// always holds the newest writes relative to any on-disk level.
type Memtable struct {
	store    Store
	capacity int
}

// New creates an empty memtable of the given capacity (distinct keys)
// backed by the requested ordered container.
func New(backing Backing, capacity int) *Memtable {
	var store Store
	switch backing {
	case BackingTree:
		store = newTree()
	default:
		store = newSkipList()
	}
	return &Memtable{store: store, capacity: capacity}
}

// Put inserts or replaces key's value.
func (m *Memtable) Put(key string, value []byte) {
	m.store.Put(m.keepTimestamp(entry.New(key, value)))
}

// Delete marks key as deleted (value <- nil).
func (m *Memtable) Delete(key string) {
	m.store.Put(m.keepTimestamp(entry.NewTombstone(key)))
}

// keepTimestamp carries over the ingestion timestamp of the entry already
// held for e.Key, so an in-place update or delete does not bump it.
func (m *Memtable) keepTimestamp(e entry.Entry) entry.Entry {
	if cur, ok := m.store.Get(e.Key); ok {
		e.Timestamp = cur.Timestamp
	}
	return e
}

// Get returns the live entry for key, including tombstones (the caller
// decides how to surface a tombstone; the memtable itself does not hide
// one, since callers above it need to distinguish "not present" from
// "deleted here").
func (m *Memtable) Get(key string) (entry.Entry, bool) {
	return m.store.Get(key)
}

// Len reports the number of distinct keys currently held.
func (m *Memtable) Len() int { return m.store.Len() }

// Full reports whether the memtable has reached its configured capacity.
func (m *Memtable) Full() bool { return m.store.Len() >= m.capacity }

// Entries returns every entry in ascending key order.
func (m *Memtable) Entries() []entry.Entry { return m.store.Entries() }

// PrefixScan returns entries whose key starts with prefix, tombstones
// included.
func (m *Memtable) PrefixScan(prefix string) []entry.Entry {
	var out []entry.Entry
	for _, e := range m.store.Entries() {
		if len(e.Key) < len(prefix) {
			continue
		}
		if e.Key[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

// RangeScan returns entries whose key falls within [lo, hi], tombstones
// included.
func (m *Memtable) RangeScan(lo, hi string) []entry.Entry {
	var out []entry.Entry
	for _, e := range m.store.Entries() {
		if e.Key < lo {
			continue
		}
		if e.Key > hi {
			break
		}
		out = append(out, e)
	}
	return out
}

// Reset clears the memtable after a successful flush, restoring it to an
// empty state ready for new writes.
func (m *Memtable) Reset(backing Backing) {
	switch backing {
	case BackingTree:
		m.store = newTree()
	default:
		m.store = newSkipList()
	}
}
