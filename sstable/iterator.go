package sstable

import "github.com/drag0dev/nebula/entry"

// EntryIterator is a forward-only, peekable view over one table's data
// section in ascending key order — the unit the LSM container's k-way
// merge operates on (spec.md §4.4).
type EntryIterator struct {
	reader *DataReader
	close  func() error
	peeked *entry.Entry
	done   bool
}

// NewEntryIterator opens a fresh data reader over t.
func NewEntryIterator(t Table) (*EntryIterator, error) {
	reader, closeFn, err := t.OpenData()
	if err != nil {
		return nil, err
	}
	return &EntryIterator{reader: reader, close: closeFn}, nil
}

// Peek returns the next entry without consuming it.
func (it *EntryIterator) Peek() (entry.Entry, bool, error) {
	if it.done {
		return entry.Entry{}, false, nil
	}
	if it.peeked != nil {
		return *it.peeked, true, nil
	}
	e, ok, err := it.reader.Next()
	if err != nil {
		return entry.Entry{}, false, err
	}
	if !ok {
		it.done = true
		return entry.Entry{}, false, nil
	}
	it.peeked = &e
	return e, true, nil
}

// Advance consumes the entry Peek last returned.
func (it *EntryIterator) Advance() {
	it.peeked = nil
}

// Close releases the underlying file handle.
func (it *EntryIterator) Close() error {
	if it.close != nil {
		return it.close()
	}
	return nil
}
