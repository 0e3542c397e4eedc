package lsm

import (
	"container/heap"

	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/sstable"
)

// heapEntry pairs a source iterator with its currently peeked entry,
// grounded on the teacher pack's CompactionHeap (intellect4all-storage-engines/lsm/compaction.go),
// generalized to operate over sstable.EntryIterator rather than an
// in-memory sorted run.
type heapEntry struct {
	it *sstable.EntryIterator
	e  entry.Entry
}

// mergeHeap is a min-heap over peekable iterators, ordered by key and,
// within equal keys, by descending timestamp (newest first) — spec.md
// §4.4's tie-break rule.
type mergeHeap struct {
	items []*heapEntry
}

func newMergeHeap() *mergeHeap { return &mergeHeap{} }

func (h *mergeHeap) Len() int { return len(h.items) }

func (h *mergeHeap) Less(i, j int) bool {
	a, b := h.items[i].e, h.items[j].e
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.Timestamp.After(b.Timestamp)
}

func (h *mergeHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *mergeHeap) Push(x any) { h.items = append(h.items, x.(*heapEntry)) }

func (h *mergeHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// push peeks it's first entry and, if present, inserts it into the heap.
// An exhausted iterator is closed immediately.
func (h *mergeHeap) push(it *sstable.EntryIterator) error {
	e, ok, err := it.Peek()
	if err != nil {
		return err
	}
	if !ok {
		return it.Close()
	}
	heap.Push(h, &heapEntry{it: it, e: e})
	return nil
}

func (h *mergeHeap) advance(it *sstable.EntryIterator) error {
	it.Advance()
	e, ok, err := it.Peek()
	if err != nil {
		return err
	}
	if !ok {
		return it.Close()
	}
	heap.Push(h, &heapEntry{it: it, e: e})
	return nil
}

func (h *mergeHeap) closeAll() {
	for _, item := range h.items {
		item.it.Close()
	}
}

// drain streams merged entries in ascending key order, buffering each
// group of entries sharing a key and resolving it per spec.md §4.4's
// resolution policy before handing it to yield.
func (h *mergeHeap) drain(terminal bool, yield func(entry.Entry) (bool, error)) error {
	for h.Len() > 0 {
		top := heap.Pop(h).(*heapEntry)
		group := []entry.Entry{top.e}
		if err := h.advance(top.it); err != nil {
			return err
		}

		minKey := top.e.Key
		for h.Len() > 0 && h.items[0].e.Key == minKey {
			next := heap.Pop(h).(*heapEntry)
			group = append(group, next.e)
			if err := h.advance(next.it); err != nil {
				return err
			}
		}

		resolved, ok := resolveGroup(group, terminal)
		if !ok {
			continue
		}
		cont, err := yield(resolved)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

// resolveGroup implements spec.md §4.4's resolution policy for a set of
// entries sharing one key at the source level: the newest entry always
// wins regardless of level; only a terminal merge additionally drops that
// winner when it is a tombstone, since nothing below the last level could
// ever need it to suppress a stale value again.
func resolveGroup(group []entry.Entry, terminal bool) (entry.Entry, bool) {
	best := group[0]
	for _, e := range group[1:] {
		if e.Timestamp.After(best.Timestamp) {
			best = e
		}
	}
	if terminal && best.Tombstone {
		return entry.Entry{}, false
	}
	return best, true
}
