package memtable

import (
	"github.com/drag0dev/nebula/entry"
	"github.com/google/btree"
)

type treeItem struct {
	entry entry.Entry
}

func treeLess(a, b treeItem) bool { return a.entry.Key < b.entry.Key }

// tree is the balanced-tree memtable backing (the alternative to the skip
// list, per spec.md §4.5), built on google/btree's generic in-memory
// B-tree rather than a hand-rolled AVL/red-black tree.
type tree struct {
	t     *btree.BTreeG[treeItem]
	count int
}

func newTree() *tree {
	return &tree{t: btree.NewG(32, treeLess)}
}

func (t *tree) Put(e entry.Entry) {
	_, existed := t.t.ReplaceOrInsert(treeItem{entry: e})
	if !existed {
		t.count++
	}
}

func (t *tree) Get(key string) (entry.Entry, bool) {
	item, ok := t.t.Get(treeItem{entry: entry.Entry{Key: key}})
	if !ok {
		return entry.Entry{}, false
	}
	return item.entry, true
}

func (t *tree) Len() int { return t.count }

func (t *tree) Entries() []entry.Entry {
	out := make([]entry.Entry, 0, t.count)
	t.t.Ascend(func(item treeItem) bool {
		out = append(out, item.entry)
		return true
	})
	return out
}
