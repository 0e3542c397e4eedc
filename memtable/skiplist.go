package memtable

import (
	"math/rand"

	"github.com/drag0dev/nebula/entry"
)

const maxSkipListHeight = 32

type skipNode struct {
	entry entry.Entry
	next  []*skipNode
}

// skipList is a probabilistic ordered map keyed by string, grounded on the
// teacher pack's own skip list (mrsladoje-HundDB/structures/skip_list),
// generalized from string values to full entry.Entry records.
type skipList struct {
	height int
	head   *skipNode
	count  int
}

func newSkipList() *skipList {
	return &skipList{
		height: 1,
		head:   &skipNode{next: make([]*skipNode, maxSkipListHeight)},
	}
}

func (s *skipList) roll() int {
	h := 1
	for h < maxSkipListHeight && rand.Int31n(2) == 1 {
		h++
	}
	return h
}

// find returns, for each level, the last node whose key is strictly less
// than key.
func (s *skipList) find(key string) []*skipNode {
	update := make([]*skipNode, maxSkipListHeight)
	cur := s.head
	for level := s.height - 1; level >= 0; level-- {
		for cur.next[level] != nil && cur.next[level].entry.Key < key {
			cur = cur.next[level]
		}
		update[level] = cur
	}
	return update
}

func (s *skipList) Get(key string) (entry.Entry, bool) {
	update := s.find(key)
	next := update[0].next[0]
	if next != nil && next.entry.Key == key {
		return next.entry, true
	}
	return entry.Entry{}, false
}

func (s *skipList) Put(e entry.Entry) {
	update := s.find(e.Key)
	if next := update[0].next[0]; next != nil && next.entry.Key == e.Key {
		next.entry = e
		return
	}

	level := s.roll()
	if level > s.height {
		for l := s.height; l < level; l++ {
			update[l] = s.head
		}
		s.height = level
	}

	node := &skipNode{entry: e, next: make([]*skipNode, level)}
	for l := 0; l < level; l++ {
		node.next[l] = update[l].next[l]
		update[l].next[l] = node
	}
	s.count++
}

func (s *skipList) Len() int { return s.count }

func (s *skipList) Entries() []entry.Entry {
	out := make([]entry.Entry, 0, s.count)
	for cur := s.head.next[0]; cur != nil; cur = cur.next[0] {
		out = append(out, cur.entry)
	}
	return out
}
