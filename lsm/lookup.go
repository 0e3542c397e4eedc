package lsm

import (
	"sort"

	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/sstable"
)

// Get performs the point-lookup traversal of spec.md §4.4: levels in
// order, tables within a level newest-first, stopping at the first hit
// (a tombstone counts as a definitive "absent", not a continued search).
func (l *LSM) Get(key string) (entry.Entry, bool, error) {
	for _, lvl := range l.levels {
		for i := len(lvl) - 1; i >= 0; i-- {
			e, res, err := lvl[i].table.Get(key)
			if err != nil {
				return entry.Entry{}, false, err
			}
			switch res {
			case sstable.LookupHit:
				return e, true, nil
			case sstable.LookupTombstone:
				return entry.Entry{}, false, nil
			}
		}
	}
	return entry.Entry{}, false, nil
}

// List implements the prefix-scan operation surface: results from every
// table across every level are merged and de-duplicated by newest
// timestamp, tombstones suppressed from the final result.
func (l *LSM) List(prefix string) ([]entry.Entry, error) {
	return l.scan(func(t sstable.Table) ([]entry.Entry, error) {
		return sstable.PrefixScan(t, prefix)
	})
}

// RangeScan implements the range-scan operation surface over [lo, hi].
func (l *LSM) RangeScan(lo, hi string) ([]entry.Entry, error) {
	return l.scan(func(t sstable.Table) ([]entry.Entry, error) {
		return sstable.RangeScan(t, lo, hi)
	})
}

func (l *LSM) scan(fn func(sstable.Table) ([]entry.Entry, error)) ([]entry.Entry, error) {
	best := make(map[string]entry.Entry)
	for _, lvl := range l.levels {
		for _, ref := range lvl {
			hits, err := fn(ref.table)
			if err != nil {
				return nil, err
			}
			for _, e := range hits {
				if cur, ok := best[e.Key]; !ok || e.Timestamp.After(cur.Timestamp) {
					best[e.Key] = e
				}
			}
		}
	}

	out := make([]entry.Entry, 0, len(best))
	for _, e := range best {
		if e.Tombstone {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
