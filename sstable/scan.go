package sstable

import (
	"strings"

	"github.com/drag0dev/nebula/entry"
)

// hasPrefix reports whether key starts with prefix, comparing only the
// prefix-length bytes, per spec.md §4.4.
func hasPrefix(key, prefix string) bool { return strings.HasPrefix(key, prefix) }

// seekBlockOffset scans the summary forward and returns the index-offset of
// the last block whose first_key does not exceed lowerBound — the
// traversal entry point for both prefix and range scans (spec.md §4.4).
// It also reports whether the table's global range can possibly contain
// anything at or above lowerBound.
func seekBlockOffset(sr *SummaryReader, lowerBound string) (indexOffset uint64, ok bool, err error) {
	if sr.MaxKey != "" && lowerBound > sr.MaxKey {
		return 0, false, nil
	}
	sr.Rewind()
	found := false
	for {
		firstKey, _, blockIndexOffset, more, nerr := sr.NextBlock()
		if nerr != nil {
			return 0, false, nerr
		}
		if !more {
			break
		}
		if firstKey <= lowerBound {
			indexOffset = blockIndexOffset
			found = true
			continue
		}
		break
	}
	return indexOffset, found || sr.MinKey != "", nil
}

// PrefixScan collects every entry in t whose key has prefix, in key order.
// Tombstones are included; callers resolve them across tables.
func PrefixScan(t Table, prefix string) ([]entry.Entry, error) {
	summary, closeSummary, err := t.OpenSummary()
	if err != nil {
		return nil, err
	}
	defer closeSummary()

	indexOffset, ok, err := seekBlockOffset(summary, prefix)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	index, closeIndex, err := t.OpenIndex()
	if err != nil {
		return nil, err
	}
	defer closeIndex()
	index.MoveTo(int64(indexOffset))

	data, closeData, err := t.OpenData()
	if err != nil {
		return nil, err
	}
	defer closeData()

	var out []entry.Entry
	for {
		key, dataOffset, more, err := index.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if key < prefix {
			continue
		}
		if !hasPrefix(key, prefix) {
			break
		}
		e, err := data.ReadAt(int64(dataOffset))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// RangeScan collects every entry in t whose key falls in [lo, hi], in key
// order. Tombstones are included; callers resolve them across tables.
func RangeScan(t Table, lo, hi string) ([]entry.Entry, error) {
	summary, closeSummary, err := t.OpenSummary()
	if err != nil {
		return nil, err
	}
	defer closeSummary()

	indexOffset, ok, err := seekBlockOffset(summary, lo)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	index, closeIndex, err := t.OpenIndex()
	if err != nil {
		return nil, err
	}
	defer closeIndex()
	index.MoveTo(int64(indexOffset))

	data, closeData, err := t.OpenData()
	if err != nil {
		return nil, err
	}
	defer closeData()

	var out []entry.Entry
	for {
		key, dataOffset, more, err := index.Next()
		if err != nil {
			return nil, err
		}
		if !more {
			break
		}
		if key < lo {
			continue
		}
		if key > hi {
			break
		}
		e, err := data.ReadAt(int64(dataOffset))
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// AllEntries drains t's entire data section in key order. Used by
// compaction, which merges whole tables rather than querying them.
func AllEntries(t Table) ([]entry.Entry, error) {
	data, closeData, err := t.OpenData()
	if err != nil {
		return nil, err
	}
	defer closeData()

	var out []entry.Entry
	for {
		e, ok, err := data.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, e)
	}
	return out, nil
}
