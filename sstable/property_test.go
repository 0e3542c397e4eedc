package sstable

import (
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/drag0dev/nebula/entry"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// buildUniqueSortedEntries turns an arbitrary set of small ints into a
// deduplicated, sorted key set with distinct values, so every built table
// has a known, checkable content.
func buildUniqueSortedEntries(ids []int) []entry.Entry {
	seen := make(map[int]bool, len(ids))
	var uniq []int
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Ints(uniq)
	out := make([]entry.Entry, len(uniq))
	for i, id := range uniq {
		k := fmt.Sprintf("k%05d", id)
		out[i] = entry.New(k, []byte(fmt.Sprintf("v%d", id)))
	}
	return out
}

// TestIndexAndSummarySoundness checks that every key written into a table
// resolves, through the summary's block ranges and the index's per-block
// scan, to exactly the data offset it was written at — for arbitrary key
// sets and arbitrary summary granularities.
func TestIndexAndSummarySoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 30

	properties := gopter.NewProperties(parameters)

	properties.Property("every written key is found with its exact value, regardless of summary_nth", prop.ForAll(
		func(ids []int, summaryNth int) bool {
			entries := buildUniqueSortedEntries(ids)
			if len(entries) == 0 {
				return true
			}

			dir := t.TempDir()
			builder, err := NewMultiFileBuilder(filepath.Join(dir, fmt.Sprintf("t%d", len(entries))), Config{FPProb: 0.01, SummaryNth: summaryNth}, len(entries))
			if err != nil {
				return false
			}
			for _, e := range entries {
				if err := builder.Add(e); err != nil {
					return false
				}
			}
			tableDir, err := builder.Finish()
			if err != nil {
				return false
			}
			tbl, err := OpenTable(tableDir)
			if err != nil {
				return false
			}

			for _, e := range entries {
				got, res, err := tbl.Get(e.Key)
				if err != nil || res != LookupHit {
					return false
				}
				if string(got.Value) != string(e.Value) {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(12, gen.IntRange(0, 999)),
		gen.IntRange(1, 5),
	))

	properties.TestingRun(t)
}
