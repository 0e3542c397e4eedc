package lsm

import (
	"fmt"
	"testing"

	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/sstable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allEntriesOf(ref *tableRef) ([]entry.Entry, error) {
	return sstable.AllEntries(ref.table)
}

// TestScenarioS1CompactionCascade mirrors the concrete walkthrough: with
// size_threshold=3 and three level-0 flushes of two records each, level 0
// must compact into a single level-1 table carrying all six records.
func TestScenarioS1CompactionCascade(t *testing.T) {
	forEachLSMLayout(t, func(t *testing.T, singleFile bool) {
		l := newTestLSM(t, singleFile, 3)
		insertBatch(t, l, []entry.Entry{entry.New("a", []byte("1")), entry.New("b", []byte("2"))})
		insertBatch(t, l, []entry.Entry{entry.New("c", []byte("3")), entry.New("d", []byte("4"))})
		insertBatch(t, l, []entry.Entry{entry.New("e", []byte("5")), entry.New("f", []byte("6"))})

		assert.Empty(t, l.levels[0])
		require.Len(t, l.levels[1], 1)

		for _, want := range []struct {
			key, value string
		}{
			{"a", "1"}, {"b", "2"}, {"c", "3"}, {"d", "4"}, {"e", "5"}, {"f", "6"},
		} {
			e, ok, err := l.Get(want.key)
			require.NoError(t, err)
			require.True(t, ok, "key %q must be reachable regardless of its position within its summary block", want.key)
			assert.Equal(t, []byte(want.value), e.Value)
		}
	})
}

// TestScenarioS2SortedBulkLoad inserts a large sorted key range across many
// flushes and checks a present and an absent key resolve correctly.
func TestScenarioS2SortedBulkLoad(t *testing.T) {
	forEachLSMLayout(t, func(t *testing.T, singleFile bool) {
		dir := t.TempDir()
		l, err := Open(Config{
			DataDir: dir, FPProb: 0.1, SummaryNth: 10,
			SizeThreshold: 3, NumberOfLevels: 4, SingleFile: singleFile,
		})
		require.NoError(t, err)

		const batchSize = 50
		var batch []entry.Entry
		for i := 0; i < 1000; i++ {
			k := fmt.Sprintf("%d", i)
			batch = append(batch, entry.New(k, []byte(k)))
			if len(batch) == batchSize {
				tmp := buildFlushTable(t, dir, singleFile, batch)
				require.NoError(t, l.Insert(tmp))
				batch = nil
			}
		}
		if len(batch) > 0 {
			tmp := buildFlushTable(t, dir, singleFile, batch)
			require.NoError(t, l.Insert(tmp))
		}

		for i := 0; i < 1000; i++ {
			k := fmt.Sprintf("%d", i)
			e, ok, err := l.Get(k)
			require.NoError(t, err)
			require.True(t, ok, "key %q must be reachable regardless of its position within its summary block", k)
			assert.Equal(t, k, string(e.Value))
		}

		_, ok, err := l.Get("1347")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

// TestScenarioS3BulkLoadThenRangeTombstoning repeats the S2 bulk load, then
// tombstones a sub-range of keys and triggers compaction, checking a
// tombstoned key resolves absent while a neighboring untouched key survives.
func TestScenarioS3BulkLoadThenRangeTombstoning(t *testing.T) {
	forEachLSMLayout(t, func(t *testing.T, singleFile bool) {
		dir := t.TempDir()
		l, err := Open(Config{
			DataDir: dir, FPProb: 0.1, SummaryNth: 10,
			SizeThreshold: 3, NumberOfLevels: 4, SingleFile: singleFile,
		})
		require.NoError(t, err)

		const batchSize = 50
		var batch []entry.Entry
		for i := 0; i < 1000; i++ {
			k := fmt.Sprintf("%d", i)
			batch = append(batch, entry.New(k, []byte(k)))
			if len(batch) == batchSize {
				require.NoError(t, l.Insert(buildFlushTable(t, dir, singleFile, batch)))
				batch = nil
			}
		}
		if len(batch) > 0 {
			require.NoError(t, l.Insert(buildFlushTable(t, dir, singleFile, batch)))
		}

		var tomb []entry.Entry
		for i := 501; i < 600; i++ {
			tomb = append(tomb, entry.NewTombstone(fmt.Sprintf("%d", i)))
			if len(tomb) == batchSize {
				require.NoError(t, l.Insert(buildFlushTable(t, dir, singleFile, tomb)))
				tomb = nil
			}
		}
		if len(tomb) > 0 {
			require.NoError(t, l.Insert(buildFlushTable(t, dir, singleFile, tomb)))
		}

		_, ok, err := l.Get("550")
		require.NoError(t, err)
		assert.False(t, ok, "a tombstoned key in the compacted range must resolve absent")

		e, ok, err := l.Get("499")
		require.NoError(t, err)
		require.True(t, ok, "a key outside the tombstoned range must still be present")
		assert.Equal(t, "499", string(e.Value))
	})
}

// TestScenarioS4TombstoneElisionAtBottomLevel pushes a tombstone down to the
// terminal level and checks it was elided, not just shadowed.
func TestScenarioS4TombstoneElisionAtBottomLevel(t *testing.T) {
	forEachLSMLayout(t, func(t *testing.T, singleFile bool) {
		l := newTestLSM(t, singleFile, 2) // 3 levels: 0, 1 (terminal=2)
		insertBatch(t, l, []entry.Entry{entry.NewTombstone("ghost")})
		insertBatch(t, l, []entry.Entry{entry.New("filler1", []byte("x"))}) // -> merges level0 into level1
		insertBatch(t, l, []entry.Entry{entry.New("filler2", []byte("y"))})
		insertBatch(t, l, []entry.Entry{entry.New("filler3", []byte("z"))}) // -> merges level1 into level2 (terminal)

		_, ok, err := l.Get("ghost")
		require.NoError(t, err)
		assert.False(t, ok)

		// the terminal-level table itself must no longer carry the tombstone
		require.Len(t, l.levels[2], 1)
		all, err := allEntriesOf(l.levels[2][0])
		require.NoError(t, err)
		for _, e := range all {
			assert.NotEqual(t, "ghost", e.Key)
		}
	})
}
