package kvengine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, singleFile bool) *Engine {
	t.Helper()
	dir := t.TempDir()
	cfg := Default(dir)
	cfg.MemtableCapacity = 4
	cfg.SizeThreshold = 100
	cfg.SingleFileTables = singleFile
	e, err := Open(cfg, nil, nil)
	require.NoError(t, err)
	return e
}

func forEachEngineLayout(t *testing.T, fn func(t *testing.T, singleFile bool)) {
	t.Run("multifile", func(t *testing.T) { fn(t, false) })
	t.Run("singlefile", func(t *testing.T) { fn(t, true) })
}

func TestEnginePutGet(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		e := newTestEngine(t, singleFile)
		require.NoError(t, e.Put("k", []byte("v")))

		got, ok, err := e.Get("k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), got.Value)
	})
}

func TestEngineDeleteThenGetMiss(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		e := newTestEngine(t, singleFile)
		require.NoError(t, e.Put("k", []byte("v")))
		require.NoError(t, e.Delete("k"))

		_, ok, err := e.Get("k")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEngineFlushesOnMemtableFull(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		e := newTestEngine(t, singleFile) // capacity 4
		for i := 0; i < 10; i++ {
			require.NoError(t, e.Put(string(rune('a'+i)), []byte{byte(i)}))
		}
		assert.Greater(t, testutil.ToFloat64(e.metrics.Flushes), float64(0))
	})
}

// TestEngineFlushPurgesWALWithoutQuit checks that a size-triggered flush
// purges the WAL on its own, not only when Quit is called — otherwise
// segments accumulate forever and get re-replayed on every restart.
func TestEngineFlushPurgesWALWithoutQuit(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		dir := t.TempDir()
		cfg := Default(dir)
		cfg.MemtableCapacity = 4
		cfg.SizeThreshold = 100
		cfg.SingleFileTables = singleFile

		e, err := Open(cfg, nil, nil)
		require.NoError(t, err)
		for i := 0; i < 10; i++ {
			require.NoError(t, e.Put(string(rune('a'+i)), []byte{byte(i)}))
		}
		require.Greater(t, testutil.ToFloat64(e.metrics.Flushes), float64(0))

		walEntries, err := os.ReadDir(filepath.Join(dir, "WAL"))
		require.NoError(t, err)
		require.Len(t, walEntries, 1, "a completed flush must purge every prior WAL segment, leaving only the fresh current one")
	})
}

func TestEngineListAndRangeScan(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		e := newTestEngine(t, singleFile)
		require.NoError(t, e.Put("user:1", []byte("a")))
		require.NoError(t, e.Put("user:2", []byte("b")))
		require.NoError(t, e.Put("product:1", []byte("c")))

		hits, err := e.List("user:", nil)
		require.NoError(t, err)
		assert.Len(t, hits, 2)

		hits, err = e.RangeScan("product:1", "user:2", nil)
		require.NoError(t, err)
		assert.Len(t, hits, 3)
	})
}

func TestEngineRangeScanRejectsInvertedBounds(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		e := newTestEngine(t, singleFile)
		_, err := e.RangeScan("z", "a", nil)
		require.Error(t, err)
	})
}

func TestEngineRecoversFromWALAfterCrash(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		dir := t.TempDir()
		cfg := Default(dir)
		cfg.MemtableCapacity = 1000
		cfg.SingleFileTables = singleFile

		e, err := Open(cfg, nil, nil)
		require.NoError(t, err)
		require.NoError(t, e.Put("k", []byte("v")))
		// simulate a crash: no Quit call, WAL segment left on disk un-purged

		e2, err := Open(cfg, nil, nil)
		require.NoError(t, err)
		got, ok, err := e2.Get("k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), got.Value)
	})
}

func TestEngineQuitFlushesAndPurgesWAL(t *testing.T) {
	forEachEngineLayout(t, func(t *testing.T, singleFile bool) {
		dir := t.TempDir()
		cfg := Default(dir)
		cfg.SingleFileTables = singleFile

		e, err := Open(cfg, nil, nil)
		require.NoError(t, err)
		require.NoError(t, e.Put("k", []byte("v")))
		require.NoError(t, e.Quit())

		e2, err := Open(cfg, nil, nil)
		require.NoError(t, err)
		got, ok, err := e2.Get("k")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v"), got.Value)
	})
}
