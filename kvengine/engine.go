package kvengine

import (
	"log"
	"path/filepath"
	"sort"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/lsm"
	"github.com/drag0dev/nebula/memtable"
	"github.com/drag0dev/nebula/sstable"
	"github.com/drag0dev/nebula/wal"
	"github.com/google/uuid"
)

func sortEntriesByKey(entries []entry.Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
}

// Engine is the facade wiring WAL -> memtable -> LSM container into the
// operation surface spec.md §6 exports.
type Engine struct {
	cfg     Config
	logger  *log.Logger
	metrics *Metrics

	w    *wal.WAL
	mem  *memtable.Memtable
	tree *lsm.LSM
}

// Open recovers an engine rooted at cfg.DataDir: it reads the WAL
// segments, recovers the LSM container from disk, then replays the WAL
// entries into a fresh memtable (flushing mid-replay if it fills, exactly
// as in normal operation).
func Open(cfg Config, logger *log.Logger, metrics *Metrics) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	walDir := filepath.Join(cfg.DataDir, "WAL")
	tableDir := filepath.Join(cfg.DataDir, "table_data")

	w, recovered, err := wal.Open(walDir, cfg.WALSegmentBytes)
	if err != nil {
		return nil, err
	}

	tree, err := lsm.Open(lsm.Config{
		DataDir:        tableDir,
		FPProb:         cfg.FPProb,
		SummaryNth:     cfg.SummaryNth,
		SizeThreshold:  cfg.SizeThreshold,
		NumberOfLevels: cfg.NumberOfLevels,
		SingleFile:     cfg.SingleFileTables,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		w:       w,
		mem:     memtable.New(cfg.memtableBacking(), cfg.MemtableCapacity),
		tree:    tree,
	}

	logger.Printf("recovering %d entries from WAL", len(recovered))
	for _, rec := range recovered {
		if rec.Tombstone {
			e.mem.Delete(rec.Key)
		} else {
			e.mem.Put(rec.Key, rec.Value)
		}
		if e.mem.Full() {
			if err := e.flush(); err != nil {
				return nil, common.IO("kvengine: flush during WAL replay", err)
			}
		}
	}
	return e, nil
}

// Put stores value under key. The write is durable in the WAL before it
// is visible in the memtable, before the call returns (spec.md §5).
func (e *Engine) Put(key string, value []byte) error {
	if err := common.ValidateKey(key); err != nil {
		return err
	}
	if err := common.ValidateValue(value); err != nil {
		return err
	}
	if err := e.w.Append(entry.New(key, value)); err != nil {
		return err
	}
	e.mem.Put(key, value)
	e.metrics.Puts.Inc()
	if e.mem.Full() {
		return e.flush()
	}
	return nil
}

// Delete marks key as deleted.
func (e *Engine) Delete(key string) error {
	if err := common.ValidateKey(key); err != nil {
		return err
	}
	if err := e.w.Append(entry.NewTombstone(key)); err != nil {
		return err
	}
	e.mem.Delete(key)
	e.metrics.Deletes.Inc()
	e.metrics.Tombstones.Inc()
	if e.mem.Full() {
		return e.flush()
	}
	return nil
}

// Get looks up key, checking the memtable (always the newest data) before
// falling through to the LSM container's level-ordered traversal.
func (e *Engine) Get(key string) (entry.Entry, bool, error) {
	e.metrics.Gets.Inc()
	if err := common.ValidateKey(key); err != nil {
		return entry.Entry{}, false, err
	}
	if rec, ok := e.mem.Get(key); ok {
		if rec.Tombstone {
			return entry.Entry{}, false, nil
		}
		return rec, true, nil
	}
	return e.tree.Get(key)
}

// List returns entries whose key has prefix, merging memtable and LSM
// hits and paginating the de-duplicated, newest-wins result.
func (e *Engine) List(prefix string, page *common.PageRequest) ([]entry.Entry, error) {
	fromLSM, err := e.tree.List(prefix)
	if err != nil {
		return nil, err
	}
	merged := mergeNewest(fromLSM, e.mem.PrefixScan(prefix))
	return common.Paginate(merged, page), nil
}

// RangeScan returns entries whose key falls within [lo, hi].
func (e *Engine) RangeScan(lo, hi string, page *common.PageRequest) ([]entry.Entry, error) {
	if lo > hi {
		return nil, common.Invalid("kvengine: range_scan", common.ErrInvalidRange)
	}
	fromLSM, err := e.tree.RangeScan(lo, hi)
	if err != nil {
		return nil, err
	}
	merged := mergeNewest(fromLSM, e.mem.RangeScan(lo, hi))
	return common.Paginate(merged, page), nil
}

// mergeNewest combines two already-sorted-by-key, live-only and
// memtable-may-include-tombstones slices, keeping the newest record per
// key and dropping tombstones from the final result.
func mergeNewest(fromLSM, fromMem []entry.Entry) []entry.Entry {
	best := make(map[string]entry.Entry, len(fromLSM)+len(fromMem))
	for _, e := range fromLSM {
		best[e.Key] = e
	}
	for _, e := range fromMem {
		if cur, ok := best[e.Key]; !ok || e.Timestamp.After(cur.Timestamp) {
			best[e.Key] = e
		}
	}
	out := make([]entry.Entry, 0, len(best))
	for _, e := range best {
		if e.Tombstone {
			continue
		}
		out = append(out, e)
	}
	sortEntriesByKey(out)
	return out
}

// Quit flushes any pending writes (which purges the WAL as part of the
// flush) and closes it, per spec.md §6.
func (e *Engine) Quit() error {
	if e.mem.Len() > 0 {
		if err := e.flush(); err != nil {
			return err
		}
	} else if err := e.w.Purge(); err != nil {
		return err
	}
	return e.w.Close()
}

// flush builds a new SSTable from the memtable's contents, inserts it
// into the LSM container, then purges the WAL, and finally resets the
// memtable. The table is in the container before the WAL is purged, so a
// crash between builder finalize and WAL purge merely duplicates a flush
// on restart.
func (e *Engine) flush() error {
	entries := e.mem.Entries()
	tmpName := "memtable-" + uuid.New().String()
	tmpPath := filepath.Join(e.cfg.DataDir, "table_data", tmpName)

	cfg := sstable.Config{FPProb: e.cfg.FPProb, SummaryNth: e.cfg.SummaryNth}
	var err error
	if e.cfg.SingleFileTables {
		err = sstable.BuildSingleFile(tmpPath, cfg, len(entries), func(yield func(entry.Entry) (bool, error)) error {
			for _, rec := range entries {
				if cont, yerr := yield(rec); yerr != nil || !cont {
					return yerr
				}
			}
			return nil
		})
	} else {
		var builder *sstable.MultiFileBuilder
		builder, err = sstable.NewMultiFileBuilder(tmpPath, cfg, len(entries))
		if err == nil {
			for _, rec := range entries {
				if err = builder.Add(rec); err != nil {
					break
				}
			}
			if err == nil {
				_, err = builder.Finish()
			}
		}
	}
	if err != nil {
		return err
	}

	if err := e.tree.Insert(tmpPath); err != nil {
		return err
	}
	if err := e.w.Purge(); err != nil {
		return err
	}
	e.metrics.Flushes.Inc()
	e.mem.Reset(e.cfg.memtableBacking())
	e.logger.Printf("flushed memtable (%d entries) into level 0", len(entries))
	return nil
}
