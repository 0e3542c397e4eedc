// Package lsm implements the levelled table container described in
// spec.md §4.4: insertion with size-triggered compaction, tombstone-aware
// k-way merge, and point/prefix/range lookup traversal. Everything here
// runs synchronously on the caller's goroutine — no background workers,
// per spec.md §5.
package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/sstable"
)

// Config gathers the LSM container's tuning parameters (spec.md §4.4).
type Config struct {
	DataDir        string
	FPProb         float64
	SummaryNth     int
	SizeThreshold  int // max tables per level before compaction
	NumberOfLevels int
	SingleFile     bool // single-file vs multi-file table layout
}

// tableRef is one level's table descriptor: its on-disk name and an
// opened, cached read handle.
type tableRef struct {
	name  string
	id    int
	table sstable.Table
}

// LSM holds the ordered vector of levels, each a vector of table
// descriptors, newest-last within a level.
type LSM struct {
	cfg    Config
	levels [][]*tableRef
}

var tableDirName = regexp.MustCompile(`^sstable-(\d+)-(\d+)$`)

// Open scans cfg.DataDir for existing tables (spec.md §4.4 Recovery) and
// returns a ready-to-use container.
func Open(cfg Config) (*LSM, error) {
	if cfg.SummaryNth < 2 {
		cfg.SummaryNth = 2
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, common.IO("lsm: create data directory", err)
	}

	l := &LSM{cfg: cfg, levels: make([][]*tableRef, cfg.NumberOfLevels)}

	entries, err := os.ReadDir(cfg.DataDir)
	if err != nil {
		return nil, common.IO("lsm: read data directory", err)
	}
	for _, de := range entries {
		m := tableDirName.FindStringSubmatch(de.Name())
		if m == nil {
			return nil, common.Corrupt("lsm: malformed table directory name "+de.Name(), nil)
		}
		level, _ := strconv.Atoi(m[1])
		id, _ := strconv.Atoi(m[2])
		if level < 0 || level >= cfg.NumberOfLevels {
			return nil, common.Corrupt("lsm: table references out-of-range level", nil)
		}
		path := filepath.Join(cfg.DataDir, de.Name())
		table, err := sstable.OpenTable(path)
		if err != nil {
			return nil, err
		}
		l.levels[level] = append(l.levels[level], &tableRef{name: de.Name(), id: id, table: table})
	}
	for _, lvl := range l.levels {
		sort.Slice(lvl, func(i, j int) bool { return lvl[i].id < lvl[j].id })
	}
	return l, nil
}

func tableName(level, id int) string {
	return fmt.Sprintf("sstable-%d-%d", level, id)
}

// Insert renames a freshly built table (built by the caller at tmpPath)
// into the canonical L0 name and appends it to level 0, compacting if L0
// has reached its size threshold.
func (l *LSM) Insert(tmpPath string) error {
	id := 0
	if lvl := l.levels[0]; len(lvl) > 0 {
		id = lvl[len(lvl)-1].id + 1
	}
	name := tableName(0, id)
	finalPath := filepath.Join(l.cfg.DataDir, name)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return common.IO("lsm: rename new table into level 0", err)
	}

	table, err := sstable.OpenTable(finalPath)
	if err != nil {
		return err
	}
	l.levels[0] = append(l.levels[0], &tableRef{name: name, id: id, table: table})

	if len(l.levels[0]) >= l.cfg.SizeThreshold {
		return l.merge(0)
	}
	return nil
}

// merge implements spec.md §4.4's compaction cascade for level L.
func (l *LSM) merge(level int) error {
	if level >= l.cfg.NumberOfLevels-1 {
		return nil // terminal level: no-op
	}
	sources := l.levels[level]
	if len(sources) == 0 {
		return nil
	}

	nextID := 0
	if lvl := l.levels[level+1]; len(lvl) > 0 {
		nextID = lvl[len(lvl)-1].id + 1
	}

	total, err := estimateCount(sources)
	if err != nil {
		return err
	}

	terminal := level+1 >= l.cfg.NumberOfLevels-1
	destName := tableName(level+1, nextID)
	destPath := filepath.Join(l.cfg.DataDir, destName)

	if err := l.streamMerge(sources, destPath, total, terminal); err != nil {
		return err
	}

	for _, src := range sources {
		if err := removeTable(l.cfg.DataDir, src.name); err != nil {
			return err
		}
	}
	l.levels[level] = nil

	destTable, err := sstable.OpenTable(destPath)
	if err != nil {
		return err
	}
	l.levels[level+1] = append(l.levels[level+1], &tableRef{name: destName, id: nextID, table: destTable})

	if len(l.levels[level+1]) >= l.cfg.SizeThreshold {
		return l.merge(level + 1)
	}
	return nil
}

func estimateCount(refs []*tableRef) (int, error) {
	total := 0
	for _, r := range refs {
		entries, err := sstable.AllEntries(r.table)
		if err != nil {
			return 0, err
		}
		total += len(entries)
	}
	if total == 0 {
		total = 1
	}
	return total, nil
}

func removeTable(dataDir, name string) error {
	path := filepath.Join(dataDir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return common.IO("lsm: stat table before delete", err)
	}
	if fi.IsDir() {
		return common.IO("lsm: remove table directory", os.RemoveAll(path))
	}
	return common.IO("lsm: remove table file", os.Remove(path))
}

// streamMerge builds a k-way min-heap over peekable iterators across
// sources, resolves same-key groups per spec.md §4.4's policy, and writes
// the result into a single new table at destPath.
func (l *LSM) streamMerge(sources []*tableRef, destPath string, expectedCount int, terminal bool) error {
	h := newMergeHeap()
	for _, src := range sources {
		it, err := sstable.NewEntryIterator(src.table)
		if err != nil {
			return err
		}
		if err := h.push(it); err != nil {
			return err
		}
	}
	defer h.closeAll()

	cfg := sstable.Config{FPProb: l.cfg.FPProb, SummaryNth: l.cfg.SummaryNth}

	if l.cfg.SingleFile {
		return sstable.BuildSingleFile(destPath, cfg, expectedCount, func(yield func(entry.Entry) (bool, error)) error {
			return h.drain(terminal, yield)
		})
	}

	builder, err := sstable.NewMultiFileBuilder(destPath, cfg, expectedCount)
	if err != nil {
		return err
	}
	if err := h.drain(terminal, func(e entry.Entry) (bool, error) {
		return true, builder.Add(e)
	}); err != nil {
		return err
	}
	_, err = builder.Finish()
	return err
}
