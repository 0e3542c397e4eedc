package sstable

import (
	"os"
	"path/filepath"

	"github.com/drag0dev/nebula/bloom"
	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
)

// MultiFileTable is a read handle onto an already-built multi-file table
// directory. Each call that needs an iterator opens its own file handle,
// per spec.md §5: readers never share a cursor.
type MultiFileTable struct {
	Dir    string
	filter *bloom.Filter
	dataSz int64
	idxSz  int64
	sumSz  int64
}

// OpenMultiFileTable loads the filter and file sizes of dir and reads the
// summary tail once, so a corrupt global range fails here rather than at
// the first lookup; each query re-reads it through OpenSummary.
func OpenMultiFileTable(dir string) (*MultiFileTable, error) {
	filterBytes, err := os.ReadFile(filepath.Join(dir, "filter"))
	if err != nil {
		return nil, common.IO("sstable: read filter file", err)
	}
	filter, err := bloom.Deserialize(filterBytes)
	if err != nil {
		return nil, err
	}

	dataSz, err := fileSize(filepath.Join(dir, "data"))
	if err != nil {
		return nil, err
	}
	idxSz, err := fileSize(filepath.Join(dir, "index"))
	if err != nil {
		return nil, err
	}
	sumSz, err := fileSize(filepath.Join(dir, "summary"))
	if err != nil {
		return nil, err
	}

	t := &MultiFileTable{Dir: dir, filter: filter, dataSz: dataSz, idxSz: idxSz, sumSz: sumSz}
	_, closeSummary, err := t.OpenSummary()
	if err != nil {
		return nil, err
	}
	closeSummary()
	return t, nil
}

func fileSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, common.IO("sstable: stat file", err)
	}
	return fi.Size(), nil
}

// MayContain consults the bloom filter.
func (t *MultiFileTable) MayContain(key string) bool { return t.filter.Check(key) }

// OpenSummary opens a fresh summary reader positioned for a range query.
func (t *MultiFileTable) OpenSummary() (*SummaryReader, func() error, error) {
	f, err := os.Open(filepath.Join(t.Dir, "summary"))
	if err != nil {
		return nil, nil, common.IO("sstable: open summary file", err)
	}
	sr, err := OpenSummaryReader(f, 0, t.sumSz)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return sr, f.Close, nil
}

// OpenIndex opens a fresh index reader over the whole index stream.
func (t *MultiFileTable) OpenIndex() (*IndexReader, func() error, error) {
	f, err := os.Open(filepath.Join(t.Dir, "index"))
	if err != nil {
		return nil, nil, common.IO("sstable: open index file", err)
	}
	return NewIndexReader(f, 0, t.idxSz), f.Close, nil
}

// OpenData opens a fresh data reader over the whole data stream.
func (t *MultiFileTable) OpenData() (*DataReader, func() error, error) {
	f, err := os.Open(filepath.Join(t.Dir, "data"))
	if err != nil {
		return nil, nil, common.IO("sstable: open data file", err)
	}
	return NewDataReader(f, 0, t.dataSz), f.Close, nil
}

// Get performs the full point-lookup traversal described in spec.md §4.4
// against this one table: bloom check, summary range check, summary block
// scan, index seek, data read.
func (t *MultiFileTable) Get(key string) (entry.Entry, LookupResult, error) {
	if !t.MayContain(key) {
		return entry.Entry{}, LookupMiss, nil
	}

	summary, closeSummary, err := t.OpenSummary()
	if err != nil {
		return entry.Entry{}, LookupMiss, err
	}
	defer closeSummary()

	if summary.MinKey != "" && (key < summary.MinKey || key > summary.MaxKey) {
		return entry.Entry{}, LookupMiss, nil
	}

	var blockIndexOffset uint64
	found := false
	for {
		firstKey, lastKey, indexOffset, ok, err := summary.NextBlock()
		if err != nil {
			return entry.Entry{}, LookupMiss, err
		}
		if !ok {
			break
		}
		if key >= firstKey && key <= lastKey {
			blockIndexOffset = indexOffset
			found = true
			break
		}
	}
	if !found {
		return entry.Entry{}, LookupMiss, nil
	}

	index, closeIndex, err := t.OpenIndex()
	if err != nil {
		return entry.Entry{}, LookupMiss, err
	}
	defer closeIndex()
	index.MoveTo(int64(blockIndexOffset))

	var dataOffset uint64
	matched := false
	for {
		k, off, ok, err := index.Next()
		if err != nil {
			return entry.Entry{}, LookupMiss, err
		}
		if !ok {
			break
		}
		if k == key {
			dataOffset = off
			matched = true
			break
		}
		if k > key {
			break
		}
	}
	if !matched {
		return entry.Entry{}, LookupMiss, nil
	}

	data, closeData, err := t.OpenData()
	if err != nil {
		return entry.Entry{}, LookupMiss, err
	}
	defer closeData()
	e, err := data.ReadAt(int64(dataOffset))
	if err != nil {
		return entry.Entry{}, LookupMiss, err
	}
	if e.Tombstone {
		return entry.Entry{}, LookupTombstone, nil
	}
	return e, LookupHit, nil
}
