package sstable

import (
	"encoding/binary"
	"os"

	"github.com/drag0dev/nebula/bloom"
	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
)

// SingleFileTable is a read handle onto an already-built single-file
// table. Every query opens its own *os.File — spec.md §5 requires each
// iterator to carry its own fd and seek position.
type SingleFileTable struct {
	Path          string
	DataOffset    int64
	FilterOffset  int64
	IndexOffset   int64
	SummaryOffset int64
	MetaOffset    int64
	fileSize      int64
	filter        *bloom.Filter
}

// OpenSingleFileTable reads the 40-byte header and the filter section, and
// reads the summary tail once so a corrupt global range fails here.
func OpenSingleFileTable(path string) (*SingleFileTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.IO("sstable: open single-file table", err)
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		return nil, common.Corrupt("sstable: unreadable single-file header", err)
	}
	fi, err := f.Stat()
	if err != nil {
		return nil, common.IO("sstable: stat single-file table", err)
	}

	t := &SingleFileTable{
		Path:          path,
		DataOffset:    int64(binary.LittleEndian.Uint64(header[0:8])),
		FilterOffset:  int64(binary.LittleEndian.Uint64(header[8:16])),
		IndexOffset:   int64(binary.LittleEndian.Uint64(header[16:24])),
		SummaryOffset: int64(binary.LittleEndian.Uint64(header[24:32])),
		MetaOffset:    int64(binary.LittleEndian.Uint64(header[32:40])),
		fileSize:      fi.Size(),
	}

	filterBuf := make([]byte, t.IndexOffset-t.FilterOffset)
	if _, err := f.ReadAt(filterBuf, t.FilterOffset); err != nil {
		return nil, common.IO("sstable: read filter section", err)
	}
	filter, err := bloom.Deserialize(filterBuf)
	if err != nil {
		return nil, err
	}
	t.filter = filter
	if _, err := OpenSummaryReader(f, t.SummaryOffset, t.MetaOffset-t.SummaryOffset); err != nil {
		return nil, err
	}
	return t, nil
}

// MayContain consults the bloom filter.
func (t *SingleFileTable) MayContain(key string) bool { return t.filter.Check(key) }

// OpenSummary opens a fresh summary reader over the summary section.
func (t *SingleFileTable) OpenSummary() (*SummaryReader, func() error, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, nil, common.IO("sstable: open single-file table", err)
	}
	sr, err := OpenSummaryReader(f, t.SummaryOffset, t.MetaOffset-t.SummaryOffset)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return sr, f.Close, nil
}

// OpenIndex opens a fresh index reader over the index section.
func (t *SingleFileTable) OpenIndex() (*IndexReader, func() error, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, nil, common.IO("sstable: open single-file table", err)
	}
	return NewIndexReader(f, t.IndexOffset, t.SummaryOffset), f.Close, nil
}

// OpenData opens a fresh data reader over the data section.
func (t *SingleFileTable) OpenData() (*DataReader, func() error, error) {
	f, err := os.Open(t.Path)
	if err != nil {
		return nil, nil, common.IO("sstable: open single-file table", err)
	}
	return NewDataReader(f, t.DataOffset, t.FilterOffset), f.Close, nil
}

// Get mirrors MultiFileTable.Get against the single-file section layout.
func (t *SingleFileTable) Get(key string) (entry.Entry, LookupResult, error) {
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
