package sstable

import (
	"encoding/binary"
	"os"

	"github.com/drag0dev/nebula/bloom"
	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/merkle"
)

// HeaderSize is the fixed 40-byte single-file header: five u64 section
// offsets (data, filter, index, summary, metadata), per spec.md §6.
const HeaderSize = 40

// BuildSingleFile writes one file containing every section, in the three
// sequential passes spec.md §4.3 describes. entries must already be in
// ascending key order (the memtable/merge path supplies them that way).
func BuildSingleFile(path string, cfg Config, expectedCount int, entries func(yield func(entry.Entry) (bool, error)) error) (err error) {
	if cfg.SummaryNth < 2 {
		cfg.SummaryNth = 2
	}

	f, err := os.Create(path)
	if err != nil {
		return common.IO("sstable: create single-file table", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	if _, err = f.Write(make([]byte, HeaderSize)); err != nil {
		return common.IO("sstable: write header placeholder", err)
	}

	// Pass 1: stream data records, hashing keys into the filter in memory.
	dataOffset := int64(HeaderSize)
	dataWriter := NewDataWriter(f)
	filter := bloom.New(expectedCount, cfg.FPProb)
	if err = entries(func(e entry.Entry) (bool, error) {
		if _, werr := dataWriter.Add(e); werr != nil {
			return false, werr
		}
		filter.Add(e.Key)
		return true, nil
	}); err != nil {
		return err
	}
	filterOffset := dataOffset + dataWriter.Offset()
	if _, err = f.Write(filter.Serialize()); err != nil {
		return common.IO("sstable: write filter section", err)
	}
	if err = f.Sync(); err != nil {
		return common.IO("sstable: sync after filter", err)
	}

	fi, err := f.Stat()
	if err != nil {
		return common.IO("sstable: stat after filter pass", err)
	}
	indexOffset := fi.Size()

	// Pass 2: reopen the file read-only, replay the data section, and emit
	// one index record per entry at the current write cursor.
	readFile, err := os.Open(path)
	if err != nil {
		return common.IO("sstable: reopen for index pass", err)
	}
	dataReader := NewDataReader(readFile, dataOffset, filterOffset)
	indexWriter := NewIndexWriter(f)
	for {
		relOffset := dataReader.Offset()
		e, ok, nerr := dataReader.Next()
		if nerr != nil {
			readFile.Close()
			return nerr
		}
		if !ok {
			break
		}
		if _, werr := indexWriter.Add(e.Key, uint64(relOffset)); werr != nil {
			readFile.Close()
			return werr
		}
	}
	readFile.Close()
	summaryOffset := indexOffset + indexWriter.Offset()
	if err = f.Sync(); err != nil {
		return common.IO("sstable: sync after index", err)
	}

	// Pass 3: iterate the freshly written index section and emit summary
	// blocks every summary_nth entry, plus the trailing total range.
	readFile2, err := os.Open(path)
	if err != nil {
		return common.IO("sstable: reopen for summary pass", err)
	}
	indexReader := NewIndexReader(readFile2, indexOffset, summaryOffset)
	summaryWriter := NewSummaryWriter(f)
	sinceBlock := 0
	blockFirstKey := ""
	var blockIndexOffset int64
	lastKey := ""
	minKey := ""
	maxKey := ""
	seen := 0
	for {
		recordStart := indexReader.Offset()
		key, idxOff, ok, nerr := indexReader.Next()
		if nerr != nil {
			readFile2.Close()
			return nerr
		}
		if !ok {
			break
		}
		_ = idxOff
		if seen == 0 {
			minKey = key
		}
		if sinceBlock == 0 {
			blockFirstKey = key
			blockIndexOffset = recordStart
		}
		maxKey = key
		lastKey = key
		seen++
		sinceBlock++
		if sinceBlock == cfg.SummaryNth {
			if werr := summaryWriter.AddBlock(blockFirstKey, lastKey, uint64(blockIndexOffset)); werr != nil {
				readFile2.Close()
				return werr
			}
			sinceBlock = 0
		}
	}
	readFile2.Close()
	if sinceBlock > 0 {
		if werr := summaryWriter.AddBlock(blockFirstKey, lastKey, uint64(blockIndexOffset)); werr != nil {
			return werr
		}
	}
	if werr := summaryWriter.Finish(minKey, maxKey); werr != nil {
		return werr
	}
	metaOffset := summaryOffset + summaryWriter.cursor
	if err = f.Sync(); err != nil {
		return common.IO("sstable: sync after summary", err)
	}

	root, err := computeMerkleRootRange(path, dataOffset, filterOffset)
	if err != nil {
		return err
	}
	if err = WriteMetadata(f, root); err != nil {
		return common.IO("sstable: write metadata section", err)
	}
	if err = f.Sync(); err != nil {
		return common.IO("sstable: sync after metadata", err)
	}

	// Finalize: overwrite the header with the recorded section offsets.
	header := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(dataOffset))
	binary.LittleEndian.PutUint64(header[8:16], uint64(filterOffset))
	binary.LittleEndian.PutUint64(header[16:24], uint64(indexOffset))
	binary.LittleEndian.PutUint64(header[24:32], uint64(summaryOffset))
	binary.LittleEndian.PutUint64(header[32:40], uint64(metaOffset))
	if _, err = f.WriteAt(header, 0); err != nil {
		return common.IO("sstable: write final header", err)
	}
	return f.Sync()
}

func computeMerkleRootRange(path string, base, limit int64) (merkle.Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return merkle.Root{}, common.IO("sstable: reopen for merkle pass", err)
	}
	defer f.Close()
	reader := NewDataReader(f, base, limit)
	var values [][]byte
	for {
		e, ok, err := reader.Next()
		if err != nil {
			return merkle.Root{}, err
		}
		if !ok {
			break
		}
		values = append(values, e.Value)
	}
	return merkle.Compute(values), nil
}
