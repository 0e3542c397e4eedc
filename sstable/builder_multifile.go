package sstable

import (
	"os"
	"path/filepath"

	"github.com/drag0dev/nebula/bloom"
	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/merkle"
)

// Config carries the parameters shared by every builder and by the LSM
// container that drives them (spec.md §4.4's fp_prob, summary_nth).
type Config struct {
	FPProb     float64
	SummaryNth int // N index entries per summary block; must be >= 2
}

// MultiFileBuilder writes the five parallel files (data, index, summary,
// filter, metadata) of a multi-file table into its own directory, one
// insertion at a time, per spec.md §4.3.
type MultiFileBuilder struct {
	dir    string
	cfg    Config
	filter *bloom.Filter

	dataFile    *os.File
	indexFile   *os.File
	summaryFile *os.File

	dataWriter    *DataWriter
	indexWriter   *IndexWriter
	summaryWriter *SummaryWriter

	sinceBlock       int
	blockFirstKey    string
	blockIndexOffset uint64
	lastKey          string
	minKey           string
	maxKey           string
	count            int
}

// NewMultiFileBuilder creates dir and opens its constituent files for
// writing. expectedCount sizes the bloom filter (spec.md §4.2).
func NewMultiFileBuilder(dir string, cfg Config, expectedCount int) (*MultiFileBuilder, error) {
	if cfg.SummaryNth < 2 {
		cfg.SummaryNth = 2
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, common.IO("sstable: create table directory", err)
	}

	dataFile, err := os.Create(filepath.Join(dir, "data"))
	if err != nil {
		return nil, common.IO("sstable: create data file", err)
	}
	indexFile, err := os.Create(filepath.Join(dir, "index"))
	if err != nil {
		return nil, common.IO("sstable: create index file", err)
	}
	summaryFile, err := os.Create(filepath.Join(dir, "summary"))
	if err != nil {
		return nil, common.IO("sstable: create summary file", err)
	}

	return &MultiFileBuilder{
		dir:           dir,
		cfg:           cfg,
		filter:        bloom.New(expectedCount, cfg.FPProb),
		dataFile:      dataFile,
		indexFile:     indexFile,
		summaryFile:   summaryFile,
		dataWriter:    NewDataWriter(dataFile),
		indexWriter:   NewIndexWriter(indexFile),
		summaryWriter: NewSummaryWriter(summaryFile),
	}, nil
}

// Add appends one entry: data record, bloom membership, index record, and
// (every summary_nth insertion) a summary block.
func (b *MultiFileBuilder) Add(e entry.Entry) error {
	dataOffset, err := b.dataWriter.Add(e)
	if err != nil {
		return err
	}
	b.filter.Add(e.Key)
	indexOffset, err := b.indexWriter.Add(e.Key, uint64(dataOffset))
	if err != nil {
		return err
	}

	if b.count == 0 {
		b.minKey = e.Key
	}
	if b.sinceBlock == 0 {
		b.blockFirstKey = e.Key
		b.blockIndexOffset = uint64(indexOffset)
	}
	b.maxKey = e.Key
	b.lastKey = e.Key
	b.count++
	b.sinceBlock++

	if b.sinceBlock == b.cfg.SummaryNth {
		if err := b.summaryWriter.AddBlock(b.blockFirstKey, b.lastKey, b.blockIndexOffset); err != nil {
			return err
		}
		b.sinceBlock = 0
	}
	return nil
}

// Finish emits any pending summary block, the total range, the filter, and
// the Merkle root over the data file's value bytes, then closes every
// file. It returns the finished table's directory.
func (b *MultiFileBuilder) Finish() (string, error) {
	defer b.dataFile.Close()
	defer b.indexFile.Close()
	defer b.summaryFile.Close()

	if b.sinceBlock > 0 {
		if err := b.summaryWriter.AddBlock(b.blockFirstKey, b.lastKey, b.blockIndexOffset); err != nil {
			return "", err
		}
	}
	if b.count > 0 {
		if err := b.summaryWriter.Finish(b.minKey, b.maxKey); err != nil {
			return "", err
		}
	} else {
		if err := b.summaryWriter.Finish("", ""); err != nil {
			return "", err
		}
	}

	filterFile, err := os.Create(filepath.Join(b.dir, "filter"))
	if err != nil {
		return "", common.IO("sstable: create filter file", err)
	}
	if _, err := filterFile.Write(b.filter.Serialize()); err != nil {
		filterFile.Close()
		return "", common.IO("sstable: write filter", err)
	}
	filterFile.Close()

	root, err := computeMerkleRoot(b.dataFile.Name(), b.dataWriter.Offset())
	if err != nil {
		return "", err
	}
	metaFile, err := os.Create(filepath.Join(b.dir, "metadata"))
	if err != nil {
		return "", common.IO("sstable: create metadata file", err)
	}
	defer metaFile.Close()
	if err := WriteMetadata(metaFile, root); err != nil {
		return "", common.IO("sstable: write metadata", err)
	}

	return b.dir, nil
}

// computeMerkleRoot reopens path read-only and streams its entries back to
// gather ordered value bytes, per spec.md §4.3's "reads the data file back
// to compute this".
func computeMerkleRoot(path string, dataLen int64) (merkle.Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return merkle.Root{}, common.IO("sstable: reopen data file for merkle pass", err)
	}
	defer f.Close()

	reader := NewDataReader(f, 0, dataLen)
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
