// Package wal implements the write-ahead log: a sequence of fixed-size,
// memory-mapped segments appended to in order, never rewritten, and
// purged in bulk once their contents are durably reflected in an SSTable
// (spec.md §4.6).
package wal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/framing"
	"golang.org/x/sys/unix"
)

var segmentName = regexp.MustCompile(`^segment-(\d+)$`)

// byteReaderAt adapts a byte slice (an mmapped segment) to io.ReaderAt so
// the shared framing codec can read frames out of it directly.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// segment is one mmapped, fixed-size WAL file.
type segment struct {
	index  int
	file   *os.File
	data   []byte // mmapped region, length == segmentSize
	cursor int     // next write position within data
}

func (s *segment) close() error {
	if s.data != nil {
		if err := unix.Munmap(s.data); err != nil {
			return err
		}
		s.data = nil
	}
	return s.file.Close()
}

// WAL is the append-only, segmented log durability boundary ahead of the
// memtable (spec.md §4.6).
type WAL struct {
	dir         string
	segmentSize int
	segments    []*segment // never populated: Open replays earlier segments from their files, and only current stays mapped
	current     *segment
}

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%d", index))
}

// Open creates dir if necessary, opens (or creates) its current segment
// for appending, and returns the WAL plus every entry recovered by
// replaying existing segments in ascending order.
func Open(dir string, segmentSize int) (*WAL, []entry.Entry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, common.IO("wal: create directory", err)
	}

	indices, err := existingSegmentIndices(dir)
	if err != nil {
		return nil, nil, err
	}

	w := &WAL{dir: dir, segmentSize: segmentSize}

	var recovered []entry.Entry
	lastIndex := -1
	for _, idx := range indices {
		entries, consumed, err := replaySegment(segmentPath(dir, idx), segmentSize)
		if err != nil {
			return nil, nil, err
		}
		recovered = append(recovered, entries...)
		lastIndex = idx
		_ = consumed
	}

	if lastIndex < 0 {
		seg, err := createSegment(dir, 0, segmentSize)
		if err != nil {
			return nil, nil, err
		}
		w.current = seg
		return w, recovered, nil
	}

	seg, cursor, err := openSegmentForAppend(dir, lastIndex, segmentSize)
	if err != nil {
		return nil, nil, err
	}
	seg.cursor = cursor
	w.current = seg
	return w, recovered, nil
}

func existingSegmentIndices(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, common.IO("wal: read directory", err)
	}
	var indices []int
	for _, de := range entries {
		m := segmentName.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		indices = append(indices, n)
	}
	sort.Ints(indices)
	for i, n := range indices {
		if n != i {
			return nil, common.Corrupt("wal: missing segment in contiguous sequence", nil)
		}
	}
	return indices, nil
}

// replaySegment reads one segment's valid record prefix: CRC-checked
// frames up to the first zero length prefix or EOF, whichever comes
// first. It returns the decoded entries and the byte offset up to which
// the segment was valid (the append cursor if this segment is reopened).
func replaySegment(path string, segmentSize int) ([]entry.Entry, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, common.IO("wal: read segment", err)
	}
	r := byteReaderAt(raw)

	var out []entry.Entry
	offset := int64(0)
	for {
		payload, next, err := framing.ReadAt(r, offset)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		e, err := entry.DecodePayload(payload)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
		offset = next
	}
	return out, int(offset), nil
}

func createSegment(dir string, index, size int) (*segment, error) {
	path := segmentPath(dir, index)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, common.IO("wal: create segment", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, common.IO("wal: preallocate segment", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, common.IO("wal: mmap segment", err)
	}
	return &segment{index: index, file: f, data: data}, nil
}

func openSegmentForAppend(dir string, index, size int) (*segment, int, error) {
	path := segmentPath(dir, index)
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, 0, common.IO("wal: open segment", err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, 0, common.IO("wal: mmap segment", err)
	}
	_, cursor, err := replaySegment(path, size)
	if err != nil {
		unix.Munmap(data)
		f.Close()
		return nil, 0, err
	}
	return &segment{index: index, file: f, data: data}, cursor, nil
}

// Append writes e's framed record to the current segment, rolling over to
// a freshly allocated segment if it does not fit in the remaining space.
func (w *WAL) Append(e entry.Entry) error {
	frame := e.Serialize()
	if w.current.cursor+len(frame) > w.segmentSize {
		if err := w.current.close(); err != nil {
			return common.IO("wal: close full segment", err)
		}
		next, err := createSegment(w.dir, w.current.index+1, w.segmentSize)
		if err != nil {
			return err
		}
		w.current = next
	}
	copy(w.current.data[w.current.cursor:], frame)
	w.current.cursor += len(frame)
	return nil
}

// Sync flushes the current segment's mapped pages to disk.
func (w *WAL) Sync() error {
	if err := unix.Msync(w.current.data, unix.MS_SYNC); err != nil {
		return common.IO("wal: msync segment", err)
	}
	return nil
}

// Purge discards the current mapped segment and deletes every segment
// file, then reopens segment 0 fresh. Invoked only after a successful
// memtable flush (spec.md §4.6).
func (w *WAL) Purge() error {
	lastIndex := w.current.index
	if err := w.current.close(); err != nil {
		return common.IO("wal: close segment during purge", err)
	}
	for i := 0; i <= lastIndex; i++ {
		if err := os.Remove(segmentPath(w.dir, i)); err != nil && !os.IsNotExist(err) {
			return common.IO("wal: remove segment during purge", err)
		}
	}
	seg, err := createSegment(w.dir, 0, w.segmentSize)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// Close unmaps and closes the current segment.
func (w *WAL) Close() error {
	return w.current.close()
}
