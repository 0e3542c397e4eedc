// Package sstable implements the on-disk sorted table: data, bloom filter,
// dense index, summary and Merkle metadata, in both the multi-file
// (directory of parallel files) and single-file (header-directed sections)
// layouts described in spec.md §4.3/§6.
package sstable

import (
	"encoding/binary"
	"io"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/framing"
)

// indexPayload lays out `keyLen(4B) | key | dataOffset(8B)`.
func indexPayload(key string, dataOffset uint64) []byte {
	buf := make([]byte, 4+len(key)+8)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(key)))
	copy(buf[4:], key)
	binary.LittleEndian.PutUint64(buf[4+len(key):], dataOffset)
	return buf
}

func decodeIndexPayload(payload []byte) (key string, dataOffset uint64, err error) {
	if len(payload) < 4 {
		return "", 0, common.Corrupt("sstable: truncated index key length", nil)
	}
	keyLen := binary.LittleEndian.Uint32(payload[0:4])
	if keyLen > common.MaxKeySize || 4+int(keyLen)+8 != len(payload) {
		return "", 0, common.Corrupt("sstable: index payload size mismatch", nil)
	}
	key = string(payload[4 : 4+keyLen])
	dataOffset = binary.LittleEndian.Uint64(payload[4+keyLen:])
	return key, dataOffset, nil
}

// IndexWriter appends `(key, dataOffset)` records to w, tracking the
// cumulative byte offset of its own output stream.
type IndexWriter struct {
	w      io.Writer
	cursor int64
}

// NewIndexWriter wraps w, writing at stream offset 0.
func NewIndexWriter(w io.Writer) *IndexWriter {
	return &IndexWriter{w: w}
}

// Add appends one index record and returns the byte offset in the index
// stream at which the record begins — the value summary blocks reference.
func (iw *IndexWriter) Add(key string, dataOffset uint64) (int64, error) {
	start := iw.cursor
	frame := framing.Frame(indexPayload(key, dataOffset))
	n, err := iw.w.Write(frame)
	iw.cursor += int64(n)
	if err != nil {
		return start, common.IO("sstable: write index record", err)
	}
	return start, nil
}

// Offset returns the current cumulative write position.
func (iw *IndexWriter) Offset() int64 { return iw.cursor }

// IndexReader iterates `(key, dataOffset)` records over a random-access
// source, forward-only but seekable by a section-relative offset (MoveTo).
type IndexReader struct {
	r      io.ReaderAt
	base   int64 // start of the index section (for single-file layout)
	limit  int64 // end of the index section, or -1 for "until EOF/io.EOF"
	cursor int64 // absolute offset into r
}

// NewIndexReader builds a reader over the index section [base, limit) of r.
// limit < 0 means "read until the underlying source signals EOF".
func NewIndexReader(r io.ReaderAt, base, limit int64) *IndexReader {
	return &IndexReader{r: r, base: base, limit: limit, cursor: base}
}

// Rewind resets iteration to the start of the index section.
func (ir *IndexReader) Rewind() { ir.cursor = ir.base }

// MoveTo seeks to a summary-reported offset, relative to the index section.
func (ir *IndexReader) MoveTo(offset int64) { ir.cursor = ir.base + offset }

// Offset returns the section-relative position Next would read from next.
func (ir *IndexReader) Offset() int64 { return ir.cursor - ir.base }

// Next returns the next (key, dataOffset) pair, or ok == false at end of
// the index section.
func (ir *IndexReader) Next() (key string, dataOffset uint64, ok bool, err error) {
	if ir.limit >= 0 && ir.cursor >= ir.limit {
		return "", 0, false, nil
	}
	payload, next, err := framing.ReadAt(ir.r, ir.cursor)
	if err == io.EOF {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, err
	}
	key, dataOffset, err = decodeIndexPayload(payload)
	if err != nil {
		return "", 0, false, err
	}
	ir.cursor = next
	return key, dataOffset, true, nil
}
