package sstable

import (
	"io"

	"github.com/drag0dev/nebula/entry"
	"github.com/drag0dev/nebula/framing"
)

// DataWriter appends serialized entries to w, tracking the cumulative byte
// offset of its own output stream — the dataOffset value the index records.
type DataWriter struct {
	w      io.Writer
	cursor int64
}

// NewDataWriter wraps w, writing at stream offset 0.
func NewDataWriter(w io.Writer) *DataWriter {
	return &DataWriter{w: w}
}

// Add appends one entry and returns the byte offset at which it begins.
func (dw *DataWriter) Add(e entry.Entry) (int64, error) {
	start := dw.cursor
	frame := e.Serialize()
	n, err := dw.w.Write(frame)
	dw.cursor += int64(n)
	if err != nil {
		return start, err
	}
	return start, nil
}

// Offset returns the current cumulative write position.
func (dw *DataWriter) Offset() int64 { return dw.cursor }

// DataReader iterates entries over the section [base, limit) of r,
// forward-only but seekable by a section-relative offset (MoveTo).
type DataReader struct {
	r      io.ReaderAt
	base   int64
	limit  int64 // -1 means "until io.EOF"
	cursor int64
}

// NewDataReader builds a reader over the data section [base, limit) of r.
func NewDataReader(r io.ReaderAt, base, limit int64) *DataReader {
	return &DataReader{r: r, base: base, limit: limit, cursor: base}
}

// Rewind resets iteration to the start of the data section.
func (dr *DataReader) Rewind() { dr.cursor = dr.base }

// Offset returns the section-relative position Next would read from next.
func (dr *DataReader) Offset() int64 { return dr.cursor - dr.base }

// MoveTo seeks to a data-section-relative offset (as reported by an index
// record).
func (dr *DataReader) MoveTo(offset int64) { dr.cursor = dr.base + offset }

// Next returns the next entry, or ok == false at end of the data section.
func (dr *DataReader) Next() (e entry.Entry, ok bool, err error) {
	if dr.limit >= 0 && dr.cursor >= dr.limit {
		return entry.Entry{}, false, nil
	}
	payload, next, err := framing.ReadAt(dr.r, dr.cursor)
	if err == io.EOF {
		return entry.Entry{}, false, nil
	}
	if err != nil {
		return entry.Entry{}, false, err
	}
	e, err = entry.DecodePayload(payload)
	if err != nil {
		return entry.Entry{}, false, err
	}
	dr.cursor = next
	return e, true, nil
}

// ReadAt reads exactly one entry starting at a data-section-relative
// offset, without disturbing the iterator's own cursor. Used by point
// lookup once the index has resolved a key to its data offset.
func (dr *DataReader) ReadAt(offset int64) (entry.Entry, error) {
	payload, _, err := framing.ReadAt(dr.r, dr.base+offset)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.DecodePayload(payload)
}
