package sstable

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/framing"
)

// summaryPayload lays out `firstKeyLen(4B) | firstKey | lastKeyLen(4B) |
// lastKey | indexOffset(8B)`. Block records and the trailing total-range
// record share this shape (spec.md §6); the total-range record sets
// indexOffset to 0, a don't-care value distinguished by position, not
// content.
func summaryPayload(firstKey, lastKey string, indexOffset uint64) []byte {
	buf := make([]byte, 4+len(firstKey)+4+len(lastKey)+8)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(firstKey)))
	off += 4
	copy(buf[off:], firstKey)
	off += len(firstKey)
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(lastKey)))
	off += 4
	copy(buf[off:], lastKey)
	off += len(lastKey)
	binary.LittleEndian.PutUint64(buf[off:], indexOffset)
	return buf
}

func decodeSummaryPayload(payload []byte) (firstKey, lastKey string, indexOffset uint64, err error) {
	if len(payload) < 4 {
		return "", "", 0, common.Corrupt("sstable: truncated summary record", nil)
	}
	off := 0
	firstLen := binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if firstLen > common.MaxKeySize || off+int(firstLen)+4 > len(payload) {
		return "", "", 0, common.Corrupt("sstable: summary first_key out of bounds", nil)
	}
	firstKey = string(payload[off : off+int(firstLen)])
	off += int(firstLen)
	lastLen := binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if lastLen > common.MaxKeySize || off+int(lastLen)+8 != len(payload) {
		return "", "", 0, common.Corrupt("sstable: summary last_key out of bounds", nil)
	}
	lastKey = string(payload[off : off+int(lastLen)])
	off += int(lastLen)
	indexOffset = binary.LittleEndian.Uint64(payload[off:])
	return firstKey, lastKey, indexOffset, nil
}

// SummaryWriter emits one block record per N index entries and a trailing
// total-range record whose length field follows its payload, so a reader
// can discover the range by seeking to the tail first.
type SummaryWriter struct {
	w      io.Writer
	cursor int64
}

// NewSummaryWriter wraps w, writing at stream offset 0.
func NewSummaryWriter(w io.Writer) *SummaryWriter {
	return &SummaryWriter{w: w}
}

// AddBlock appends one summary block record.
func (sw *SummaryWriter) AddBlock(firstKey, lastKey string, indexOffset uint64) error {
	frame := framing.Frame(summaryPayload(firstKey, lastKey, indexOffset))
	n, err := sw.w.Write(frame)
	sw.cursor += int64(n)
	if err != nil {
		return common.IO("sstable: write summary block", err)
	}
	return nil
}

// Finish writes the trailing total-range record: `payload | crc(4B) |
// payload_len(8B)`, the length placed after the payload so a reader can
// open the summary at EOF-8 without scanning the whole stream.
func (sw *SummaryWriter) Finish(minKey, maxKey string) error {
	payload := summaryPayload(minKey, maxKey, 0)
	tail := make([]byte, len(payload)+4+8)
	copy(tail, payload)
	crc := crc32.ChecksumIEEE(payload)
	binary.LittleEndian.PutUint32(tail[len(payload):], crc)
	binary.LittleEndian.PutUint64(tail[len(payload)+4:], uint64(len(payload)))
	n, err := sw.w.Write(tail)
	sw.cursor += int64(n)
	if err != nil {
		return common.IO("sstable: write summary total range", err)
	}
	return nil
}

// SummaryReader exposes the global (min, max) range and iterates block
// records forward over the section [base, base+sectionLen) of r.
type SummaryReader struct {
	r         io.ReaderAt
	base      int64
	blocksEnd int64 // absolute offset where block records end
	cursor    int64
	MinKey    string
	MaxKey    string
}

// OpenSummaryReader reads the tail of the section first (to recover the
// global range and the boundary between block records and the tail), then
// positions the cursor at the start of the block records.
func OpenSummaryReader(r io.ReaderAt, base, sectionLen int64) (*SummaryReader, error) {
	sectionEnd := base + sectionLen
	if sectionLen < 8 {
		return nil, common.Corrupt("sstable: summary section too short for tail", nil)
	}
	lenBuf := make([]byte, 8)
	if _, err := r.ReadAt(lenBuf, sectionEnd-8); err != nil {
		return nil, common.IO("sstable: read summary tail length", err)
	}
	payloadLen := int64(binary.LittleEndian.Uint64(lenBuf))
	if payloadLen < 0 || 8+4+payloadLen > sectionLen {
		return nil, common.Corrupt("sstable: summary tail length out of bounds", nil)
	}

	crcAndPayload := make([]byte, 4+payloadLen)
	if _, err := r.ReadAt(crcAndPayload, sectionEnd-8-4-payloadLen); err != nil {
		return nil, common.IO("sstable: read summary tail record", err)
	}
	crc := binary.LittleEndian.Uint32(crcAndPayload[0:4])
	payload := crcAndPayload[4:]
	if got := crc32.ChecksumIEEE(payload); got != crc {
		return nil, common.Corrupt("sstable: summary tail crc mismatch", nil)
	}
	minKey, maxKey, _, err := decodeSummaryPayload(payload)
	if err != nil {
		return nil, err
	}

	blocksEnd := sectionEnd - 8 - 4 - payloadLen
	return &SummaryReader{
		r:         r,
		base:      base,
		blocksEnd: blocksEnd,
		cursor:    base,
		MinKey:    minKey,
		MaxKey:    maxKey,
	}, nil
}

// Rewind resets block iteration to the first block record.
func (sr *SummaryReader) Rewind() { sr.cursor = sr.base }

// NextBlock returns the next block record, or ok == false once the block
// region is exhausted (i.e. the tail record is reached).
func (sr *SummaryReader) NextBlock() (firstKey, lastKey string, indexOffset uint64, ok bool, err error) {
	if sr.cursor >= sr.blocksEnd {
		return "", "", 0, false, nil
	}
	payload, next, err := framing.ReadAt(sr.r, sr.cursor)
	if err == io.EOF {
		return "", "", 0, false, nil
	}
	if err != nil {
		return "", "", 0, false, err
	}
	firstKey, lastKey, indexOffset, err = decodeSummaryPayload(payload)
	if err != nil {
		return "", "", 0, false, err
	}
	sr.cursor = next
	return firstKey, lastKey, indexOffset, true, nil
}
