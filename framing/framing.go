// Package framing implements the one binary framing rule spec.md §4.1/§6
// applies to every stream in the engine: `payload_len(8B LE) | crc32(4B LE)
// | payload`. entry, sstable/index and sstable/summary all build their
// records out of this primitive instead of repeating the length+crc
// bookkeeping inline, the way the teacher's WAL/sstable code does by hand.
package framing

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/drag0dev/nebula/common"
)

// HeaderSize is the number of bytes occupied by payload_len + crc32.
const HeaderSize = 8 + 4

// Frame wraps payload as `len | crc | payload`.
func Frame(payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint64(out[0:8], uint64(len(payload)))
	crc := crc32.ChecksumIEEE(payload)
	binary.LittleEndian.PutUint32(out[8:12], crc)
	copy(out[12:], payload)
	return out
}

// Unframe validates and strips the `len | crc` header from a full frame
// (not just `crc | payload` — callers that already stripped the length
// prefix should call VerifyCRC directly).
func Unframe(frame []byte) ([]byte, error) {
	if len(frame) < HeaderSize {
		return nil, common.Corrupt("framing: frame shorter than header", nil)
	}
	payloadLen := binary.LittleEndian.Uint64(frame[0:8])
	if uint64(len(frame)-HeaderSize) != payloadLen {
		return nil, common.Corrupt("framing: length prefix disagrees with frame size", nil)
	}
	return VerifyCRC(frame[8:])
}

// VerifyCRC checks `crc | payload` (length prefix already consumed) and
// returns payload on success.
func VerifyCRC(crcAndPayload []byte) ([]byte, error) {
	if len(crcAndPayload) < 4 {
		return nil, common.Corrupt("framing: truncated crc", nil)
	}
	crc := binary.LittleEndian.Uint32(crcAndPayload[0:4])
	payload := crcAndPayload[4:]
	if got := crc32.ChecksumIEEE(payload); got != crc {
		return nil, common.Corrupt("framing: crc mismatch", nil)
	}
	return payload, nil
}

// ReadAt reads one frame starting at offset from r, returning the verified
// payload and the offset immediately following the frame. A plain,
// unwrapped io.EOF signals a clean end of stream (nothing to read at
// offset, or a zero length prefix), matching the
// "reading past the end yields termination, not error" rule in spec.md §4.3.
func ReadAt(r io.ReaderAt, offset int64) (payload []byte, next int64, err error) {
	lenBuf := make([]byte, 8)
	n, err := r.ReadAt(lenBuf, offset)
	if n == 0 && err != nil {
		return nil, offset, io.EOF
	}
	if err != nil && err != io.EOF {
		return nil, offset, common.IO("framing: read length prefix", err)
	}
	if n < 8 {
		return nil, offset, common.Corrupt("framing: truncated length prefix", nil)
	}
	payloadLen := binary.LittleEndian.Uint64(lenBuf)
	if payloadLen == 0 {
		// Zero-length records never occur on a successfully-written stream;
		// treat as end of valid data (covers WAL zero-padded tails).
		return nil, offset, io.EOF
	}

	rest := make([]byte, 4+payloadLen)
	if _, err := r.ReadAt(rest, offset+8); err != nil {
		return nil, offset, common.Corrupt("framing: truncated frame", err)
	}
	payload, err = VerifyCRC(rest)
	if err != nil {
		return nil, offset, err
	}
	return payload, offset + 8 + int64(len(rest)), nil
}
