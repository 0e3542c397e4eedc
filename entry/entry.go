// Package entry implements the wire codec for a single (timestamp, key,
// optional value) record shared by the WAL, the memtable flush path and
// every SSTable data/index stream (spec §4.1).
package entry

import (
	"encoding/binary"
	"time"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/framing"
)

// Timestamp is a 128-bit nanosecond timestamp: Lo carries the value used in
// practice (time.Time.UnixNano fits comfortably in 64 bits until the year
// 2262), Hi is reserved so the wire format genuinely holds 128 bits and
// future callers aren't boxed into 64-bit time.
type Timestamp struct {
	Hi uint64
	Lo uint64
}

// Now returns the current time as a Timestamp.
func Now() Timestamp {
	return Timestamp{Lo: uint64(time.Now().UnixNano())}
}

// Compare orders timestamps by (Hi, Lo). It returns -1, 0 or 1.
func (t Timestamp) Compare(other Timestamp) int {
	if t.Hi != other.Hi {
		if t.Hi < other.Hi {
			return -1
		}
		return 1
	}
	switch {
	case t.Lo < other.Lo:
		return -1
	case t.Lo > other.Lo:
		return 1
	default:
		return 0
	}
}

// After reports whether t is strictly newer than other.
func (t Timestamp) After(other Timestamp) bool { return t.Compare(other) > 0 }

const timestampSize = 16

func (t Timestamp) encode(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], t.Lo)
	binary.LittleEndian.PutUint64(b[8:16], t.Hi)
}

func decodeTimestamp(b []byte) Timestamp {
	return Timestamp{
		Lo: binary.LittleEndian.Uint64(b[0:8]),
		Hi: binary.LittleEndian.Uint64(b[8:16]),
	}
}

// Entry is one (timestamp, key, optional value) triple. A nil Value denotes
// a tombstone; Tombstone must agree with (Value == nil) at all times — use
// NewTombstone to construct one instead of setting the field by hand.
type Entry struct {
	Timestamp Timestamp
	Key       string
	Value     []byte
	Tombstone bool
}

// New builds a live entry for key/value at the current time.
func New(key string, value []byte) Entry {
	return Entry{Timestamp: Now(), Key: key, Value: value}
}

// NewTombstone builds a deletion marker for key at the current time.
func NewTombstone(key string) Entry {
	return Entry{Timestamp: Now(), Key: key, Tombstone: true}
}

// payload layout: timestamp(16B) | keyLen(4B) | key | [valueLen(4B) | value].
// The trailing valueLen/value fields are entirely absent for a tombstone —
// the boolean is carried by their presence, not by a dedicated flag byte.
func (e Entry) payload() []byte {
	size := timestampSize + 4 + len(e.Key)
	if !e.Tombstone {
		size += 4 + len(e.Value)
	}
	buf := make([]byte, size)
	e.Timestamp.encode(buf[0:16])
	off := 16
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Key)))
	off += 4
	copy(buf[off:], e.Key)
	off += len(e.Key)
	if !e.Tombstone {
		binary.LittleEndian.PutUint32(buf[off:], uint32(len(e.Value)))
		off += 4
		copy(buf[off:], e.Value)
	}
	return buf
}

// Serialize frames the entry as `payload_len(8B) | crc32(4B) | payload`
// per spec.md §4.1 / §6.
func (e Entry) Serialize() []byte {
	return framing.Frame(e.payload())
}

// EncodedLen returns the number of bytes Serialize would produce.
func EncodedLen(e Entry) int {
	return framing.HeaderSize + timestampSize + 4 + len(e.Key) + func() int {
		if e.Tombstone {
			return 0
		}
		return 4 + len(e.Value)
	}()
}

// Deserialize decodes a slice of exactly `crc | payload` (the length prefix
// already consumed by the caller, e.g. a framed stream reader). It returns a
// *common.CorruptError when the CRC disagrees or the payload is malformed.
func Deserialize(b []byte) (Entry, error) {
	payload, err := framing.VerifyCRC(b)
	if err != nil {
		return Entry{}, err
	}
	return DecodePayload(payload)
}

// DecodePayload decodes a raw, already-CRC-verified payload. Stream readers
// that verify the frame via framing.ReadAt call this directly instead of
// Deserialize, to avoid checking the same CRC twice.
func DecodePayload(payload []byte) (Entry, error) {
	if len(payload) < timestampSize+4 {
		return Entry{}, common.Corrupt("entry: truncated payload", nil)
	}

	ts := decodeTimestamp(payload[0:16])
	off := 16
	keyLen := binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if keyLen > common.MaxKeySize || off+int(keyLen) > len(payload) {
		return Entry{}, common.Corrupt("entry: key length out of bounds", nil)
	}
	key := string(payload[off : off+int(keyLen)])
	off += int(keyLen)

	// A tombstone is simply the absence of the trailing valueLen/value
	// fields: nothing left after the key means the value was never written.
	if off == len(payload) {
		return Entry{Timestamp: ts, Key: key, Tombstone: true}, nil
	}

	if off+4 > len(payload) {
		return Entry{}, common.Corrupt("entry: truncated value length", nil)
	}
	valueLen := binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if int64(valueLen) > common.MaxValueSize || off+int(valueLen) > len(payload) {
		return Entry{}, common.Corrupt("entry: value length out of bounds", nil)
	}
	value := make([]byte, valueLen)
	copy(value, payload[off:off+int(valueLen)])
	off += int(valueLen)
	if off != len(payload) {
		return Entry{}, common.Corrupt("entry: trailing bytes after payload", nil)
	}
	return Entry{Timestamp: ts, Key: key, Value: value}, nil
}

// Equal compares two entries field by field (used by roundtrip tests).
func (e Entry) Equal(other Entry) bool {
	if e.Key != other.Key || e.Tombstone != other.Tombstone {
		return false
	}
	if e.Timestamp != other.Timestamp {
		return false
	}
	if e.Tombstone {
		return true
	}
	if len(e.Value) != len(other.Value) {
		return false
	}
	for i := range e.Value {
		if e.Value[i] != other.Value[i] {
			return false
		}
	}
	return true
}
