// Package merkle computes the Merkle root stored in an SSTable's metadata
// file: a binary hash tree over the ordered value bytes of the table's data
// section (spec.md §3/§4.3), grounded on the teacher pack's own Merkle tree
// (mrsladoje-HundDB/structures/merkle_tree), generalized to persist only the
// root — the metadata file never needs intermediate nodes or proofs.
package merkle

import (
	"crypto/sha256"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/framing"
)

// Root is a 32-byte SHA-256 digest.
type Root [32]byte

// Compute builds the tree over values in order and returns its root. A nil
// value (tombstone) is mapped to an empty byte slice before hashing, per
// spec.md §3.
func Compute(values [][]byte) Root {
	if len(values) == 0 {
		return Root(sha256.Sum256(nil))
	}

	level := make([]Root, len(values))
	for i, v := range values {
		if v == nil {
			v = []byte{}
		}
		level[i] = Root(sha256.Sum256(v))
	}

	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, Root{})
		}
		next := make([]Root, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			combined := make([]byte, 64)
			copy(combined[0:32], level[i][:])
			copy(combined[32:64], level[i+1][:])
			next[i/2] = Root(sha256.Sum256(combined))
		}
		level = next
	}
	return level[0]
}

// Equal reports whether two roots match.
func (r Root) Equal(other Root) bool { return r == other }

// Serialize frames the root as `payload_len(8B) | crc32(4B) | payload`,
// payload being the raw 32 digest bytes.
func (r Root) Serialize() []byte {
	return framing.Frame(r[:])
}

// Deserialize decodes a slice of exactly `crc | payload`.
func Deserialize(b []byte) (Root, error) {
	payload, err := framing.VerifyCRC(b)
	if err != nil {
		return Root{}, err
	}
	if len(payload) != 32 {
		return Root{}, common.Corrupt("merkle: root must be 32 bytes", nil)
	}
	var r Root
	copy(r[:], payload)
	return r, nil
}
