// Package bloom implements the persistent bloom filter described in
// spec.md §4.2: power-of-two bit array, seeded 128-bit mixing hashes, framed
// persistence shared with every other codec in the engine.
package bloom

import (
	"encoding/binary"
	"math"
	"math/bits"
	"math/rand"

	"github.com/drag0dev/nebula/common"
	"github.com/drag0dev/nebula/framing"
	"github.com/spaolacci/murmur3"
)

// Filter is a probabilistic set-membership structure: no false negatives,
// a bounded false-positive rate.
type Filter struct {
	bits    []byte
	numBits uint64 // always a power of two
	seeds   []uint32
}

// New creates a filter sized for n expected items at false-positive rate p,
// per spec.md §4.2's sizing formulas.
func New(n int, p float64) *Filter {
	if n < 1 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}

	rawBits := uint64(math.Ceil(-float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)))
	numBits := nextPowerOfTwo(rawBits)
	if numBits == 0 {
		numBits = 1
	}

	numHashes := int(math.Ceil(float64(numBits) / float64(n) * math.Ln2))
	if numHashes < 1 {
		numHashes = 1
	}

	seeds := make([]uint32, numHashes)
	for i := range seeds {
		seeds[i] = rand.Uint32()
	}

	return &Filter{
		bits:    make([]byte, (numBits+7)/8),
		numBits: numBits,
		seeds:   seeds,
	}
}

func nextPowerOfTwo(n uint64) uint64 {
	if n == 0 {
		return 1
	}
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len64(n)
}

func (f *Filter) indices(key []byte) []uint64 {
	mask := f.numBits - 1
	idx := make([]uint64, len(f.seeds))
	for i, seed := range f.seeds {
		h1, h2 := murmur3.Sum128WithSeed(key, seed)
		idx[i] = (h1 ^ h2) & mask
	}
	return idx
}

// Add marks key as present.
func (f *Filter) Add(key string) {
	for _, idx := range f.indices([]byte(key)) {
		f.bits[idx/8] |= 1 << (idx % 8)
	}
}

// Check reports whether key may be present. False means definitely absent.
func (f *Filter) Check(key string) bool {
	for _, idx := range f.indices([]byte(key)) {
		if f.bits[idx/8]&(1<<(idx%8)) == 0 {
			return false
		}
	}
	return true
}

// NumBits returns the size of the underlying bit array.
func (f *Filter) NumBits() uint64 { return f.numBits }

// NumHashes returns the number of independent hash functions in use.
func (f *Filter) NumHashes() int { return len(f.seeds) }

// payload layout: numBits(8B) | numHashes(4B) | seed_0..seed_{k-1}(4B each) | bits
func (f *Filter) payload() []byte {
	size := 8 + 4 + 4*len(f.seeds) + len(f.bits)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint64(buf[0:8], f.numBits)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(f.seeds)))
	off := 12
	for _, s := range f.seeds {
		binary.LittleEndian.PutUint32(buf[off:], s)
		off += 4
	}
	copy(buf[off:], f.bits)
	return buf
}

// Serialize frames the filter as `payload_len(8B) | crc32(4B) | payload`.
func (f *Filter) Serialize() []byte {
	return framing.Frame(f.payload())
}

// Deserialize decodes a slice of exactly `crc | payload`.
func Deserialize(b []byte) (*Filter, error) {
	payload, err := framing.VerifyCRC(b)
	if err != nil {
		return nil, err
	}
	if len(payload) < 12 {
		return nil, common.Corrupt("bloom: truncated header", nil)
	}
	numBits := binary.LittleEndian.Uint64(payload[0:8])
	numHashes := binary.LittleEndian.Uint32(payload[8:12])
	off := 12
	if off+4*int(numHashes) > len(payload) {
		return nil, common.Corrupt("bloom: truncated seed table", nil)
	}
	seeds := make([]uint32, numHashes)
	for i := range seeds {
		seeds[i] = binary.LittleEndian.Uint32(payload[off:])
		off += 4
	}
	expectedBytes := int((numBits + 7) / 8)
	if len(payload)-off != expectedBytes {
		return nil, common.Corrupt("bloom: bit array size mismatch", nil)
	}
	bitArray := make([]byte, expectedBytes)
	copy(bitArray, payload[off:])

	return &Filter{bits: bitArray, numBits: numBits, seeds: seeds}, nil
}
