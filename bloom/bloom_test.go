package bloom

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoFalseNegatives(t *testing.T) {
	keys := make([]string, 500)
	for i := range keys {
		keys[i] = fmt.Sprintf("key-%04d", i)
	}

	f := New(len(keys), 0.01)
	for _, k := range keys {
		f.Add(k)
	}
	for _, k := range keys {
		assert.True(t, f.Check(k), "every added key must report present")
	}
}

func TestFalsePositiveRateIsBounded(t *testing.T) {
	const n = 2000
	f := New(n, 0.01)
	for i := 0; i < n; i++ {
		f.Add(fmt.Sprintf("present-%d", i))
	}

	falsePositives := 0
	const trials = 5000
	for i := 0; i < trials; i++ {
		if f.Check(fmt.Sprintf("absent-%d", i)) {
			falsePositives++
		}
	}
	// generous bound: sized for 1%, allow up to 5x that before calling it broken
	assert.Less(t, falsePositives, trials/20)
}

func TestNumBitsIsPowerOfTwo(t *testing.T) {
	for _, n := range []int{1, 3, 100, 1000, 999999} {
		f := New(n, 0.01)
		nb := f.NumBits()
		assert.Equal(t, uint64(0), nb&(nb-1), "NumBits must be a power of two for n=%d", n)
	}
}

func TestSerializeDeserializeRoundtrip(t *testing.T) {
	f := New(100, 0.01)
	for i := 0; i < 100; i++ {
		f.Add(fmt.Sprintf("k%d", i))
	}

	b := f.Serialize()
	got, err := Deserialize(b[8:])
	require.NoError(t, err)

	assert.Equal(t, f.NumBits(), got.NumBits())
	assert.Equal(t, f.NumHashes(), got.NumHashes())
	for i := 0; i < 100; i++ {
		assert.True(t, got.Check(fmt.Sprintf("k%d", i)))
	}
}

func TestDeserializeDetectsCorruption(t *testing.T) {
	f := New(10, 0.01)
	f.Add("a")
	b := f.Serialize()
	b[len(b)-1] ^= 0xFF

	_, err := Deserialize(b[8:])
	require.Error(t, err)
}
