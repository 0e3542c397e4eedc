package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeIsDeterministic(t *testing.T) {
	values := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	r1 := Compute(values)
	r2 := Compute(values)
	assert.True(t, r1.Equal(r2))
}

func TestComputeChangesWithValues(t *testing.T) {
	r1 := Compute([][]byte{[]byte("a"), []byte("b")})
	r2 := Compute([][]byte{[]byte("a"), []byte("x")})
	assert.False(t, r1.Equal(r2))
}

func TestComputeTreatsNilAsEmpty(t *testing.T) {
	withNil := Compute([][]byte{[]byte("a"), nil})
	withEmpty := Compute([][]byte{[]byte("a"), {}})
	assert.True(t, withNil.Equal(withEmpty))
}

func TestComputeHandlesOddCount(t *testing.T) {
	// odd-length levels must pad rather than panic
	values := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	assert.NotPanics(t, func() { Compute(values) })
}

func TestComputeEmpty(t *testing.T) {
	r := Compute(nil)
	assert.Equal(t, Compute(nil), r)
}

func TestSerializeDeserializeRoundtrip(t *testing.T) {
	r := Compute([][]byte{[]byte("a"), []byte("b")})
	b := r.Serialize()

	got, err := Deserialize(b[8:])
	require.NoError(t, err)
	assert.True(t, r.Equal(got))
}

func TestDeserializeDetectsCorruption(t *testing.T) {
	r := Compute([][]byte{[]byte("a")})
	b := r.Serialize()
	b[len(b)-1] ^= 0xFF

	_, err := Deserialize(b[8:])
	require.Error(t, err)
}
