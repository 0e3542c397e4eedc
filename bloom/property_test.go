package bloom

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestBloomFilterSoundness verifies the one property a bloom filter must
// never violate: no false negatives, for arbitrary key sets.
func TestBloomFilterSoundness(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50

	properties := gopter.NewProperties(parameters)

	properties.Property("every added key reports present, regardless of insertion order", prop.ForAll(
		func(keys []string) bool {
			if len(keys) == 0 {
				return true
			}
			f := New(len(keys), 0.01)
			for _, k := range keys {
				f.Add(k)
			}
			for _, k := range keys {
				if !f.Check(k) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.Property("serialization roundtrip preserves membership for every added key", prop.ForAll(
		func(n int) bool {
			if n < 1 {
				n = 1
			}
			f := New(n, 0.01)
			keys := make([]string, n)
			for i := range keys {
				keys[i] = fmt.Sprintf("k%d", i)
				f.Add(keys[i])
			}
			got, err := Deserialize(f.Serialize()[8:])
			if err != nil {
				return false
			}
			for _, k := range keys {
				if !got.Check(k) {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 200),
	))

	properties.TestingRun(t)
}
