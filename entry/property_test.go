package entry

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestEntryCodecProperties verifies the record codec's core invariants hold
// for arbitrary keys and values, not just the handful exercised by the
// table-driven tests.
func TestEntryCodecProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("serialize then deserialize recovers a live entry exactly", prop.ForAll(
		func(key string, value []byte, lo uint64) bool {
			e := Entry{Timestamp: Timestamp{Lo: lo}, Key: key, Value: value}
			b := e.Serialize()
			got, err := Deserialize(b[8:])
			if err != nil {
				return false
			}
			return e.Equal(got)
		},
		gen.AlphaString(),
		gen.SliceOf(gen.UInt8()),
		gen.UInt64(),
	))

	properties.Property("a tombstone never carries a value after decode", prop.ForAll(
		func(key string, lo uint64) bool {
			e := NewTombstone(key)
			e.Timestamp = Timestamp{Lo: lo}
			got, err := Deserialize(e.Serialize()[8:])
			if err != nil {
				return false
			}
			return got.Tombstone && got.Value == nil
		},
		gen.AlphaString(),
		gen.UInt64(),
	))

	properties.Property("a live entry's payload is always exactly 4+len(value) bytes longer than a tombstone's for the same key", prop.ForAll(
		func(key string, value []byte) bool {
			tombstone := NewTombstone(key)
			live := Entry{Timestamp: tombstone.Timestamp, Key: key, Value: value}
			return len(live.payload()) == len(tombstone.payload())+4+len(value)
		},
		gen.AlphaString(),
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}
