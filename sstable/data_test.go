package sstable

import (
	"bytes"
	"testing"

	"github.com/drag0dev/nebula/entry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataWriterReaderRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewDataWriter(&buf)

	entries := []entry.Entry{
		entry.New("a", []byte("1")),
		entry.NewTombstone("b"),
		entry.New("c", []byte("3")),
	}
	var offsets []int64
	for _, e := range entries {
		off, err := w.Add(e)
		require.NoError(t, err)
		offsets = append(offsets, off)
	}

	r := NewDataReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	for _, want := range entries {
		got, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, want.Equal(got))
	}
	_, ok, err := r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDataReaderReadAtDoesNotDisturbCursor(t *testing.T) {
	var buf bytes.Buffer
	w := NewDataWriter(&buf)
	_, _ = w.Add(entry.New("a", []byte("1")))
	secondOffset, _ := w.Add(entry.New("b", []byte("2")))

	r := NewDataReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	first, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", first.Key)

	direct, err := r.ReadAt(secondOffset)
	require.NoError(t, err)
	assert.Equal(t, "b", direct.Key)

	second, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", second.Key)
}

func TestDataReaderOffsetTracksNextEntryStart(t *testing.T) {
	var buf bytes.Buffer
	w := NewDataWriter(&buf)
	first, _ := w.Add(entry.New("a", []byte("1")))
	second, _ := w.Add(entry.New("b", []byte("2")))

	r := NewDataReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	assert.Equal(t, first, r.Offset())
	_, _, _ = r.Next()
	assert.Equal(t, second, r.Offset())
}
