package sstable

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexWriterReaderRoundtrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewIndexWriter(&buf)

	type rec struct {
		key    string
		offset uint64
	}
	records := []rec{{"alpha", 0}, {"beta", 42}, {"gamma", 1000}}

	var starts []int64
	for _, r := range records {
		start, err := w.Add(r.key, r.offset)
		require.NoError(t, err)
		starts = append(starts, start)
	}
	assert.Equal(t, int64(0), starts[0])
	assert.Equal(t, w.Offset(), int64(buf.Len()))

	r := NewIndexReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	for _, want := range records {
		key, offset, ok, err := r.Next()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want.key, key)
		assert.Equal(t, want.offset, offset)
	}
	_, _, ok, err := r.Next()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIndexReaderMoveTo(t *testing.T) {
	var buf bytes.Buffer
	w := NewIndexWriter(&buf)
	_, _ = w.Add("a", 1)
	secondStart, _ := w.Add("b", 2)
	_, _ = w.Add("c", 3)

	r := NewIndexReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	r.MoveTo(secondStart)
	key, offset, ok, err := r.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", key)
	assert.Equal(t, uint64(2), offset)
}

func TestIndexReaderOffsetTracksNextRecordStart(t *testing.T) {
	var buf bytes.Buffer
	w := NewIndexWriter(&buf)
	first, _ := w.Add("a", 1)
	second, _ := w.Add("b", 2)

	r := NewIndexReader(bytes.NewReader(buf.Bytes()), 0, int64(buf.Len()))
	assert.Equal(t, first, r.Offset())
	_, _, _, _ = r.Next()
	assert.Equal(t, second, r.Offset())
}
