package sstable

import (
	"io"

	"github.com/drag0dev/nebula/merkle"
)

// WriteMetadata serializes root as the sole contents of a metadata stream.
func WriteMetadata(w io.Writer, root merkle.Root) error {
	_, err := w.Write(root.Serialize())
	return err
}

// ReadMetadata decodes a metadata stream back into its Merkle root.
func ReadMetadata(r io.ReaderAt, base, sectionLen int64) (merkle.Root, error) {
	buf := make([]byte, sectionLen)
	if _, err := r.ReadAt(buf, base); err != nil {
		return merkle.Root{}, err
	}
	return merkle.Deserialize(buf)
}
