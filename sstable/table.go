package sstable

import (
	"os"

	"github.com/drag0dev/nebula/entry"
)

// LookupResult distinguishes, for a single table's point lookup, "no
// record for this key" (the caller should keep probing older tables)
// from "a tombstone for this key" (the caller must stop — spec.md §4.4
// says a tombstone hit is a definitive absent, not a cue to look deeper).
type LookupResult int

const (
	LookupMiss LookupResult = iota
	LookupHit
	LookupTombstone
)

// Table is the read-side contract shared by the multi-file and single-file
// layouts, letting the LSM container traverse either without caring which
// one backs a given table reference.
type Table interface {
	Get(key string) (entry.Entry, LookupResult, error)
	MayContain(key string) bool
	OpenSummary() (*SummaryReader, func() error, error)
	OpenIndex() (*IndexReader, func() error, error)
	OpenData() (*DataReader, func() error, error)
}

// OpenTable opens path as a multi-file table (a directory) or a
// single-file table (a regular file), detected by stat.
func OpenTable(path string) (Table, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return OpenMultiFileTable(path)
	}
	return OpenSingleFileTable(path)
}
