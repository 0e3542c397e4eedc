package testutil

import (
	"os"
	"testing"
)

// TempDir creates a temporary data directory for a test and schedules its
// removal on cleanup.
func TempDir(t *testing.T) string {
	dir, err := os.MkdirTemp("", "nebula-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}
