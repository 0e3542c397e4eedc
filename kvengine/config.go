// Package kvengine is the facade that wires the WAL, memtable and LSM
// container into the operation surface spec.md §6 exports: Put, Delete,
// Get, List, RangeScan, Quit.
package kvengine

import (
	"os"

	"github.com/drag0dev/nebula/memtable"
	"gopkg.in/yaml.v3"
)

// Config is the core's own typed, loadable tunable surface. The external
// `data/config.json` collaborator spec.md §6 mentions owns operator-facing
// concerns; this is the subset the engine itself needs to construct
// itself, kept separate the way the teacher's Config struct is a plain
// literal passed to New.
type Config struct {
	DataDir          string  `yaml:"data_dir"`
	FPProb           float64 `yaml:"fp_prob"`
	SummaryNth       int     `yaml:"summary_nth"`
	SizeThreshold    int     `yaml:"size_threshold"`
	NumberOfLevels   int     `yaml:"number_of_levels"`
	MemtableCapacity int     `yaml:"memtable_capacity"`
	MemtableBacking  string  `yaml:"memtable_backing"` // "skiplist" or "tree"
	SingleFileTables bool    `yaml:"single_file_tables"`
	WALSegmentBytes  int     `yaml:"wal_segment_bytes"`
}

// Default returns sane defaults rooted at dataDir, mirroring the teacher's
// DefaultConfig(dataDir) constructor.
func Default(dataDir string) Config {
	return Config{
		DataDir:          dataDir,
		FPProb:           0.01,
		SummaryNth:       8,
		SizeThreshold:    4,
		NumberOfLevels:   5,
		MemtableCapacity: 1000,
		MemtableBacking:  "skiplist",
		SingleFileTables: false,
		WALSegmentBytes:  4 << 20,
	}
}

// LoadConfig reads a YAML config file over Default("data"): a field the
// file does not mention keeps its default value, and a field the file
// sets, even to zero, takes the file's value.
func LoadConfig(path string) (Config, error) {
	cfg := Default("data")
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) memtableBacking() memtable.Backing {
	if c.MemtableBacking == "tree" {
		return memtable.BackingTree
	}
	return memtable.BackingSkipList
}
