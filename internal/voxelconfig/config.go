// Package voxelconfig loads the yaml-file configuration volumectl and
// statsserver start from, grounded on the teacher's tuning package:
// a flat struct, yaml tags, a single Load(path) that reads and unmarshals.
package voxelconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk shape of a volume's operating parameters.
type Config struct {
	BlockSide              uint16 `yaml:"block_side"`
	TargetMemoryLimitBytes int64  `yaml:"target_memory_limit_bytes"`
	Codec                  string `yaml:"codec"` // "passthrough" or "zstd"

	ValidRegion struct {
		Lower [3]int32 `yaml:"lower"`
		Upper [3]int32 `yaml:"upper"`
	} `yaml:"valid_region"`

	Pager struct {
		Kind string `yaml:"kind"` // "none", "disk", or "sqlite"
		Path string `yaml:"path"`
	} `yaml:"pager"`

	Stats struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"stats"`
}

// Load reads and parses a voxelconfig.Config from path.
func Load(path string) (Config, error) {
	var c Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("voxelconfig: %w", err)
	}
	return c, nil
}
