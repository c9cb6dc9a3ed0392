package kpfs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, Ordering{ByWeight, Descending}, cfg.LNS.Removal)
	assert.Equal(t, 1, cfg.LNS.Solutions)
}

func TestConfigValidateRanges(t *testing.T) {
	cases := map[string]func(*Config){
		"epsilon":        func(c *Config) { c.Epsilon = 0 },
		"time limit":     func(c *Config) { c.TimeLimit = 3 * time.Hour },
		"node limit":     func(c *Config) { c.NodeLimit = 0 },
		"heur freq":      func(c *Config) { c.HeurFreq = 11 },
		"heur freqofs":   func(c *Config) { c.HeurFreqOfs = -1 },
		"block fraction": func(c *Config) { c.RelaxFix.BlockFraction = 0 },
		"block time":     func(c *Config) { c.RelaxFix.BlockTime = -time.Second },
		"destroy":        func(c *Config) { c.LNS.DestroyFraction = 1.5 },
		"lns solutions":  func(c *Config) { c.LNS.Solutions = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestHeuristicsAt(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HeurFreq, cfg.HeurFreqOfs, cfg.HeurMaxDepth = 2, 1, 5
	due := make([]int, 0)
	for depth, depthN := 0, 10; depth < depthN; depth++ {
		if cfg.HeuristicsAt(depth) {
			due = append(due, depth)
		}
	}
	assert.Equal(t, []int{1, 3, 5}, due)

	cfg.HeurFreq = 0
	assert.True(t, cfg.HeuristicsAt(1))
	assert.False(t, cfg.HeuristicsAt(3))

	cfg.HeurFreq = -1
	assert.False(t, cfg.HeuristicsAt(1))
}

func writeConfig(t *testing.T, text string) string {
	path := filepath.Join(t.TempDir(), "kpfs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
seed: 42
time_limit: 10s
relax_fix:
  enabled: false
  block_fraction: 0.5
lns:
  destroy_fraction: 0.2
  removal: ratio:asc
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, 10*time.Second, cfg.TimeLimit)
	assert.False(t, cfg.RelaxFix.Enabled)
	assert.Equal(t, 0.5, cfg.RelaxFix.BlockFraction)
	assert.Equal(t, 30*time.Second, cfg.RelaxFix.BlockTime)
	assert.Equal(t, 0.2, cfg.LNS.DestroyFraction)
	assert.Equal(t, Ordering{ByRatio, Ascending}, cfg.LNS.Removal)
	assert.True(t, cfg.Random.Enabled)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "unknown_field: 1\n"))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "lns:\n  destroy_fraction: 2\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(writeConfig(t, "lns:\n  removal: size\n"))
	assert.Error(t, err)

	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
