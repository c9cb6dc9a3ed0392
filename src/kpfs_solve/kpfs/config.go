package kpfs

import (
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

type RandomConfig struct {
	Enabled bool `yaml:"enabled"`
}

type RelaxFixConfig struct {
	Enabled bool `yaml:"enabled"`
	// BlockFraction p: K = ceil(1/p) blocks of ceil(p*n) items.
	BlockFraction float64       `yaml:"block_fraction"`
	BlockTime     time.Duration `yaml:"block_time"`
	BlockNodes    int           `yaml:"block_nodes"`
}

type LNSConfig struct {
	Enabled bool `yaml:"enabled"`
	// DestroyFraction q: floor(q*|incumbent items|) are released.
	DestroyFraction float64       `yaml:"destroy_fraction"`
	Time            time.Duration `yaml:"time"`
	Nodes           int           `yaml:"nodes"`
	Solutions       int           `yaml:"solutions"`
	Removal         Ordering      `yaml:"removal"`
}

// Config is passed explicitly to the search and every heuristic.
type Config struct {
	Seed        uint64        `yaml:"seed"`
	Epsilon     float64       `yaml:"epsilon"`
	TimeLimit   time.Duration `yaml:"time_limit"`
	NodeLimit   int           `yaml:"nodes_limit"`
	DisplayFreq int           `yaml:"display_freq"`
	Verbose     bool          `yaml:"verbose"`

	// heuristics run at depth d when d >= HeurFreqOfs, (d-HeurFreqOfs) is a
	// multiple of HeurFreq and HeurMaxDepth < 0 or d <= HeurMaxDepth.
	HeurFreq     int `yaml:"heur_freq"`
	HeurFreqOfs  int `yaml:"heur_freqofs"`
	HeurMaxDepth int `yaml:"heur_maxdepth"`

	Random   RandomConfig   `yaml:"random"`
	RelaxFix RelaxFixConfig `yaml:"relax_fix"`
	LNS      LNSConfig      `yaml:"lns"`
}

func DefaultConfig() *Config {
	return &Config{
		Epsilon:      1e-6,
		TimeLimit:    1800 * time.Second,
		NodeLimit:    -1,
		DisplayFreq:  50,
		HeurFreq:     1,
		HeurFreqOfs:  0,
		HeurMaxDepth: -1,
		Random:       RandomConfig{Enabled: true},
		RelaxFix: RelaxFixConfig{
			Enabled:       true,
			BlockFraction: 0.3,
			BlockTime:     30 * time.Second,
			BlockNodes:    -1,
		},
		LNS: LNSConfig{
			Enabled:         true,
			DestroyFraction: 0.3,
			Time:            30 * time.Second,
			Nodes:           -1,
			Solutions:       1,
			Removal:         Ordering{Key: ByWeight, Order: Descending},
		},
	}
}

func (cfg *Config) Validate() error {
	switch {
	case cfg.Epsilon <= 0 || cfg.Epsilon >= 0.5:
		return errors.Wrapf(ErrInvalidConfig, "epsilon %g out of (0,0.5)", cfg.Epsilon)
	case cfg.TimeLimit < 0 || cfg.TimeLimit > 7200*time.Second:
		return errors.Wrapf(ErrInvalidConfig, "time limit %v out of [0,2h]", cfg.TimeLimit)
	case cfg.NodeLimit < -1 || cfg.NodeLimit == 0:
		return errors.Wrapf(ErrInvalidConfig, "node limit %d must be -1 or positive", cfg.NodeLimit)
	case cfg.DisplayFreq < -1:
		return errors.Wrapf(ErrInvalidConfig, "display frequency %d below -1", cfg.DisplayFreq)
	case cfg.HeurFreq < -1 || cfg.HeurFreq > 10:
		return errors.Wrapf(ErrInvalidConfig, "heuristic frequency %d out of [-1,10]", cfg.HeurFreq)
	case cfg.HeurFreqOfs < 0 || cfg.HeurFreqOfs > 10:
		return errors.Wrapf(ErrInvalidConfig, "heuristic frequency offset %d out of [0,10]", cfg.HeurFreqOfs)
	case cfg.HeurMaxDepth < -1:
		return errors.Wrapf(ErrInvalidConfig, "heuristic max depth %d below -1", cfg.HeurMaxDepth)
	case cfg.RelaxFix.BlockFraction <= 0 || cfg.RelaxFix.BlockFraction > 1:
		return errors.Wrapf(ErrInvalidConfig, "relax-and-fix block fraction %g out of (0,1]", cfg.RelaxFix.BlockFraction)
	case cfg.RelaxFix.BlockTime < 0 || cfg.RelaxFix.BlockTime > time.Hour:
		return errors.Wrapf(ErrInvalidConfig, "relax-and-fix block time %v out of [0,1h]", cfg.RelaxFix.BlockTime)
	case cfg.LNS.DestroyFraction <= 0 || cfg.LNS.DestroyFraction > 1:
		return errors.Wrapf(ErrInvalidConfig, "lns destroy fraction %g out of (0,1]", cfg.LNS.DestroyFraction)
	case cfg.LNS.Time < 0 || cfg.LNS.Time > time.Hour:
		return errors.Wrapf(ErrInvalidConfig, "lns time %v out of [0,1h]", cfg.LNS.Time)
	case cfg.LNS.Solutions < 0:
		return errors.Wrapf(ErrInvalidConfig, "lns solution limit %d is negative", cfg.LNS.Solutions)
	}
	return nil
}

// HeuristicsAt reports whether heuristics are due at the given node depth.
func (cfg *Config) HeuristicsAt(depth int) bool {
	if cfg.HeurFreq < 0 || depth < cfg.HeurFreqOfs {
		return false
	}
	if cfg.HeurMaxDepth >= 0 && depth > cfg.HeurMaxDepth {
		return false
	}
	if cfg.HeurFreq == 0 {
		return depth == cfg.HeurFreqOfs
	}
	return (depth-cfg.HeurFreqOfs)%cfg.HeurFreq == 0
}

// LoadConfig reads a YAML file over the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}
