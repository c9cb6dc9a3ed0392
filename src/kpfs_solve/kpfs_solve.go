package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"kp_with_forfeits/src/kpfs_solve/highsolver"
	"kp_with_forfeits/src/kpfs_solve/kpfs"

	"github.com/rs/zerolog"
	"golang.org/x/exp/rand"
)

type options struct {
	configPath string
	backend    string
	logLevel   string
	paths      []string

	seed       uint64
	timeLimit  time.Duration
	nodeLimit  int
	noRandom   bool
	noRF       bool
	noLNS      bool
	rfFraction float64
	lnsFrac    float64
	removal    kpfs.Ordering
	verbose    bool
}

// applyFlags copies onto cfg only the flags given on the command line, so
// that they override the config file.
func (o *options) applyFlags(cfg *kpfs.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Seed = o.seed
		case "time":
			cfg.TimeLimit = o.timeLimit
		case "nodes":
			cfg.NodeLimit = o.nodeLimit
		case "no-random":
			cfg.Random.Enabled = !o.noRandom
		case "no-rf":
			cfg.RelaxFix.Enabled = !o.noRF
		case "no-lns":
			cfg.LNS.Enabled = !o.noLNS
		case "rf-p":
			cfg.RelaxFix.BlockFraction = o.rfFraction
		case "lns-q":
			cfg.LNS.DestroyFraction = o.lnsFrac
		case "lns-removal":
			cfg.LNS.Removal = o.removal
		case "verbose":
			cfg.Verbose = o.verbose
		}
	})
}

func newBackend(name string, log zerolog.Logger) (kpfs.Backend, error) {
	switch name {
	case "highs":
		return highsolver.Backend{Log: log}, nil
	case "simplex":
		return kpfs.Simplex{Log: log}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func main() {
	var o options
	o.removal = kpfs.DefaultConfig().LNS.Removal

	flag.Func("inst", "a list of instance file paths, separated by a whitespace", func(s string) error {
		o.paths = strings.Fields(s)
		return nil
	})
	flag.StringVar(&o.configPath, "config", "", "YAML configuration file")
	flag.StringVar(&o.backend, "backend", "highs", "Sub-solver backend: highs or simplex")
	flag.StringVar(&o.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Uint64Var(&o.seed, "seed", 0, "Random seed, 0 picks one from the clock")
	flag.DurationVar(&o.timeLimit, "time", 0, "Search time limit")
	flag.IntVar(&o.nodeLimit, "nodes", -1, "Search node limit, -1 for none")
	flag.BoolVar(&o.noRandom, "no-random", false, "Disable the random construction heuristic")
	flag.BoolVar(&o.noRF, "no-rf", false, "Disable the relax-and-fix heuristic")
	flag.BoolVar(&o.noLNS, "no-lns", false, "Disable the LNS heuristic")
	flag.Float64Var(&o.rfFraction, "rf-p", 0, "Relax-and-fix block fraction")
	flag.Float64Var(&o.lnsFrac, "lns-q", 0, "LNS destroy fraction")
	flag.TextVar(&o.removal, "lns-removal", o.removal, "LNS removal ordering, key:order with key in value, weight, ratio")
	flag.BoolVar(&o.verbose, "verbose", false, "Show sub-solver output")

	flag.Parse()

	if len(o.paths) == 0 {
		fmt.Fprintln(os.Stderr, "Must specify at least a path")
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(o.logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid log level: %v\n", err)
		os.Exit(1)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()

	cfg := kpfs.DefaultConfig()
	if o.configPath != "" {
		if cfg, err = kpfs.LoadConfig(o.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	o.applyFlags(cfg)
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	backend, err := newBackend(o.backend, log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	for _, p := range o.paths {
		inst, err := kpfs.LoadInstance(p)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error for instance \"%v\": %v. Skipping...\n", p, err)
			continue
		}

		fmt.Printf("Solving %v...\n", p)
		instLog := log.With().Str("instance", p).Uint64("seed", cfg.Seed).Logger()
		heurs := kpfs.NewHeuristics(inst, cfg, rng, backend, instLog)
		search := kpfs.NewSearch(inst, cfg, backend, heurs, instLog)
		res, err := search.Run(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "An error occured while solving instance \"%v\": %v\n", p, err)
		}
		if res != nil {
			fmt.Printf("Instance %v:\n%v\n", p, res)
		}
		fmt.Println()
	}
}
