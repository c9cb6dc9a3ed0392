package kpfs

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
)

// Random is the uniform integer source threaded through the heuristics.
// *rand.Rand from golang.org/x/exp/rand satisfies it.
type Random interface {
	Intn(n int) int
}

// Incumbent is the best solution known to the search. Solution is nil and
// Objective is -Inf before the first one is found.
type Incumbent struct {
	Solution  *Solution
	Objective float64
}

func NoIncumbent() Incumbent {
	return Incumbent{Objective: math.Inf(-1)}
}

// Engine is the search state seen by a heuristic call.
type Engine interface {
	Bounds
	Incumbent() Incumbent
	// Submit performs the authoritative feasibility check and stores the
	// solution when it is accepted.
	Submit(sol *Solution) bool
}

// Heuristic builds a candidate from the fixings. It returns nil when it has
// nothing that beats inc by more than the tolerance. Errors are reserved for
// resource and backend failures.
type Heuristic interface {
	Name() string
	TryImprove(ctx context.Context, fix Fixings, inc Incumbent) (*Solution, error)
}

// Invoke runs one heuristic call against the engine and reports whether a
// solution was found and accepted.
func Invoke(ctx context.Context, h Heuristic, eng Engine, eps float64, inst *Instance) (bool, error) {
	fix := FixingsFromBounds(inst, eng, eps)
	sol, err := h.TryImprove(ctx, fix, eng.Incumbent())
	if err != nil || sol == nil {
		return false, err
	}
	return eng.Submit(sol), nil
}

func improves(value float64, inc Incumbent, eps float64) bool {
	return value > inc.Objective+eps
}

// HeuristicStats mirrors the per-heuristic counters of the search.
type HeuristicStats struct {
	Calls     int
	Found     int
	BestFound int
	Time      time.Duration
}

func (s HeuristicStats) MarshalZerologObject(e *zerolog.Event) {
	e.Int("calls", s.Calls).
		Int("found", s.Found).
		Int("best", s.BestFound).
		Dur("time", s.Time)
}

// NewHeuristics builds the heuristics enabled in cfg, in calling order.
func NewHeuristics(inst *Instance, cfg *Config, rng Random, backend Backend, log zerolog.Logger) []Heuristic {
	heurs := make([]Heuristic, 0, 3)
	if cfg.Random.Enabled {
		heurs = append(heurs, NewRandomConstruction(inst, cfg, rng, log))
	}
	if cfg.RelaxFix.Enabled {
		heurs = append(heurs, NewRelaxAndFix(inst, cfg, rng, backend, log))
	}
	if cfg.LNS.Enabled {
		heurs = append(heurs, NewLNS(inst, cfg, backend, log))
	}
	return heurs
}
