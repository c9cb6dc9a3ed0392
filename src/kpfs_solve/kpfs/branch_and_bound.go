package kpfs

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
)

type searchNode struct {
	lower []float64
	upper []float64
	depth int
}

// Search is a depth-first branch and bound over the LP relaxation. It is the
// Engine the heuristics are invoked against.
type Search struct {
	inst    *Instance
	cfg     *Config
	backend Backend
	heurs   []Heuristic
	log     zerolog.Logger
	runID   uuid.UUID

	lower     []float64
	upper     []float64
	incumbent Incumbent
	submitted int
}

// SearchResult summarizes a finished search. Status is StatusOptimal when
// the tree was exhausted and StatusUnknown when a node relaxation failed.
type SearchResult struct {
	RunID      uuid.UUID
	Status     SubStatus
	Incumbent  Incumbent
	Nodes      int
	MaxDepth   int
	Time       time.Duration
	Heuristics map[string]HeuristicStats
}

func (r *SearchResult) String() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Run %v: %v after %d nodes (max depth %d) in %v\n",
		r.RunID, r.Status, r.Nodes, r.MaxDepth, r.Time.Round(time.Millisecond))
	names := make([]string, 0, len(r.Heuristics))
	for name := range r.Heuristics {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		st := r.Heuristics[name]
		fmt.Fprintf(&builder, "  %-8s calls %d, found %d, best %d, time %v\n",
			name, st.Calls, st.Found, st.BestFound, st.Time.Round(time.Microsecond))
	}
	if r.Incumbent.Solution == nil {
		builder.WriteString("No solution found")
	} else {
		builder.WriteString(r.Incumbent.Solution.String())
	}
	return builder.String()
}

func NewSearch(inst *Instance, cfg *Config, backend Backend, heurs []Heuristic, log zerolog.Logger) *Search {
	runID := uuid.New()
	n := inst.NumItems()
	s := &Search{
		inst:      inst,
		cfg:       cfg,
		backend:   backend,
		heurs:     heurs,
		runID:     runID,
		log:       log.With().Str("run", runID.String()).Logger(),
		lower:     make([]float64, n),
		upper:     make([]float64, n),
		incumbent: NoIncumbent(),
	}
	for i := range s.upper {
		s.upper[i] = 1
	}
	return s
}

func (s *Search) LowerBound(item int) float64 {
	return s.lower[item]
}

func (s *Search) UpperBound(item int) float64 {
	return s.upper[item]
}

func (s *Search) Incumbent() Incumbent {
	return s.incumbent
}

func (s *Search) IncumbentObjective() float64 {
	return s.incumbent.Objective
}

// Submit re-evaluates sol from its selection and stores it when it respects
// capacity, budget and the current node bounds, and strictly improves the
// incumbent.
func (s *Search) Submit(sol *Solution) bool {
	if sol == nil || sol.Items == nil || sol.Items.Len() != s.inst.NumItems() {
		return false
	}
	s.submitted++
	eps := s.cfg.Epsilon

	ev := s.inst.Evaluate(sol.Items)
	if !s.inst.Feasible(ev, eps) {
		s.log.Debug().Str("heuristic", sol.Heuristic).Msg("rejected infeasible solution")
		return false
	}
	for i, iN := 0, s.inst.NumItems(); i < iN; i++ {
		x := sol.Items.AtVec(i)
		if x < s.lower[i]-eps || x > s.upper[i]+eps {
			s.log.Debug().Str("heuristic", sol.Heuristic).Int("item", i).Msg("rejected solution outside node bounds")
			return false
		}
	}
	if !improves(ev.Value, s.incumbent, eps) {
		return false
	}

	stored := &Solution{
		Items:     mat.VecDenseCopyOf(sol.Items),
		Excess:    ev.Excess,
		Value:     ev.Value,
		Heuristic: sol.Heuristic,
	}
	s.incumbent = Incumbent{Solution: stored, Objective: ev.Value}
	s.log.Info().Str("heuristic", sol.Heuristic).Float64("z", ev.Value).Msg("new incumbent")
	return true
}

func (s *Search) relax(ctx context.Context) (*SubResult, error) {
	r := NewRestriction(FixingsFromBounds(s.inst, s, s.cfg.Epsilon), Continuous)
	sub := s.backend.Bounded(Limits{NodeLimit: -1, SolutionLimit: -1, Verbose: s.cfg.Verbose})
	if err := sub.Load(s.inst, r); err != nil {
		return nil, errors.Wrap(err, "loading node relaxation")
	}
	res, err := sub.Solve(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "solving node relaxation")
	}
	return res, nil
}

// runHeuristics calls every heuristic once. A failing heuristic only loses
// this call; the search goes on with the others.
func (s *Search) runHeuristics(ctx context.Context, stats map[string]HeuristicStats) {
	for _, h := range s.heurs {
		st := stats[h.Name()]
		st.Calls++
		before := s.submitted
		start := time.Now()
		ok, err := Invoke(ctx, h, s, s.cfg.Epsilon, s.inst)
		st.Time += time.Since(start)
		if err != nil {
			s.log.Warn().Err(err).Str("heuristic", h.Name()).Msg("heuristic failed")
			stats[h.Name()] = st
			continue
		}
		if s.submitted > before {
			st.Found++
		}
		if ok {
			st.BestFound++
		}
		stats[h.Name()] = st
	}
}

// Run explores the tree until it is exhausted or a limit is hit. The x=1
// child of a branching is explored first. When a node relaxation fails the
// error comes back together with the partial result.
func (s *Search) Run(ctx context.Context) (*SearchResult, error) {
	if s.cfg.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TimeLimit)
		defer cancel()
	}

	n := s.inst.NumItems()
	eps := s.cfg.Epsilon
	start := time.Now()
	result := &SearchResult{RunID: s.runID, Heuristics: make(map[string]HeuristicStats, len(s.heurs))}
	for _, h := range s.heurs {
		result.Heuristics[h.Name()] = HeuristicStats{}
	}
	integral := make([]bool, n)
	for i := range integral {
		integral[i] = true
	}

	s.log.Info().
		Int("items", n).
		Int("sets", s.inst.NumSets()).
		Int("capacity", s.inst.Capacity).
		Int("budget", s.inst.Budget).
		Int("heuristics", len(s.heurs)).
		Msg("search started")

	nodes := NewStack[*searchNode]()
	nodes.Push(&searchNode{lower: slices.Clone(s.lower), upper: slices.Clone(s.upper)})

	for nodes.Size() > 0 {
		if ctx.Err() != nil {
			result.Status = StatusTimeLimit
			break
		}
		if s.cfg.NodeLimit >= 0 && result.Nodes >= s.cfg.NodeLimit {
			result.Status = StatusNodeLimit
			break
		}

		node := nodes.Pop()
		s.lower, s.upper = node.lower, node.upper
		result.Nodes++
		result.MaxDepth = max(result.MaxDepth, node.depth)
		if s.cfg.DisplayFreq > 0 && result.Nodes%s.cfg.DisplayFreq == 0 {
			s.log.Info().
				Int("nodes", result.Nodes).
				Int("open", nodes.Size()).
				Int("depth", node.depth).
				Float64("incumbent", s.incumbent.Objective).
				Msg("progress")
		}

		relax, err := s.relax(ctx)
		if err != nil {
			result.Status = StatusUnknown
			s.finish(result, start)
			return result, errors.Wrapf(err, "node %d", result.Nodes)
		}
		if relax.Status == StatusTimeLimit {
			result.Status = StatusTimeLimit
			break
		}
		if relax.Status != StatusOptimal || relax.Objective <= s.incumbent.Objective+eps {
			continue
		}

		col := mostFractional(relax.Values[:n], integral)
		if col < 0 {
			s.Submit(s.inst.NewSolution(roundedSelection(relax.Values[:n]), "relaxation"))
			continue
		}

		if s.cfg.HeuristicsAt(node.depth) {
			s.runHeuristics(ctx, result.Heuristics)
			if relax.Objective <= s.incumbent.Objective+eps {
				continue
			}
		}

		out := &searchNode{lower: slices.Clone(node.lower), upper: slices.Clone(node.upper), depth: node.depth + 1}
		out.upper[col] = 0
		in := &searchNode{lower: slices.Clone(node.lower), upper: slices.Clone(node.upper), depth: node.depth + 1}
		in.lower[col] = 1
		nodes.Push(out)
		nodes.Push(in)
	}

	if result.Status == StatusUnknown {
		result.Status = StatusOptimal
	}
	s.finish(result, start)
	return result, nil
}

func (s *Search) finish(result *SearchResult, start time.Time) {
	result.Incumbent = s.incumbent
	result.Time = time.Since(start)

	ev := s.log.Info().
		Stringer("status", result.Status).
		Int("nodes", result.Nodes).
		Dur("time", result.Time).
		Float64("z", s.incumbent.Objective)
	for _, h := range s.heurs {
		ev = ev.Object(h.Name(), result.Heuristics[h.Name()])
	}
	ev.Msg("search done")
}

func roundedSelection(x []float64) []int {
	selected := make([]int, 0)
	for i, v := range x {
		if v > 0.5 {
			selected = append(selected, i)
		}
	}
	return selected
}
