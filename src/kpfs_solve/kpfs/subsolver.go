package kpfs

import (
	"context"
	"math"
	"time"
)

// Limits bound one sub-solve. Negative node/solution limits mean unlimited;
// a zero TimeLimit means no limit beyond the context deadline.
type Limits struct {
	TimeLimit     time.Duration
	NodeLimit     int
	SolutionLimit int
	Verbose       bool
}

type RelaxationMode int

const (
	// Continuous relaxes every free item.
	Continuous RelaxationMode = iota
	// BlockIntegral keeps only the items flagged in Restriction.Integral integral.
	BlockIntegral
	// Integral keeps every item integral.
	Integral
)

func (m RelaxationMode) String() string {
	switch m {
	case BlockIntegral:
		return "block-integral"
	case Integral:
		return "integral"
	default:
		return "continuous"
	}
}

// Restriction is the sub-instance handed to a sub-solver.
type Restriction struct {
	Fixings  Fixings
	Mode     RelaxationMode
	Integral []bool
	// Cutoff, when finite, adds the row objective >= Cutoff.
	Cutoff float64
}

func NewRestriction(fix Fixings, mode RelaxationMode) *Restriction {
	return &Restriction{Fixings: fix, Mode: mode, Cutoff: math.Inf(-1)}
}

func (r *Restriction) isIntegral(item int) bool {
	switch r.Mode {
	case Integral:
		return true
	case BlockIntegral:
		return r.Integral != nil && r.Integral[item]
	default:
		return false
	}
}

type SubStatus int

const (
	StatusUnknown SubStatus = iota
	StatusOptimal
	StatusInfeasible
	StatusTimeLimit
	StatusNodeLimit
	StatusSolutionLimit
)

func (s SubStatus) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusTimeLimit:
		return "time limit"
	case StatusNodeLimit:
		return "node limit"
	case StatusSolutionLimit:
		return "solution limit"
	default:
		return "unknown"
	}
}

// SubResult is the best solution of a sub-solve over the columns of
// BuildModel: items first, then one forfeit slack per set.
type SubResult struct {
	Status    SubStatus
	Values    []float64
	Objective float64
}

// HasSolution is true when a sub-solve stopped early still holds a solution.
func (r *SubResult) HasSolution() bool {
	return r != nil && r.Status != StatusInfeasible && len(r.Values) > 0
}

func (r *SubResult) Value(col int) float64 {
	if col < 0 || col >= len(r.Values) {
		return 0
	}
	return r.Values[col]
}

// SubSolver is one bounded solver instance.
type SubSolver interface {
	Load(inst *Instance, r *Restriction) error
	Solve(ctx context.Context) (*SubResult, error)
}

// Backend creates bounded sub-solvers.
type Backend interface {
	Bounded(lim Limits) SubSolver
}

type Entry struct {
	Col int
	Val float64
}

type Row struct {
	Entries []Entry
	Lower   float64
	Upper   float64
}

// Model is the backend-neutral maximization model of a restriction.
type Model struct {
	Obj     []float64
	Lower   []float64
	Upper   []float64
	Integer []bool
	Rows    []Row
}

func (m *Model) NumCols() int {
	return len(m.Obj)
}

// BuildModel writes the forfeit knapsack formulation
//
//	max  sum v_i x_i - sum d_j y_j
//	s.t. sum w_i x_i <= C
//	     sum_{i in S_j} x_i - y_j <= h_j   for each set j
//	     sum y_j <= k
//	     objective >= cutoff              (when the cutoff is finite)
//
// with x bounded by the fixings and 0 <= y_j <= k.
func BuildModel(inst *Instance, r *Restriction) *Model {
	n, nS := inst.NumItems(), inst.NumSets()
	cols := n + nS
	m := &Model{
		Obj:     make([]float64, cols),
		Lower:   make([]float64, cols),
		Upper:   make([]float64, cols),
		Integer: make([]bool, cols),
	}

	capacity := Row{Lower: math.Inf(-1), Upper: float64(inst.Capacity)}
	for i, it := range inst.Items {
		m.Obj[i] = float64(it.Value)
		m.Upper[i] = 1
		switch r.Fixings[i] {
		case FixedIn:
			m.Lower[i] = 1
		case FixedOut:
			m.Upper[i] = 0
		}
		m.Integer[i] = r.isIntegral(i)
		if it.Weight != 0 {
			capacity.Entries = append(capacity.Entries, Entry{Col: i, Val: float64(it.Weight)})
		}
	}
	m.Rows = append(m.Rows, capacity)

	budget := Row{Lower: math.Inf(-1), Upper: float64(inst.Budget)}
	for j, set := range inst.ForfeitSets {
		y := n + j
		m.Obj[y] = -float64(set.Penalty)
		m.Upper[y] = float64(inst.Budget)
		m.Integer[y] = r.Mode == Integral

		row := Row{Lower: math.Inf(-1), Upper: float64(set.Threshold)}
		for _, i := range sortedMembers(set.Members) {
			row.Entries = append(row.Entries, Entry{Col: i, Val: 1})
		}
		row.Entries = append(row.Entries, Entry{Col: y, Val: -1})
		m.Rows = append(m.Rows, row)
		budget.Entries = append(budget.Entries, Entry{Col: y, Val: 1})
	}
	if nS > 0 {
		m.Rows = append(m.Rows, budget)
	}

	if !math.IsInf(r.Cutoff, -1) {
		cutoff := Row{Lower: r.Cutoff, Upper: math.Inf(1)}
		for col, c := range m.Obj {
			if c != 0 {
				cutoff.Entries = append(cutoff.Entries, Entry{Col: col, Val: c})
			}
		}
		m.Rows = append(m.Rows, cutoff)
	}
	return m
}
