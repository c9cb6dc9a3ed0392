package kpfs

import (
	"context"
	"math"
	"slices"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
	"gopkg.in/dnaeon/go-priorityqueue.v1"
)

const (
	lpTol  = 1e-9
	intTol = 1e-6

	lpPerturb = 1e-10
	lpRetries = 3
)

var errLPInfeasible = errors.New("lp relaxation infeasible")

// Simplex is the pure-Go backend: LP relaxations are solved with gonum's
// simplex and integral columns are handled by best-first branch and bound.
type Simplex struct {
	Log zerolog.Logger
}

func (s Simplex) Bounded(lim Limits) SubSolver {
	return &simplexSolver{lim: lim, log: s.Log}
}

type simplexSolver struct {
	lim   Limits
	log   zerolog.Logger
	model *Model
}

type bbNode struct {
	lower []float64
	upper []float64
}

func (s *simplexSolver) Load(inst *Instance, r *Restriction) error {
	if len(r.Fixings) != inst.NumItems() {
		return errors.Errorf("restriction has %d fixings for %d items", len(r.Fixings), inst.NumItems())
	}
	s.model = BuildModel(inst, r)
	return nil
}

func (s *simplexSolver) Solve(ctx context.Context) (*SubResult, error) {
	if s.model == nil {
		return nil, errors.New("simplex: no model loaded")
	}
	if s.lim.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.lim.TimeLimit)
		defer cancel()
	}

	m := s.model
	res := &SubResult{Status: StatusUnknown, Objective: math.Inf(-1)}
	solutions, explored, nextID := 0, 0, 0

	pq := priorityqueue.New[int, float64](priorityqueue.MaxHeap)
	nodes := make(map[int]*bbNode)
	nodes[nextID] = &bbNode{lower: slices.Clone(m.Lower), upper: slices.Clone(m.Upper)}
	pq.Put(nextID, math.Inf(1))
	nextID++

	for pq.Len() > 0 {
		if ctx.Err() != nil {
			res.Status = StatusTimeLimit
			break
		}
		if s.lim.NodeLimit >= 0 && explored >= s.lim.NodeLimit {
			res.Status = StatusNodeLimit
			break
		}

		item := pq.Get()
		node := nodes[item.Value]
		delete(nodes, item.Value)
		if item.Priority <= res.Objective+lpTol {
			continue
		}
		explored++

		z, x, err := solveLP(m, node.lower, node.upper)
		if errors.Is(err, errLPInfeasible) {
			continue
		}
		if err != nil {
			return nil, errors.Wrapf(err, "simplex: node %d", explored)
		}
		if z <= res.Objective+lpTol {
			continue
		}

		col := mostFractional(x, m.Integer)
		if col < 0 {
			for j, integer := range m.Integer {
				if integer {
					x[j] = math.Round(x[j])
				}
			}
			res.Values, res.Objective = x, objective(m, x)
			solutions++
			if s.lim.Verbose {
				s.log.Debug().Int("node", explored).Float64("z", res.Objective).Msg("simplex: new solution")
			}
			if s.lim.SolutionLimit > 0 && solutions >= s.lim.SolutionLimit {
				res.Status = StatusSolutionLimit
				break
			}
			continue
		}

		down := &bbNode{lower: slices.Clone(node.lower), upper: slices.Clone(node.upper)}
		down.upper[col] = math.Floor(x[col])
		up := &bbNode{lower: node.lower, upper: node.upper}
		up.lower[col] = math.Floor(x[col]) + 1

		for _, child := range []*bbNode{up, down} {
			nodes[nextID] = child
			pq.Put(nextID, z)
			nextID++
		}
	}

	if res.Status == StatusUnknown {
		if solutions > 0 {
			res.Status = StatusOptimal
		} else {
			res.Status = StatusInfeasible
		}
	}
	if s.lim.Verbose {
		s.log.Debug().
			Stringer("status", res.Status).
			Int("nodes", explored).
			Int("solutions", solutions).
			Float64("z", res.Objective).
			Msg("simplex: done")
	}
	return res, nil
}

func objective(m *Model, x []float64) float64 {
	z := 0.0
	for j, c := range m.Obj {
		z += c * x[j]
	}
	return z
}

// mostFractional returns the integral column farthest from an integer, or -1.
func mostFractional(x []float64, integer []bool) int {
	best, bestDist := -1, intTol
	for j, v := range x {
		if !integer[j] {
			continue
		}
		dist := math.Abs(v - math.Round(v))
		if dist > bestDist {
			best, bestDist = j, dist
		}
	}
	return best
}

// solveLP maximizes the model objective over the given column bounds. Fixed
// columns are substituted; the remaining ones are shifted to x' = x - lower
// and every row and every upper bound not implied by a row gets its own
// slack, which yields the standard form min c'x s.t. Ax = b, x >= 0 expected
// by lp.Simplex. Degenerate bases are retried on a slightly relaxed b.
func solveLP(m *Model, lower, upper []float64) (float64, []float64, error) {
	cols := m.NumCols()
	x := make([]float64, cols)
	pos := make([]int, cols)
	free := make([]int, 0, cols)
	for j, jN := 0, cols; j < jN; j++ {
		if upper[j] < lower[j]-lpTol {
			return 0, nil, errLPInfeasible
		}
		x[j] = lower[j]
		pos[j] = -1
		if upper[j]-lower[j] > lpTol {
			pos[j] = len(free)
			free = append(free, j)
		}
	}
	nf := len(free)

	var coefs [][]float64
	var rhs []float64
	addRow := func(row []float64, b float64) error {
		for _, a := range row {
			if a != 0 {
				coefs = append(coefs, row)
				rhs = append(rhs, b)
				return nil
			}
		}
		if b < -lpTol {
			return errLPInfeasible
		}
		return nil
	}

	for _, row := range m.Rows {
		base := 0.0
		dense := make([]float64, nf)
		for _, e := range row.Entries {
			base += e.Val * lower[e.Col]
			if k := pos[e.Col]; k >= 0 {
				dense[k] += e.Val
			}
		}
		if !math.IsInf(row.Upper, 1) {
			if err := addRow(dense, row.Upper-base); err != nil {
				return 0, nil, err
			}
		}
		if !math.IsInf(row.Lower, -1) {
			neg := make([]float64, nf)
			for k, a := range dense {
				neg[k] = -a
			}
			if err := addRow(neg, base-row.Lower); err != nil {
				return 0, nil, err
			}
		}
	}
	implied := impliedBounds(coefs, rhs, nf)
	for k, j := range free {
		if implied[k] <= upper[j]-lower[j]+lpTol {
			continue
		}
		bound := make([]float64, nf)
		bound[k] = 1
		coefs = append(coefs, bound)
		rhs = append(rhs, upper[j]-lower[j])
	}

	if nf == 0 {
		return objective(m, x), x, nil
	}

	sol, err := standardSimplex(m, free, coefs, rhs, 0)
	for attempt := 1; attempt <= lpRetries && (errors.Is(err, lp.ErrBland) || errors.Is(err, lp.ErrSingular)); attempt++ {
		sol, err = standardSimplex(m, free, coefs, rhs, lpPerturb*math.Pow(100, float64(attempt-1)))
	}
	if errors.Is(err, lp.ErrInfeasible) {
		return 0, nil, errLPInfeasible
	}
	if err != nil {
		return 0, nil, errors.Wrap(err, "lp")
	}
	for k, j := range free {
		x[j] = math.Min(upper[j], math.Max(lower[j], lower[j]+sol[k]))
	}
	return objective(m, x), x, nil
}

// impliedBounds returns, per free column, the tightest upper bound already
// enforced by a row with no negative coefficient.
func impliedBounds(coefs [][]float64, rhs []float64, nf int) []float64 {
	implied := make([]float64, nf)
	for k := range implied {
		implied[k] = math.Inf(1)
	}
	for i, row := range coefs {
		if slices.ContainsFunc(row, func(a float64) bool { return a < 0 }) {
			continue
		}
		for k, a := range row {
			if a > 0 {
				implied[k] = math.Min(implied[k], rhs[i]/a)
			}
		}
	}
	return implied
}

// standardSimplex adds one slack per row and calls lp.Simplex. A positive
// perturb relaxes row i by perturb*(i+1), which breaks the ties that make
// Bland's rule give up on degenerate vertices.
func standardSimplex(m *Model, free []int, coefs [][]float64, rhs []float64, perturb float64) ([]float64, error) {
	nf, rows := len(free), len(coefs)
	A := mat.NewDense(rows, nf+rows, nil)
	b := make([]float64, rows)
	for i, row := range coefs {
		r := rhs[i] + perturb*float64(i+1)
		sign := 1.0
		if r < 0 {
			sign = -1
		}
		for k, a := range row {
			A.Set(i, k, sign*a)
		}
		A.Set(i, nf+i, sign)
		b[i] = sign * r
	}
	c := make([]float64, nf+rows)
	for k, j := range free {
		c[k] = -m.Obj[j]
	}
	_, sol, err := lp.Simplex(c, A, b, 0, nil)
	return sol, err
}
