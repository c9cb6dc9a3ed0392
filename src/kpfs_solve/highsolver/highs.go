// Package highsolver binds the HiGHS solver as a kpfs sub-solve backend.
package highsolver

import (
	"context"
	"math"
	"time"

	"kp_with_forfeits/src/kpfs_solve/kpfs"

	"github.com/lanl/highs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// HiGHS reports +-1e20 and beyond as infinite.
const highsInf = 1e20

type Backend struct {
	Log zerolog.Logger
}

func (b Backend) Bounded(lim kpfs.Limits) kpfs.SubSolver {
	return &solver{lim: lim, log: b.Log}
}

type solver struct {
	lim   kpfs.Limits
	log   zerolog.Logger
	cols  int
	model *highs.Model
}

func defModel(m *kpfs.Model) *highs.Model {
	lp := &highs.Model{
		Maximize: true,
		ColCosts: append([]float64(nil), m.Obj...),
		ColLower: append([]float64(nil), m.Lower...),
		ColUpper: append([]float64(nil), m.Upper...),
		VarTypes: make([]highs.VariableType, m.NumCols()),
	}
	for j, integer := range m.Integer {
		if integer {
			lp.VarTypes[j] = highs.IntegerType
		} else {
			lp.VarTypes[j] = highs.ContinuousType
		}
	}
	for i, row := range m.Rows {
		lp.RowLower = append(lp.RowLower, row.Lower)
		lp.RowUpper = append(lp.RowUpper, row.Upper)
		for _, e := range row.Entries {
			lp.ConstMatrix = append(lp.ConstMatrix, highs.Nonzero{Row: i, Col: e.Col, Val: e.Val})
		}
	}
	return lp
}

func (s *solver) Load(inst *kpfs.Instance, r *kpfs.Restriction) error {
	if len(r.Fixings) != inst.NumItems() {
		return errors.Errorf("restriction has %d fixings for %d items", len(r.Fixings), inst.NumItems())
	}
	m := kpfs.BuildModel(inst, r)
	s.cols = m.NumCols()
	s.model = defModel(m)
	return nil
}

func (s *solver) setOptions(ctx context.Context, raw *highs.RawModel) error {
	timeLimit := s.lim.TimeLimit
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); timeLimit <= 0 || left < timeLimit {
			timeLimit = left
		}
	}

	var err error
	set := func(e error) {
		if err == nil {
			err = e
		}
	}
	set(raw.SetBoolOption("output_flag", s.lim.Verbose))
	if timeLimit > 0 {
		set(raw.SetFloat64Option("time_limit", timeLimit.Seconds()))
	}
	if s.lim.NodeLimit >= 0 {
		set(raw.SetIntOption("mip_max_nodes", s.lim.NodeLimit))
	}
	if s.lim.SolutionLimit > 0 {
		set(raw.SetIntOption("mip_max_improving_sols", s.lim.SolutionLimit))
	}
	return err
}

// Solve runs HiGHS once. The context deadline is turned into a HiGHS time
// limit; cancellation is not observed while HiGHS is running.
func (s *solver) Solve(ctx context.Context) (*kpfs.SubResult, error) {
	if s.model == nil {
		return nil, errors.New("highs: no model loaded")
	}
	if ctx.Err() != nil {
		return &kpfs.SubResult{Status: kpfs.StatusTimeLimit, Objective: math.Inf(-1)}, nil
	}

	raw, err := s.model.ToRawModel()
	if err != nil {
		return nil, errors.Wrap(err, "highs: building model")
	}
	if err := s.setOptions(ctx, raw); err != nil {
		return nil, errors.Wrap(err, "highs: setting options")
	}

	solution, err := raw.Solve()
	if err != nil {
		return nil, errors.Wrap(err, "highs: solve")
	}

	res := result(solution.Solution, s.cols)
	if s.lim.Verbose {
		s.log.Debug().
			Str("highs", solution.Status.String()).
			Stringer("status", res.Status).
			Float64("z", res.Objective).
			Msg("highs: done")
	}
	if res.Status == kpfs.StatusOptimal && !res.HasSolution() {
		return nil, errors.Errorf("highs: optimal without a primal solution for %d columns", s.cols)
	}
	return res, nil
}

// result converts a HiGHS solution. A stop on mip_max_improving_sols has no
// model status of its own, so any primal point HiGHS returns is kept.
func result(solution highs.Solution, cols int) *kpfs.SubResult {
	res := &kpfs.SubResult{Status: status(solution.Status), Objective: math.Inf(-1)}
	hasPrimal := len(solution.ColumnPrimal) >= cols &&
		!math.IsNaN(solution.Objective) && math.Abs(solution.Objective) < highsInf
	if hasPrimal && res.Status != kpfs.StatusInfeasible {
		res.Values = append([]float64(nil), solution.ColumnPrimal[:cols]...)
		res.Objective = solution.Objective
	}
	return res
}

func status(st highs.ModelStatus) kpfs.SubStatus {
	switch st {
	case highs.Optimal:
		return kpfs.StatusOptimal
	case highs.Infeasible, highs.UnboundedOrInfeasible:
		return kpfs.StatusInfeasible
	case highs.TimeLimit:
		return kpfs.StatusTimeLimit
	case highs.IterationLimit:
		return kpfs.StatusNodeLimit
	default:
		return kpfs.StatusUnknown
	}
}
