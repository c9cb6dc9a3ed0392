package kpfs

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// LNS releases part of the incumbent and re-optimizes the residual problem
// with a bounded sub-solve.
type LNS struct {
	inst    *Instance
	cfg     *Config
	backend Backend
	log     zerolog.Logger
}

func NewLNS(inst *Instance, cfg *Config, backend Backend, log zerolog.Logger) *LNS {
	return &LNS{
		inst:    inst,
		cfg:     cfg,
		backend: backend,
		log:     log.With().Str("heuristic", "lns").Logger(),
	}
}

func (h *LNS) Name() string {
	return "lns"
}

// destroy returns the first floor(q*len(cands)) candidates under the ordering.
func destroy(inst *Instance, cands []int, q float64, order Ordering) []int {
	sorted := append([]int(nil), cands...)
	order.Sort(inst, sorted)
	toRemove := int(math.Floor(q * float64(len(sorted))))
	return sorted[:toRemove]
}

func (h *LNS) TryImprove(ctx context.Context, fix Fixings, inc Incumbent) (*Solution, error) {
	if inc.Solution == nil {
		return nil, nil
	}
	eps := h.cfg.Epsilon
	fix = fix.Clone()

	residual := h.inst.Capacity
	for _, i := range fix.Select(FixedIn) {
		residual -= h.inst.Items[i].Weight
	}

	// freeze the incumbent, remembering what the engine did not fix
	cands := make([]int, 0)
	for i := range fix {
		if inc.Solution.Items.AtVec(i) > eps && fix[i] == Free {
			fix[i] = FixedIn
			cands = append(cands, i)
			residual -= h.inst.Items[i].Weight
		}
	}

	lost := 0
	removed := destroy(h.inst, cands, h.cfg.LNS.DestroyFraction, h.cfg.LNS.Removal)
	for _, i := range removed {
		fix[i] = Free
		residual += h.inst.Items[i].Weight
		lost += h.inst.Items[i].Value
	}
	h.log.Debug().
		Int("candidates", len(cands)).
		Int("removed", len(removed)).
		Int("lost", lost).
		Int("residual", residual).
		Msg("destroyed incumbent")

	r := NewRestriction(fix, Integral)
	r.Cutoff = inc.Objective + eps
	sub := h.backend.Bounded(Limits{
		TimeLimit:     h.cfg.LNS.Time,
		NodeLimit:     h.cfg.LNS.Nodes,
		SolutionLimit: h.cfg.LNS.Solutions,
		Verbose:       h.cfg.Verbose,
	})
	if err := sub.Load(h.inst, r); err != nil {
		return nil, errors.Wrap(err, "lns: loading residual problem")
	}
	res, err := sub.Solve(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "lns: solving residual problem")
	}
	if !res.HasSolution() || !improves(res.Objective, inc, eps) {
		h.log.Debug().Stringer("status", res.Status).Msg("no improving neighbor")
		return nil, nil
	}

	selected := fix.Select(FixedIn)
	for i := range fix {
		if fix[i] == Free && res.Value(i) > eps {
			selected = append(selected, i)
		}
	}
	sol := h.inst.NewSolution(selected, h.Name())
	ev := h.inst.Evaluate(sol.Items)
	if !h.inst.Feasible(ev, eps) || !improves(sol.Value, inc, eps) {
		return nil, nil
	}
	h.log.Debug().Float64("z", sol.Value).Float64("incumbent", inc.Objective).Msg("improving neighbor")
	return sol, nil
}
