package kpfs

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// RelaxAndFix splits the free items into random blocks and fixes them block
// by block, each time solving a relaxation where only the current block is
// integral and later blocks are continuous.
type RelaxAndFix struct {
	inst    *Instance
	cfg     *Config
	rng     Random
	backend Backend
	log     zerolog.Logger
}

func NewRelaxAndFix(inst *Instance, cfg *Config, rng Random, backend Backend, log zerolog.Logger) *RelaxAndFix {
	return &RelaxAndFix{
		inst:    inst,
		cfg:     cfg,
		rng:     rng,
		backend: backend,
		log:     log.With().Str("heuristic", "rf").Logger(),
	}
}

func (h *RelaxAndFix) Name() string {
	return "rf"
}

// blockLayout returns K = ceil(1/p) and the target block size ceil(p*n).
func blockLayout(p float64, n int) (blocks, size int) {
	return int(math.Ceil(1.0 / p)), int(math.Ceil(p * float64(n)))
}

// partition draws pool items uniformly into consecutive blocks. The blocks
// are disjoint and together hold every pool item exactly once.
func partition(pool []int, blocks, size int, rng Random) [][]int {
	p := NewPool(pool)
	parts := make([][]int, blocks)
	for b := range parts {
		parts[b] = make([]int, 0, size)
		for len(parts[b]) < size && p.Len() > 0 {
			parts[b] = append(parts[b], p.Draw(rng))
		}
	}
	for p.Len() > 0 {
		parts[blocks-1] = append(parts[blocks-1], p.Take(p.Len()-1))
	}
	return parts
}

func (h *RelaxAndFix) TryImprove(ctx context.Context, fix Fixings, inc Incumbent) (*Solution, error) {
	eps := h.cfg.Epsilon
	n := h.inst.NumItems()
	fix = fix.Clone()

	selected := fix.Select(FixedIn)
	residual := h.inst.Capacity
	for _, i := range selected {
		residual -= h.inst.Items[i].Weight
	}
	if residual < 0 {
		h.log.Debug().Int("residual", residual).Msg("fixed items exceed capacity")
		return nil, nil
	}

	K, size := blockLayout(h.cfg.RelaxFix.BlockFraction, n)
	blocks := partition(fix.Select(Free), K, size, h.rng)
	block := make([]int, n)
	for i := range block {
		block[i] = -1
	}
	for b, items := range blocks {
		for _, i := range items {
			block[i] = b
		}
	}

	lim := Limits{
		TimeLimit:     h.cfg.RelaxFix.BlockTime,
		NodeLimit:     h.cfg.RelaxFix.BlockNodes,
		SolutionLimit: -1,
		Verbose:       h.cfg.Verbose,
	}

	var res *SubResult
	numFixed := n - fix.Count(Free)
	fractional := true
	b := 0
	for ; b < K && fractional && numFixed < n; b++ {
		r := NewRestriction(fix.Clone(), BlockIntegral)
		r.Integral = make([]bool, n)
		for _, i := range blocks[b] {
			r.Integral[i] = true
		}

		sub := h.backend.Bounded(lim)
		if err := sub.Load(h.inst, r); err != nil {
			return nil, errors.Wrapf(err, "rf: loading block %d", b)
		}
		var err error
		res, err = sub.Solve(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "rf: solving block %d", b)
		}
		if !res.HasSolution() {
			h.log.Debug().Int("block", b).Stringer("status", res.Status).Msg("block infeasible")
			return nil, nil
		}

		fractional = false
		for i, iN := 0, n; i < iN; i++ {
			v := res.Value(i)
			switch {
			case block[i] == b:
				if v > eps {
					fix[i] = FixedIn
					selected = append(selected, i)
					residual -= h.inst.Items[i].Weight
				} else {
					fix[i] = FixedOut
				}
				numFixed++
			case fix[i] == Free && v > eps && v < 1.0-eps:
				fractional = true
			}
		}
		h.log.Debug().
			Int("block", b).
			Int("blocks", K).
			Stringer("status", res.Status).
			Float64("z", res.Objective).
			Int("residual", residual).
			Bool("fractional", fractional).
			Msg("block fixed")
	}

	// stopped early on an integral relaxation: keep its later-block items
	if res != nil && !fractional && b < K {
		for i, iN := 0, n; i < iN; i++ {
			if fix[i] == Free && res.Value(i) > eps {
				fix[i] = FixedIn
				selected = append(selected, i)
			}
		}
	}

	sol := h.inst.NewSolution(selected, h.Name())
	ev := h.inst.Evaluate(sol.Items)
	if !h.inst.Feasible(ev, eps) {
		h.log.Debug().Float64("weight", ev.Weight).Float64("excess", ev.Violations).Msg("assembled solution infeasible")
		return nil, nil
	}
	if !improves(sol.Value, inc, eps) {
		return nil, nil
	}
	return sol, nil
}
