package kpfs

import (
	"context"

	"github.com/rs/zerolog"
)

// RandomConstruction completes the engine fixings by drawing free items
// uniformly at random and keeping those the evaluator accepts.
type RandomConstruction struct {
	inst *Instance
	cfg  *Config
	rng  Random
	log  zerolog.Logger
}

func NewRandomConstruction(inst *Instance, cfg *Config, rng Random, log zerolog.Logger) *RandomConstruction {
	return &RandomConstruction{
		inst: inst,
		cfg:  cfg,
		rng:  rng,
		log:  log.With().Str("heuristic", "random").Logger(),
	}
}

func (h *RandomConstruction) Name() string {
	return "random"
}

func (h *RandomConstruction) TryImprove(_ context.Context, fix Fixings, inc Incumbent) (*Solution, error) {
	c := h.construct(fix)
	if c.infeasible {
		h.log.Debug().Int("residual", c.residual).Int("excess", c.excess).Msg("fixed items are infeasible")
		return nil, nil
	}

	h.log.Debug().
		Int("items", len(c.selected)).
		Int("value", c.value).
		Int("residual", c.residual).
		Int("excess", c.excess).
		Msg("construction done")

	if !improves(float64(c.value), inc, h.cfg.Epsilon) {
		return nil, nil
	}
	return c.solution(h.Name()), nil
}

// construct draws from the free pool until it is empty, the knapsack is
// full, or the candidate becomes infeasible. Every draw shrinks the pool.
func (h *RandomConstruction) construct(fix Fixings) *candidate {
	c := newCandidate(h.inst)
	c.seedFixed(fix)

	pool := NewPool(fix.Select(Free))
	for pool.Len() > 0 && !c.infeasible && c.residual > 0 {
		item := pool.Draw(h.rng)
		c.offer(item)
	}
	return c
}
