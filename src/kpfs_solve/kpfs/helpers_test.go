package kpfs

import (
	"context"
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

// scriptedRandom replays a fixed draw sequence, reduced modulo n.
type scriptedRandom struct {
	seq []int
	pos int
}

func (r *scriptedRandom) Intn(n int) int {
	v := r.seq[r.pos%len(r.seq)]
	r.pos++
	return v % n
}

// fakeBackend answers every sub-solve through respond, or fails with err,
// and records the restrictions it was loaded with.
type fakeBackend struct {
	respond  func(call int, r *Restriction) *SubResult
	err      error
	loaded   []*Restriction
	limits   []Limits
	numItems int
}

type fakeSolver struct {
	b   *fakeBackend
	lim Limits
	r   *Restriction
}

func (b *fakeBackend) Bounded(lim Limits) SubSolver {
	b.limits = append(b.limits, lim)
	return &fakeSolver{b: b, lim: lim}
}

func (s *fakeSolver) Load(inst *Instance, r *Restriction) error {
	s.r = r
	s.b.loaded = append(s.b.loaded, r)
	s.b.numItems = inst.NumItems()
	return nil
}

func (s *fakeSolver) Solve(context.Context) (*SubResult, error) {
	if s.b.err != nil {
		return nil, s.b.err
	}
	return s.b.respond(len(s.b.loaded)-1, s.r), nil
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.TimeLimit = 0
	cfg.RelaxFix.BlockTime = 0
	cfg.LNS.Time = 0
	cfg.DisplayFreq = -1
	return cfg
}

func scenarioA(t *testing.T) *Instance {
	inst, err := NewInstance([]int{10, 20, 15}, []int{5, 10, 7}, 12, 0)
	require.NoError(t, err)
	return inst
}

func smallKnapsack(t *testing.T) *Instance {
	inst, err := NewInstance([]int{10, 13, 7, 8}, []int{5, 7, 4, 3}, 10, 0)
	require.NoError(t, err)
	return inst
}

func freeFixings(inst *Instance) Fixings {
	return make(Fixings, inst.NumItems())
}

func randomInstance(t *testing.T, seed uint64, n, nS int) *Instance {
	rng := rand.New(rand.NewSource(seed))
	values := make([]int, n)
	weights := make([]int, n)
	total := 0
	for i, iN := 0, n; i < iN; i++ {
		values[i] = 1 + rng.Intn(30)
		weights[i] = 1 + rng.Intn(20)
		total += weights[i]
	}
	sets := make([]SetSpec, nS)
	for j := range sets {
		size := 2 + rng.Intn(n-1)
		sets[j] = SetSpec{
			Threshold: rng.Intn(2),
			Penalty:   1 + rng.Intn(15),
			Members:   rng.Perm(n)[:size],
		}
	}
	inst, err := NewInstance(values, weights, total/2, 1+rng.Intn(3), sets...)
	require.NoError(t, err)
	return inst
}

// bruteForce returns the best feasible objective over every subset.
func bruteForce(inst *Instance) float64 {
	n := inst.NumItems()
	best := math.Inf(-1)
	for mask := 0; mask < 1<<n; mask++ {
		x := mat.NewVecDense(n, nil)
		for i, iN := 0, n; i < iN; i++ {
			if mask&(1<<i) != 0 {
				x.SetVec(i, 1)
			}
		}
		ev := inst.Evaluate(x)
		if inst.Feasible(ev, 1e-9) && ev.Value > best {
			best = ev.Value
		}
	}
	return best
}

func nopLogger() zerolog.Logger {
	return zerolog.Nop()
}
