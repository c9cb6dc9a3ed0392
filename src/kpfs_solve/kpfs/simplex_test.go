package kpfs

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solveSimplex(t *testing.T, inst *Instance, r *Restriction, lim Limits) *SubResult {
	sub := Simplex{Log: nopLogger()}.Bounded(lim)
	require.NoError(t, sub.Load(inst, r))
	res, err := sub.Solve(context.Background())
	require.NoError(t, err)
	return res
}

func unlimited() Limits {
	return Limits{NodeLimit: -1, SolutionLimit: -1}
}

func TestSimplexContinuousBound(t *testing.T) {
	inst := smallKnapsack(t)
	res := solveSimplex(t, inst, NewRestriction(freeFixings(inst), Continuous), unlimited())

	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 18+26.0/7, res.Objective, 1e-6)
	assert.InDelta(t, 2.0/7, res.Value(1), 1e-6)
}

func TestSimplexIntegralOptimum(t *testing.T) {
	inst := smallKnapsack(t)
	res := solveSimplex(t, inst, NewRestriction(freeFixings(inst), Integral), unlimited())

	require.True(t, res.HasSolution())
	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 21, res.Objective, 1e-6)
	assert.Equal(t, []float64{0, 1, 0, 1}, res.Values)
}

func TestSimplexRespectsFixings(t *testing.T) {
	inst := smallKnapsack(t)
	res := solveSimplex(t, inst, NewRestriction(Fixings{FixedIn, FixedOut, Free, Free}, Integral), unlimited())

	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, 18, res.Objective, 1e-6)

	res = solveSimplex(t, inst, NewRestriction(Fixings{FixedIn, FixedIn, Free, Free}, Continuous), unlimited())
	assert.Equal(t, StatusInfeasible, res.Status)
	assert.False(t, res.HasSolution())
}

func TestSimplexCutoff(t *testing.T) {
	inst := smallKnapsack(t)
	r := NewRestriction(freeFixings(inst), Integral)
	r.Cutoff = 21 + 1e-6
	res := solveSimplex(t, inst, r, unlimited())
	assert.Equal(t, StatusInfeasible, res.Status)

	r.Cutoff = 19
	res = solveSimplex(t, inst, r, unlimited())
	assert.InDelta(t, 21, res.Objective, 1e-6)
}

func TestSimplexLimits(t *testing.T) {
	inst := smallKnapsack(t)

	res := solveSimplex(t, inst, NewRestriction(freeFixings(inst), Integral), Limits{NodeLimit: -1, SolutionLimit: 1})
	assert.Equal(t, StatusSolutionLimit, res.Status)
	assert.True(t, res.HasSolution())

	res = solveSimplex(t, inst, NewRestriction(freeFixings(inst), Integral), Limits{NodeLimit: 0, SolutionLimit: -1})
	assert.Equal(t, StatusNodeLimit, res.Status)
	assert.False(t, res.HasSolution())
	assert.True(t, math.IsInf(res.Objective, -1))
}

func TestSimplexMatchesBruteForce(t *testing.T) {
	for seed, seedN := uint64(0), uint64(8); seed < seedN; seed++ {
		inst := randomInstance(t, seed, 7, 2)
		res := solveSimplex(t, inst, NewRestriction(freeFixings(inst), Integral), unlimited())

		require.True(t, res.HasSolution())
		assert.InDelta(t, bruteForce(inst), res.Objective, 1e-6, "seed %d", seed)

		x := inst.NewSolution(roundedSelection(res.Values[:inst.NumItems()]), "")
		assert.InDelta(t, res.Objective, x.Value, 1e-6, "seed %d", seed)
	}
}

func TestSimplexNeedsModel(t *testing.T) {
	sub := Simplex{}.Bounded(unlimited())
	_, err := sub.Solve(context.Background())
	assert.Error(t, err)

	inst := smallKnapsack(t)
	assert.Error(t, sub.Load(inst, NewRestriction(Fixings{Free}, Integral)))
}

// Seed 6 used to end in lp.ErrBland: every y_j <= k bound row duplicated the
// budget row and left the root vertex degenerate.
func TestSimplexDegenerateRelaxation(t *testing.T) {
	inst := randomInstance(t, 6, 7, 2)
	opt := bruteForce(inst)

	res := solveSimplex(t, inst, NewRestriction(freeFixings(inst), Continuous), unlimited())
	assert.Equal(t, StatusOptimal, res.Status)
	assert.GreaterOrEqual(t, res.Objective, opt-1e-6)
	for j, v := range res.Values {
		assert.GreaterOrEqual(t, v, -1e-6, "column %d", j)
	}

	res = solveSimplex(t, inst, NewRestriction(freeFixings(inst), Integral), unlimited())
	assert.Equal(t, StatusOptimal, res.Status)
	assert.InDelta(t, opt, res.Objective, 1e-6)
}

func TestImpliedBounds(t *testing.T) {
	coefs := [][]float64{
		{2, 4, 0},
		{1, -1, 1},
		{0, 1, 1},
	}
	implied := impliedBounds(coefs, []float64{6, 0, 1}, 3)
	assert.Equal(t, []float64{3, 1, 1}, implied)

	implied = impliedBounds([][]float64{{1, -1}}, []float64{1}, 2)
	assert.True(t, math.IsInf(implied[0], 1))
	assert.True(t, math.IsInf(implied[1], 1))
}
