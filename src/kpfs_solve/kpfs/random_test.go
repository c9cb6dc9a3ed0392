package kpfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestRandomConstructionScenarioA(t *testing.T) {
	inst := scenarioA(t)
	for seed, seedN := uint64(0), uint64(25); seed < seedN; seed++ {
		h := NewRandomConstruction(inst, testConfig(), rand.New(rand.NewSource(seed)), nopLogger())
		sol, err := h.TryImprove(context.Background(), freeFixings(inst), NoIncumbent())
		require.NoError(t, err)
		require.NotNil(t, sol)

		ev := inst.Evaluate(sol.Items)
		assert.LessOrEqual(t, ev.Weight, 12.0)
		assert.GreaterOrEqual(t, sol.Value, 20.0)
		assert.Equal(t, "random", sol.Heuristic)
	}
}

func TestRandomConstructionScriptedDraws(t *testing.T) {
	inst := scenarioA(t)
	cases := []struct {
		seq  []int
		want []int
	}{
		// item 0, then item 2 fills the knapsack
		{[]int{0}, []int{0, 2}},
		// item 1 leaves room for nothing else
		{[]int{1}, []int{1}},
	}
	for _, tc := range cases {
		h := NewRandomConstruction(inst, testConfig(), &scriptedRandom{seq: tc.seq}, nopLogger())
		sol, err := h.TryImprove(context.Background(), freeFixings(inst), NoIncumbent())
		require.NoError(t, err)
		require.NotNil(t, sol)
		assert.Equal(t, tc.want, sol.Selected())
	}
}

func TestRandomConstructionIsReproducible(t *testing.T) {
	inst := randomInstance(t, 3, 12, 4)
	run := func() []int {
		h := NewRandomConstruction(inst, testConfig(), &scriptedRandom{seq: []int{5, 2, 9, 4, 7, 1}}, nopLogger())
		return h.construct(freeFixings(inst)).selected
	}
	assert.Equal(t, run(), run())
}

func TestRandomConstructionHonorsFixings(t *testing.T) {
	inst := scenarioA(t)
	h := NewRandomConstruction(inst, testConfig(), &scriptedRandom{seq: []int{0}}, nopLogger())

	sol, err := h.TryImprove(context.Background(), Fixings{Free, FixedIn, Free}, NoIncumbent())
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, []int{1}, sol.Selected())

	for i_, n_ := 0, 5; i_ < n_; i_++ {
		sol, err = h.TryImprove(context.Background(), Fixings{Free, FixedOut, Free}, NoIncumbent())
		require.NoError(t, err)
		require.NotNil(t, sol)
		assert.NotContains(t, sol.Selected(), 1)
	}

	sol, err = h.TryImprove(context.Background(), Fixings{FixedIn, FixedIn, Free}, NoIncumbent())
	require.NoError(t, err)
	assert.Nil(t, sol)
}

func TestRandomConstructionImproveOnly(t *testing.T) {
	inst := scenarioA(t)
	h := NewRandomConstruction(inst, testConfig(), &scriptedRandom{seq: []int{0}}, nopLogger())

	sol, err := h.TryImprove(context.Background(), freeFixings(inst), Incumbent{Objective: 25})
	require.NoError(t, err)
	assert.Nil(t, sol)

	sol, err = h.TryImprove(context.Background(), freeFixings(inst), Incumbent{Objective: 24})
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, 25.0, sol.Value)
}

func TestRandomConstructionFixedInOverBudget(t *testing.T) {
	inst, err := NewInstance([]int{10, 10, 10}, []int{1, 1, 1}, 10, 1,
		SetSpec{Threshold: 0, Penalty: 1, Members: []int{0, 1, 2}},
	)
	require.NoError(t, err)
	h := NewRandomConstruction(inst, testConfig(), &scriptedRandom{seq: []int{0}}, nopLogger())

	// two fixed-in members already need two excess units with k = 1
	sol, err := h.TryImprove(context.Background(), Fixings{FixedIn, FixedIn, Free}, NoIncumbent())
	require.NoError(t, err)
	assert.Nil(t, sol)

	sol, err = h.TryImprove(context.Background(), Fixings{FixedIn, Free, Free}, NoIncumbent())
	require.NoError(t, err)
	require.NotNil(t, sol)
	assert.Equal(t, []int{0}, sol.Selected())
}
