package kpfs

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"gonum.org/v1/gonum/mat"
)

type Item struct {
	Label  int
	Value  int
	Weight int
	Sets   []int
}

type ForfeitSet struct {
	ID        int
	Threshold int
	Penalty   int
	Members   mapset.Set[int]
}

// Instance is read-only once loaded and may be shared by every heuristic call.
type Instance struct {
	Items       []Item
	ForfeitSets []ForfeitSet
	Capacity    int
	Budget      int

	Values    *mat.VecDense
	Weights   *mat.VecDense
	Incidence *mat.Dense // nS x n, nil without forfeit sets
}

type Solution struct {
	Items     *mat.VecDense
	Excess    []float64
	Value     float64
	Heuristic string
}

func (inst *Instance) NumItems() int {
	return len(inst.Items)
}

func (inst *Instance) NumSets() int {
	return len(inst.ForfeitSets)
}

// Selected returns the labels of the items set to one.
func (sol *Solution) Selected() []int {
	selected := make([]int, 0)
	for i := 0; i < sol.Items.Len(); i++ {
		if sol.Items.AtVec(i) > 0.5 {
			selected = append(selected, i)
		}
	}
	return selected
}

func (sol *Solution) String() string {
	s := new(strings.Builder)
	s.WriteString(fmt.Sprintf("Value: %f\n", sol.Value))
	if sol.Heuristic != "" {
		s.WriteString(fmt.Sprintf("Found by: %s\n", sol.Heuristic))
	}
	s.WriteString("Items: [ ")
	for _, i := range sol.Selected() {
		s.WriteString(fmt.Sprint(i))
		s.WriteString(" ")
	}
	s.WriteString("]")
	return s.String()
}

func (inst *Instance) String() string {
	s := new(strings.Builder)
	s.WriteString(fmt.Sprintf("Instance with n=%d items, C=%d, nS=%d forfeits, and k=%d\n",
		inst.NumItems(), inst.Capacity, inst.NumSets(), inst.Budget))

	for _, set := range inst.ForfeitSets {
		s.WriteString(fmt.Sprintf("Forfeit %d h=%d d=%d = { ", set.ID, set.Threshold, set.Penalty))
		for _, i := range sortedMembers(set.Members) {
			s.WriteString(fmt.Sprintf("%d ", i))
		}
		s.WriteString("}\n")
	}

	s.WriteString("Items:\n")
	for _, it := range inst.Items {
		s.WriteString(fmt.Sprintf("%d value=%d weight=%d sets=%v\n", it.Label, it.Value, it.Weight, it.Sets))
	}
	return s.String()
}
