package kpfs

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

var ErrInvalidInstance = errors.New("invalid instance")

// SetSpec describes a forfeit set before the inverse index is built.
type SetSpec struct {
	Threshold int
	Penalty   int
	Members   []int
}

// Evaluation is the exact objective breakdown of a 0/1 selection.
type Evaluation struct {
	Value        float64
	Weight       float64
	Excess       []float64
	Violations   float64
	ViolatedSets int
}

func errorCoalesce(args ...error) error {
	for _, e := range args {
		if e != nil {
			return e
		}
	}
	return nil
}

// NewInstance builds and validates an instance. Items are labelled by position.
func NewInstance(values, weights []int, capacity, budget int, sets ...SetSpec) (*Instance, error) {
	if len(values) != len(weights) {
		return nil, errors.Wrapf(ErrInvalidInstance, "%d values but %d weights", len(values), len(weights))
	}
	n := len(values)
	if n == 0 {
		return nil, errors.Wrap(ErrInvalidInstance, "no items")
	}

	inst := &Instance{
		Items:       make([]Item, n),
		ForfeitSets: make([]ForfeitSet, len(sets)),
		Capacity:    capacity,
		Budget:      budget,
	}
	for i, iN := 0, n; i < iN; i++ {
		inst.Items[i] = Item{Label: i, Value: values[i], Weight: weights[i], Sets: make([]int, 0)}
	}
	for j, spec := range sets {
		members := mapset.NewThreadUnsafeSet[int]()
		for _, i := range spec.Members {
			if i < 0 || i >= n {
				return nil, errors.Wrapf(ErrInvalidInstance, "forfeit set %d references item %d out of [0,%d)", j, i, n)
			}
			members.Add(i)
		}
		inst.ForfeitSets[j] = ForfeitSet{
			ID:        j,
			Threshold: spec.Threshold,
			Penalty:   spec.Penalty,
			Members:   members,
		}
		for _, i := range sortedMembers(members) {
			inst.Items[i].Sets = append(inst.Items[i].Sets, j)
		}
	}

	inst.buildMatrices()
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst, nil
}

func (inst *Instance) buildMatrices() {
	n := inst.NumItems()
	inst.Values = mat.NewVecDense(n, nil)
	inst.Weights = mat.NewVecDense(n, nil)
	for i, it := range inst.Items {
		inst.Values.SetVec(i, float64(it.Value))
		inst.Weights.SetVec(i, float64(it.Weight))
	}

	inst.Incidence = nil
	if inst.NumSets() == 0 {
		return
	}
	inst.Incidence = mat.NewDense(inst.NumSets(), n, nil)
	for j, set := range inst.ForfeitSets {
		for i := range set.Members.Iter() {
			inst.Incidence.Set(j, i, 1)
		}
	}
}

// Validate checks the scalar ranges and that Item.Sets is the exact inverse of
// ForfeitSet.Members.
func (inst *Instance) Validate() error {
	n := inst.NumItems()
	if n == 0 {
		return errors.Wrap(ErrInvalidInstance, "no items")
	}
	if inst.Capacity < 0 {
		return errors.Wrapf(ErrInvalidInstance, "negative capacity %d", inst.Capacity)
	}
	if inst.Budget < 0 {
		return errors.Wrapf(ErrInvalidInstance, "negative forfeit budget %d", inst.Budget)
	}
	for i, it := range inst.Items {
		if it.Label != i {
			return errors.Wrapf(ErrInvalidInstance, "item at %d has label %d", i, it.Label)
		}
		if it.Value < 0 || it.Weight < 0 {
			return errors.Wrapf(ErrInvalidInstance, "item %d has negative value or weight", i)
		}
	}

	inverse := make([]mapset.Set[int], n)
	for i := range inverse {
		inverse[i] = mapset.NewThreadUnsafeSet[int]()
	}
	for j, set := range inst.ForfeitSets {
		if set.Threshold < 0 || set.Penalty < 0 {
			return errors.Wrapf(ErrInvalidInstance, "forfeit set %d has negative threshold or penalty", j)
		}
		for i := range set.Members.Iter() {
			if i < 0 || i >= n {
				return errors.Wrapf(ErrInvalidInstance, "forfeit set %d references item %d out of [0,%d)", j, i, n)
			}
			inverse[i].Add(j)
		}
	}
	for i, it := range inst.Items {
		if !inverse[i].Equal(mapset.NewThreadUnsafeSet(it.Sets...)) || len(it.Sets) != inverse[i].Cardinality() {
			return errors.Wrapf(ErrInvalidInstance, "item %d set list %v does not match forfeit set members", i, it.Sets)
		}
	}
	return nil
}

// Evaluate computes the objective of a selection, rounding entries at 0.5.
func (inst *Instance) Evaluate(x *mat.VecDense) Evaluation {
	sel := mat.NewVecDense(x.Len(), nil)
	for i, iN := 0, x.Len(); i < iN; i++ {
		if x.AtVec(i) > 0.5 {
			sel.SetVec(i, 1)
		}
	}

	ev := Evaluation{
		Value:  mat.Dot(inst.Values, sel),
		Weight: mat.Dot(inst.Weights, sel),
		Excess: make([]float64, inst.NumSets()),
	}
	if inst.Incidence == nil {
		return ev
	}

	counts := mat.NewVecDense(inst.NumSets(), nil)
	counts.MulVec(inst.Incidence, sel)
	for j, set := range inst.ForfeitSets {
		excess := math.Max(0, counts.AtVec(j)-float64(set.Threshold))
		if excess > 0 {
			ev.Excess[j] = excess
			ev.Violations += excess
			ev.ViolatedSets++
			ev.Value -= excess * float64(set.Penalty)
		}
	}
	return ev
}

// Feasible reports whether the evaluation respects capacity and forfeit budget.
func (inst *Instance) Feasible(ev Evaluation, eps float64) bool {
	return ev.Weight <= float64(inst.Capacity)+eps && ev.Violations <= float64(inst.Budget)+eps
}

// NewSolution evaluates the selection and packages it as a Solution.
func (inst *Instance) NewSolution(selected []int, heuristic string) *Solution {
	x := mat.NewVecDense(inst.NumItems(), nil)
	for _, i := range selected {
		x.SetVec(i, 1)
	}
	ev := inst.Evaluate(x)
	return &Solution{
		Items:     x,
		Excess:    ev.Excess,
		Value:     ev.Value,
		Heuristic: heuristic,
	}
}

func sortedMembers(members mapset.Set[int]) []int {
	s := members.ToSlice()
	slices.Sort(s)
	return s
}

type tokenReader struct {
	scanner *bufio.Scanner
	count   int
	err     error
}

func (r *tokenReader) next(what string) int {
	if r.err != nil {
		return 0
	}
	if !r.scanner.Scan() {
		r.err = errors.Errorf("unexpected end of file while reading %s", what)
		if err := r.scanner.Err(); err != nil {
			r.err = errors.Wrapf(err, "reading %s", what)
		}
		return 0
	}
	r.count++
	v, err := strconv.Atoi(r.scanner.Text())
	if err != nil {
		r.err = errors.Wrapf(err, "error while parsing %s (token %d)", what, r.count)
		return 0
	}
	return v
}

func (r *tokenReader) keyword(word string) {
	if r.err != nil {
		return
	}
	if !r.scanner.Scan() || r.scanner.Text() != word {
		r.err = errors.Errorf("expected keyword %q after token %d", word, r.count)
		return
	}
	r.count++
}

type rawInstance struct {
	numItems, numSets, capacity, budget int
	values, weights                     []int
	sets                                []SetSpec
}

func (raw *rawInstance) parseHeader(r *tokenReader) error {
	raw.numItems = r.next("number of items")
	raw.numSets = r.next("number of forfeit sets")
	raw.capacity = r.next("capacity")
	if r.err == nil && (raw.numItems < 0 || raw.numSets < 0) {
		r.err = errors.Errorf("negative header counts n=%d nS=%d", raw.numItems, raw.numSets)
	}
	return r.err
}

func (raw *rawInstance) parseItems(r *tokenReader) error {
	if r.err != nil {
		return r.err
	}
	raw.values = make([]int, raw.numItems)
	raw.weights = make([]int, raw.numItems)
	for i, iN := 0, raw.numItems; i < iN; i++ {
		raw.values[i] = r.next("item value")
	}
	for i, iN := 0, raw.numItems; i < iN; i++ {
		raw.weights[i] = r.next("item weight")
	}
	return r.err
}

func (raw *rawInstance) parseForfeitSets(r *tokenReader) error {
	if r.err != nil {
		return r.err
	}
	raw.sets = make([]SetSpec, raw.numSets)
	for j, jN := 0, raw.numSets; j < jN; j++ {
		spec := SetSpec{
			Threshold: r.next("forfeit threshold"),
			Penalty:   r.next("forfeit penalty"),
		}
		size := r.next("forfeit set size")
		if r.err != nil {
			return r.err
		}
		if size < 0 {
			r.err = errors.Errorf("forfeit set %d has negative size %d", j, size)
			return r.err
		}
		spec.Members = make([]int, size)
		for m, mN := 0, size; m < mN; m++ {
			spec.Members[m] = r.next("forfeit set member")
		}
		raw.sets[j] = spec
	}
	return r.err
}

func (raw *rawInstance) parseBudget(r *tokenReader) error {
	r.keyword("k")
	raw.budget = r.next("forfeit budget")
	return r.err
}

// ReadInstance parses the instance text format:
//
//	n nS C
//	value_0 ... value_{n-1}
//	weight_0 ... weight_{n-1}
//	h d m item_1 ... item_m   (one per forfeit set)
//	k <budget>
func ReadInstance(in io.Reader) (*Instance, error) {
	scanner := bufio.NewScanner(in)
	scanner.Split(bufio.ScanWords)
	r := &tokenReader{scanner: scanner}

	raw := new(rawInstance)
	err := errorCoalesce(
		raw.parseHeader(r),
		raw.parseItems(r),
		raw.parseForfeitSets(r),
		raw.parseBudget(r),
	)
	if err != nil {
		return nil, err
	}
	return NewInstance(raw.values, raw.weights, raw.capacity, raw.budget, raw.sets...)
}

func LoadInstance(filename string) (*Instance, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	inst, err := ReadInstance(file)
	if err != nil {
		return nil, errors.Wrapf(err, "instance %s", filename)
	}
	return inst, nil
}

// WriteInstance writes inst in the format read by ReadInstance.
func WriteInstance(w io.Writer, inst *Instance) error {
	bw := bufio.NewWriter(w)
	write := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	write("%d %d %d\n", inst.NumItems(), inst.NumSets(), inst.Capacity)
	for _, it := range inst.Items {
		write("%d\n", it.Value)
	}
	for _, it := range inst.Items {
		write("%d\n", it.Weight)
	}
	for _, set := range inst.ForfeitSets {
		members := sortedMembers(set.Members)
		write("%d %d %d\n", set.Threshold, set.Penalty, len(members))
		for _, i := range members {
			write("%d ", i)
		}
		write("\n")
	}
	write("k %d\n", inst.Budget)
	return bw.Flush()
}
