package kpfs

// Marginal is the effect of inserting one item into a candidate.
type Marginal struct {
	Value         int
	NewlyViolated int
	Accept        bool
}

// Evaluator prices an insertion against the current per-set counts. Its
// Accept verdict is the only insertion policy used by the heuristics.
type Evaluator struct {
	inst *Instance
}

func NewEvaluator(inst *Instance) Evaluator {
	return Evaluator{inst: inst}
}

// Evaluate subtracts the penalty of every member set already at or above its
// threshold; each such set gains one excess unit.
func (e Evaluator) Evaluate(item int, counts []int, violations int) Marginal {
	it := &e.inst.Items[item]
	m := Marginal{Value: it.Value}
	for _, j := range it.Sets {
		set := &e.inst.ForfeitSets[j]
		if counts[j] >= set.Threshold {
			m.Value -= set.Penalty
			m.NewlyViolated++
		}
	}
	m.Accept = m.Value > 0 && violations+m.NewlyViolated <= e.inst.Budget
	return m
}

// candidate is the growing selection of one heuristic call.
type candidate struct {
	inst       *Instance
	eval       Evaluator
	selected   []int
	covered    []bool
	counts     []int
	residual   int
	excess     int
	value      int
	infeasible bool
}

func newCandidate(inst *Instance) *candidate {
	return &candidate{
		inst:     inst,
		eval:     NewEvaluator(inst),
		selected: make([]int, 0, inst.NumItems()),
		covered:  make([]bool, inst.NumItems()),
		counts:   make([]int, inst.NumSets()),
		residual: inst.Capacity,
	}
}

func (c *candidate) insert(item int, m Marginal) {
	c.selected = append(c.selected, item)
	c.covered[item] = true
	c.residual -= c.inst.Items[item].Weight
	c.value += m.Value
	c.excess += m.NewlyViolated
	for _, j := range c.inst.Items[item].Sets {
		c.counts[j]++
	}
	if c.residual < 0 || c.excess > c.inst.Budget {
		c.infeasible = true
	}
}

// force inserts an item regardless of the policy; used for engine-fixed items.
func (c *candidate) force(item int) {
	if c.covered[item] {
		return
	}
	c.insert(item, c.eval.Evaluate(item, c.counts, c.excess))
}

// offer inserts the item only if it fits and the evaluator accepts it.
func (c *candidate) offer(item int) bool {
	if c.covered[item] || c.inst.Items[item].Weight > c.residual {
		return false
	}
	m := c.eval.Evaluate(item, c.counts, c.excess)
	if !m.Accept {
		return false
	}
	c.insert(item, m)
	return true
}

// seedFixed forces every fixed-in item into the candidate.
func (c *candidate) seedFixed(fix Fixings) {
	for i, f := range fix {
		if f == FixedIn {
			c.force(i)
		}
	}
}

func (c *candidate) solution(heuristic string) *Solution {
	return c.inst.NewSolution(c.selected, heuristic)
}
