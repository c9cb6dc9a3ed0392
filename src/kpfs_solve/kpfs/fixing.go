package kpfs

type Fixing int8

const (
	Free Fixing = iota
	FixedIn
	FixedOut
)

func (f Fixing) String() string {
	switch f {
	case FixedIn:
		return "fixed-in"
	case FixedOut:
		return "fixed-out"
	default:
		return "free"
	}
}

// Fixings is the per-item tri-state a heuristic works on. A fresh value is
// built at each call and never written back to the engine.
type Fixings []Fixing

// Bounds is the part of the engine a heuristic reads fixings from.
type Bounds interface {
	LowerBound(item int) float64
	UpperBound(item int) float64
}

// FixingsFromBounds marks an item fixed-in when its lower bound is above
// 1-eps and fixed-out when its upper bound is below eps.
func FixingsFromBounds(inst *Instance, b Bounds, eps float64) Fixings {
	fix := make(Fixings, inst.NumItems())
	for i := range fix {
		switch {
		case b.LowerBound(i) > 1.0-eps:
			fix[i] = FixedIn
		case b.UpperBound(i) < eps:
			fix[i] = FixedOut
		}
	}
	return fix
}

func (fix Fixings) Clone() Fixings {
	return append(Fixings(nil), fix...)
}

// Select returns the items in the given state, in label order.
func (fix Fixings) Select(state Fixing) []int {
	items := make([]int, 0)
	for i, f := range fix {
		if f == state {
			items = append(items, i)
		}
	}
	return items
}

func (fix Fixings) Count(state Fixing) int {
	count := 0
	for _, f := range fix {
		if f == state {
			count++
		}
	}
	return count
}
