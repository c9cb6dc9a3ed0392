package kpfs

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type SortKey int

const (
	ByValue SortKey = iota
	ByWeight
	ByRatio
)

type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Ordering sorts item labels by one item attribute. Its text form is
// "<key>:<order>", e.g. "weight:desc".
type Ordering struct {
	Key   SortKey
	Order SortOrder
}

var sortKeyNames = map[SortKey]string{ByValue: "value", ByWeight: "weight", ByRatio: "ratio"}
var sortOrderNames = map[SortOrder]string{Ascending: "asc", Descending: "desc"}

func (k SortKey) String() string   { return sortKeyNames[k] }
func (o SortOrder) String() string { return sortOrderNames[o] }

func (o Ordering) String() string {
	return o.Key.String() + ":" + o.Order.String()
}

// keyFunc resolves the sort key to an attribute extractor.
func (o Ordering) keyFunc(inst *Instance) func(item int) float64 {
	switch o.Key {
	case ByValue:
		return func(i int) float64 { return float64(inst.Items[i].Value) }
	case ByRatio:
		return func(i int) float64 {
			it := inst.Items[i]
			if it.Weight == 0 {
				return float64(it.Value) * 1e12
			}
			return float64(it.Value) / float64(it.Weight)
		}
	default:
		return func(i int) float64 { return float64(inst.Items[i].Weight) }
	}
}

// Sort orders items in place; ties keep their label order.
func (o Ordering) Sort(inst *Instance, items []int) {
	key := o.keyFunc(inst)
	slices.SortStableFunc(items, func(a, b int) int {
		c := cmp.Compare(key(a), key(b))
		if o.Order == Descending {
			c = -c
		}
		return c
	})
}

func ParseOrdering(s string) (Ordering, error) {
	var o Ordering
	keyName, orderName, found := strings.Cut(strings.ToLower(strings.TrimSpace(s)), ":")
	if !found {
		orderName = "asc"
	}
	keyOK, orderOK := false, false
	for k, name := range sortKeyNames {
		if name == keyName {
			o.Key, keyOK = k, true
		}
	}
	for ord, name := range sortOrderNames {
		if name == orderName {
			o.Order, orderOK = ord, true
		}
	}
	if !keyOK || !orderOK {
		return o, errors.Errorf("invalid ordering %q (want value|weight|ratio[:asc|desc])", s)
	}
	return o, nil
}

func (o Ordering) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Ordering) UnmarshalText(text []byte) error {
	parsed, err := ParseOrdering(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

func (o *Ordering) UnmarshalYAML(value *yaml.Node) error {
	return o.UnmarshalText([]byte(value.Value))
}
