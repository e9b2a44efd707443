// Package layout orders replicate groups and packs them into plate grids.
package layout

import (
	"slices"

	"cultureplan/internal/composition"
)

// ReplicateGroup holds the identical cultures grown for one condition.
type ReplicateGroup struct {
	Condition int
	Cultures  []composition.Culture
}

// Replicate builds a group of n independent copies of a culture.
func Replicate(condition int, culture composition.Culture, n int) ReplicateGroup {
	g := ReplicateGroup{Condition: condition, Cultures: make([]composition.Culture, n)}
	for i := range g.Cultures {
		g.Cultures[i] = culture.Clone()
	}
	return g
}

// Strain returns the strain sample name of the group's first replicate.
func (g ReplicateGroup) Strain() string {
	if len(g.Cultures) == 0 {
		return ""
	}
	if strain, ok := g.Cultures[0].First(composition.KindStrain); ok {
		return strain.Name()
	}
	return ""
}

// ComparisonKey lists a culture's inducer final concentrations in molar
// units, in composition order. Cultures without inducers key as [0].
func ComparisonKey(c composition.Culture) []float64 {
	var key []float64
	for _, inducer := range c.Of(composition.KindInducer) {
		if inducer.FinalConcentration == nil {
			key = append(key, 0)
			continue
		}
		molar, err := inducer.FinalConcentration.Molar()
		if err != nil {
			molar = 0
		}
		key = append(key, molar)
	}
	if len(key) == 0 {
		return []float64{0}
	}
	return key
}

// CompareKeys orders keys element-wise; a key that is a prefix of another
// sorts first.
func CompareKeys(a, b []float64) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return len(a) - len(b)
}

// Sort groups cultures by strain in order of first appearance, then orders
// each strain's groups by ascending inducer concentration. Ties keep their
// input order.
func Sort(groups []ReplicateGroup) []ReplicateGroup {
	type keyed struct {
		group ReplicateGroup
		key   []float64
	}
	var strains []string
	buckets := map[string][]keyed{}
	for _, g := range groups {
		strain := g.Strain()
		if _, ok := buckets[strain]; !ok {
			strains = append(strains, strain)
		}
		var key []float64
		if len(g.Cultures) > 0 {
			key = ComparisonKey(g.Cultures[0])
		}
		buckets[strain] = append(buckets[strain], keyed{group: g, key: key})
	}
	out := make([]ReplicateGroup, 0, len(groups))
	for _, strain := range strains {
		bucket := buckets[strain]
		slices.SortStableFunc(bucket, func(a, b keyed) int {
			return CompareKeys(a.key, b.key)
		})
		for _, k := range bucket {
			out = append(out, k.group)
		}
	}
	return out
}
