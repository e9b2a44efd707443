package layout

import (
	"math"
	"testing"
)

func conditionsOf(groups []ReplicateGroup) []int {
	out := make([]int, len(groups))
	for i, g := range groups {
		out[i] = g.Condition
	}
	return out
}

func TestSortGroupsByStrainThenConcentration(t *testing.T) {
	groups := []ReplicateGroup{
		group(t, 0, 2, "B", 20),
		group(t, 1, 2, "A", 50),
		group(t, 2, 2, "B", 5),
		group(t, 3, 2, "A"),
		group(t, 4, 2, "A", 10),
		group(t, 5, 2, "B", 5),
	}
	got := conditionsOf(Sort(groups))
	want := []int{2, 5, 0, 3, 4, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted conditions = %v, want %v", got, want)
		}
	}
}

func TestSortKeepsStrainContiguous(t *testing.T) {
	var groups []ReplicateGroup
	strains := []string{"C", "A", "C", "B", "A", "C"}
	for i, s := range strains {
		groups = append(groups, group(t, i, 1, s, float64(10-i)))
	}
	sorted := Sort(groups)
	seen := map[string]bool{}
	prev := ""
	for _, g := range sorted {
		s := g.Strain()
		if s != prev && seen[s] {
			t.Fatalf("strain %s appears in two runs: %v", s, conditionsOf(sorted))
		}
		seen[s] = true
		prev = s
	}
	if sorted[0].Strain() != "C" || sorted[len(sorted)-1].Strain() != "B" {
		t.Fatalf("strain order should follow first appearance, got %v", conditionsOf(sorted))
	}
}

func TestComparisonKeyUsesMolarUnits(t *testing.T) {
	key := ComparisonKey(culture(t, "A", 10, 0.5))
	if len(key) != 2 || math.Abs(key[0]-10e-6) > 1e-18 || math.Abs(key[1]-0.5e-6) > 1e-18 {
		t.Fatalf("unexpected key %v", key)
	}
	if key := ComparisonKey(culture(t, "A")); len(key) != 1 || key[0] != 0 {
		t.Fatalf("expected [0] for no inducers, got %v", key)
	}
}

func TestCompareKeys(t *testing.T) {
	cases := []struct {
		a, b []float64
		want int
	}{
		{[]float64{1}, []float64{2}, -1},
		{[]float64{2, 1}, []float64{2, 0}, 1},
		{[]float64{1}, []float64{1, 0}, -1},
		{[]float64{1, 2}, []float64{1, 2}, 0},
	}
	for _, tc := range cases {
		got := CompareKeys(tc.a, tc.b)
		if (got < 0) != (tc.want < 0) || (got > 0) != (tc.want > 0) {
			t.Fatalf("CompareKeys(%v, %v) = %d, want sign %d", tc.a, tc.b, got, tc.want)
		}
	}
}
