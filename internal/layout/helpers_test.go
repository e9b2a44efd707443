package layout

import (
	"testing"

	"cultureplan/internal/composition"
	"cultureplan/pkg/units"
)

func culture(t *testing.T, strain string, inducerUM ...float64) composition.Culture {
	t.Helper()
	specs := []composition.Spec{
		{Kind: composition.KindStrain, Sample: composition.SampleRef{Name: strain}, Item: &composition.ItemRef{ID: "item-" + strain}},
		{Kind: composition.KindMedia, Sample: composition.SampleRef{Name: "M9"}, Item: &composition.ItemRef{ID: "media-1"}},
	}
	for i, qty := range inducerUM {
		final := units.New(qty, "uM")
		specs = append(specs, composition.Spec{
			Kind:               composition.KindInducer,
			Sample:             composition.SampleRef{Name: []string{"IPTG", "aTc", "Ara"}[i]},
			Item:               &composition.ItemRef{ID: "stock-" + []string{"IPTG", "aTc", "Ara"}[i], Label: "10 mM Stock"},
			FinalConcentration: &final,
		})
	}
	comps, err := composition.NewResolver(nil).ResolveAll(specs)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	c, err := composition.Build(comps, units.New(1000, "uL"), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return c
}

func group(t *testing.T, condition, replicates int, strain string, inducerUM ...float64) ReplicateGroup {
	t.Helper()
	return Replicate(condition, culture(t, strain, inducerUM...), replicates)
}
