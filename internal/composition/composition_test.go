package composition

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"cultureplan/pkg/domain"
	"cultureplan/pkg/units"
)

func measurement(qty float64, unit string) *units.Measurement {
	m := units.New(qty, unit)
	return &m
}

func strainSpec() Spec {
	return Spec{Kind: KindStrain, Sample: SampleRef{ID: "s1", Name: "NOR 00"}, Item: &ItemRef{ID: "i-strain", Label: "Yeast Glycerol Stock"}}
}

func mediaSpec() Spec {
	return Spec{Kind: KindMedia, Sample: SampleRef{ID: "s2", Name: "SC Media"}, Item: &ItemRef{ID: "i-media", Label: "800 mL Bottle"}}
}

func iptgSpec(final float64, unit string) Spec {
	return Spec{
		Kind:               KindInducer,
		Sample:             SampleRef{ID: "s3", Name: "IPTG"},
		Item:               &ItemRef{ID: "i-iptg", Label: "1 mM IPTG Stock"},
		FinalConcentration: measurement(final, unit),
	}
}

type fakeAliquots map[string]ItemRef

func (f fakeAliquots) FindAliquot(sample SampleRef) (ItemRef, bool) {
	item, ok := f[sample.Name]
	return item, ok
}

func TestBuildSingleInducerCulture(t *testing.T) {
	r := NewResolver(nil)
	comps, err := r.ResolveAll([]Spec{strainSpec(), mediaSpec(), iptgSpec(10, "uM")})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	culture, err := Build(comps, units.New(1000, "uL"), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	iptg, _ := culture.First(KindInducer)
	if iptg.DilutionFactor == nil || *iptg.DilutionFactor != 0.01 {
		t.Fatalf("expected dilution factor 0.01, got %v", iptg.DilutionFactor)
	}
	if iptg.WorkingVolume.Qty != 10.0 || iptg.WorkingVolume.Units != units.Microliters {
		t.Fatalf("expected 10 µL inducer, got %+v", iptg.WorkingVolume)
	}
	media, _ := culture.First(KindMedia)
	if media.WorkingVolume.Qty != 990.0 {
		t.Fatalf("expected 990 µL media, got %v", media.WorkingVolume.Qty)
	}
	strain, _ := culture.First(KindStrain)
	if strain.WorkingVolume.Qty != 0 || strain.DilutionFactor != nil {
		t.Fatalf("strain should carry no volume, got %+v", strain)
	}
}

func TestBuildConservesVolume(t *testing.T) {
	r := NewResolver(fakeAliquots{})
	antibiotic := Spec{
		Kind:               KindAntibiotic,
		Sample:             SampleRef{Name: "Kan", Properties: map[string]string{domain.PropertyWorkingConcentration: "50"}},
		FinalConcentration: measurement(5, "ug/mL"),
	}
	for _, container := range []float64{300, 1000, 1100.5} {
		for _, final := range []float64{0, 0.5, 1.25, 7, 33.3, 100} {
			comps, err := r.ResolveAll([]Spec{strainSpec(), iptgSpec(final, "uM"), mediaSpec(), antibiotic})
			if err != nil {
				t.Fatalf("resolve: %v", err)
			}
			culture, err := Build(comps, units.New(container, "uL"), nil)
			if err != nil {
				t.Fatalf("build %v/%v: %v", container, final, err)
			}
			if diff := math.Abs(culture.TotalVolume() - container); diff > 0.01 {
				t.Fatalf("volume %v != container %v (final %v)", culture.TotalVolume(), container, final)
			}
			for _, c := range culture.Components {
				if c.DilutionFactor == nil {
					continue
				}
				want := units.Round(container**c.DilutionFactor, 2)
				if c.WorkingVolume.Qty != want {
					t.Fatalf("%s working volume %v, want %v", c.Name(), c.WorkingVolume.Qty, want)
				}
			}
		}
	}
}

func TestBuildRejectsMediaCount(t *testing.T) {
	r := NewResolver(nil)
	comps, _ := r.ResolveAll([]Spec{strainSpec()})
	_, err := Build(comps, units.New(1000, "uL"), nil)
	var noMedia *NoMediaComponentError
	if !errors.As(err, &noMedia) {
		t.Fatalf("expected NoMediaComponentError, got %v", err)
	}
	comps, _ = r.ResolveAll([]Spec{mediaSpec(), mediaSpec()})
	_, err = Build(comps, units.New(1000, "uL"), nil)
	var dup *DuplicateMediaError
	if !errors.As(err, &dup) || dup.Count != 2 {
		t.Fatalf("expected DuplicateMediaError, got %v", err)
	}
}

func TestBuildRejectsOverAllocation(t *testing.T) {
	r := NewResolver(nil)
	comps, err := r.ResolveAll([]Spec{mediaSpec(), iptgSpec(0.8, "mM"), {
		Kind:               KindInducer,
		Sample:             SampleRef{Name: "aTc"},
		Item:               &ItemRef{ID: "i-atc", Label: "1 mM aTc Stock"},
		FinalConcentration: measurement(0.5, "mM"),
	}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	_, err = Build(comps, units.New(1000, "uL"), nil)
	var over *OverAllocatedContainerError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverAllocatedContainerError, got %v", err)
	}
	if over.Required.Qty != 1300 || over.Available.Qty != 1000 {
		t.Fatalf("unexpected allocation %+v", over)
	}
}

func TestResolveInducerErrors(t *testing.T) {
	r := NewResolver(nil)
	noItem := iptgSpec(10, "uM")
	noItem.Item = nil
	var missing *MissingStockError
	if _, err := r.Resolve(noItem); !errors.As(err, &missing) {
		t.Fatalf("expected MissingStockError, got %v", err)
	}
	badLabel := iptgSpec(10, "uM")
	badLabel.Item = &ItemRef{ID: "x", Label: "IPTG Stock"}
	if _, err := r.Resolve(badLabel); !errors.As(err, &missing) {
		t.Fatalf("expected MissingStockError for unlabeled stock, got %v", err)
	}
	noFinal := iptgSpec(10, "uM")
	noFinal.FinalConcentration = nil
	var noConc *MissingConcentrationError
	if _, err := r.Resolve(noFinal); !errors.As(err, &noConc) {
		t.Fatalf("expected MissingConcentrationError, got %v", err)
	}
	var unknown *units.UnknownUnitError
	if _, err := r.Resolve(iptgSpec(10, "ug/mL")); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownUnitError, got %v", err)
	}
}

func TestResolveAntibiotic(t *testing.T) {
	aliquot := ItemRef{ID: "i-amp", Label: domain.ObjectTypeAntibioticAliquot}
	r := NewResolver(fakeAliquots{"Amp": aliquot})
	spec := Spec{
		Kind:               KindAntibiotic,
		Sample:             SampleRef{Name: "Amp", Properties: map[string]string{domain.PropertyWorkingConcentration: "100"}},
		FinalConcentration: measurement(50, "ug/mL"),
	}
	c, err := r.Resolve(spec)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if *c.DilutionFactor != 0.5 || c.StockConcentration.Qty != 100 {
		t.Fatalf("unexpected antibiotic %+v", c)
	}
	if c.Item == nil || c.Item.ID != "i-amp" {
		t.Fatalf("expected aliquot lookup, got %+v", c.Item)
	}

	spec.FinalConcentration = measurement(50, "uM")
	var incompatible *IncompatibleUnitsError
	if _, err := r.Resolve(spec); !errors.As(err, &incompatible) {
		t.Fatalf("expected IncompatibleUnitsError, got %v", err)
	}

	spec.FinalConcentration = measurement(50, "ug/mL")
	spec.Sample.Properties = nil
	var missing *MissingStockError
	if _, err := r.Resolve(spec); !errors.As(err, &missing) {
		t.Fatalf("expected MissingStockError, got %v", err)
	}
}

func TestResolveAntibioticWithoutAliquot(t *testing.T) {
	r := NewResolver(fakeAliquots{})
	c, err := r.Resolve(Spec{
		Kind:               KindAntibiotic,
		Sample:             SampleRef{Name: "Kan", Properties: map[string]string{domain.PropertyWorkingConcentration: "50"}},
		FinalConcentration: measurement(25, "µg/mL"),
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if c.Item != nil {
		t.Fatalf("expected no item, got %+v", c.Item)
	}
}

func TestResolveUnsupportedKind(t *testing.T) {
	var unsupported *UnsupportedComponentKindError
	if _, err := NewResolver(nil).Resolve(Spec{Kind: Kind(42)}); !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedComponentKindError, got %v", err)
	}
	if _, err := ParseKind("Buffer"); !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedComponentKindError from ParseKind, got %v", err)
	}
	k, err := ParseKind("Inducer(s)")
	if err != nil || k != KindInducer {
		t.Fatalf("ParseKind(Inducer(s)) = %v, %v", k, err)
	}
}

func TestCompositionRecordAndJSON(t *testing.T) {
	r := NewResolver(nil)
	control := Spec{Kind: KindControlTag, Sample: SampleRef{Name: "growth_control"}, Attributes: map[string]any{"growth_control": "negative"}}
	comps, err := r.ResolveAll([]Spec{strainSpec(), mediaSpec(), iptgSpec(10, "uM"), control})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	culture, err := Build(comps, units.New(1000, "uL"), map[string]any{"temperature": "30_C"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	comp := culture.Composition()
	rec, ok := comp.Record(KindInducer, "IPTG")
	if !ok {
		t.Fatalf("expected IPTG record")
	}
	if rec.ItemID != "i-iptg" || *rec.DilutionFactor != 0.01 || rec.ItemConcentration.Units != units.Millimolar {
		t.Fatalf("unexpected record %+v", rec)
	}

	raw, err := json.Marshal(comp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("unmarshal generic: %v", err)
	}
	for _, key := range []string{"Strain", "Media", "Inducer(s)", "Control Tag", OptionsKey, CultureVolumeKey} {
		if _, ok := generic[key]; !ok {
			t.Fatalf("expected key %q in %s", key, raw)
		}
	}

	var decoded Composition
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(comp, decoded); diff != "" {
		t.Fatalf("composition mismatch (-want +got):\n%s", diff)
	}
}

func TestCompositionWithDoesNotMutate(t *testing.T) {
	base := Composition{}.with(KindStrain, "a", Record{ItemID: "1"})
	next := base.with(KindStrain, "b", Record{ItemID: "2"})
	if len(base.Components[KindStrain]) != 1 {
		t.Fatalf("base mutated: %+v", base.Components)
	}
	if len(next.Components[KindStrain]) != 2 {
		t.Fatalf("expected two strains, got %+v", next.Components)
	}
}

func TestCultureCloneIsIndependent(t *testing.T) {
	r := NewResolver(nil)
	comps, _ := r.ResolveAll([]Spec{mediaSpec(), iptgSpec(10, "uM")})
	culture, err := Build(comps, units.New(1000, "uL"), map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	clone := culture.Clone()
	*clone.Components[1].DilutionFactor = 0.5
	clone.Options["k"] = "changed"
	if *culture.Components[1].DilutionFactor != 0.01 || culture.Options["k"] != "v" {
		t.Fatalf("clone shares state with original")
	}
}
