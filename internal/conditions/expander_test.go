package conditions

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cultureplan/internal/composition"
	"cultureplan/pkg/units"
)

type fakeInventory struct {
	samples map[string]composition.SampleRef
	items   map[string][]composition.ItemRef
	lookups int
}

func newFakeInventory() *fakeInventory {
	inv := &fakeInventory{samples: map[string]composition.SampleRef{}, items: map[string][]composition.ItemRef{}}
	for _, name := range []string{"NOR 00", "NOR 01", "SC Media", "IPTG", "Arabinose", "aTc", "Amp", "Kan"} {
		inv.samples[name] = composition.SampleRef{ID: "s-" + name, Name: name}
	}
	inv.items["IPTG"] = []composition.ItemRef{
		{ID: "iptg-1M-a", Label: "1 M IPTG Stock"},
		{ID: "iptg-1mM-a", Label: "1 mM IPTG Stock"},
		{ID: "iptg-1M-b", Label: "1 M IPTG Stock"},
		{ID: "iptg-1mM-b", Label: "1 mM IPTG Stock"},
	}
	inv.items["Arabinose"] = []composition.ItemRef{{ID: "ara-1", Label: "20 mM Arabinose Stock"}}
	inv.items["aTc"] = []composition.ItemRef{{ID: "atc-1", Label: "100 uM aTc Stock"}}
	inv.items["NOR 00"] = []composition.ItemRef{{ID: "nor00-old", Label: "Yeast Glycerol Stock"}, {ID: "nor00-new", Label: "Yeast Glycerol Stock"}}
	return inv
}

func (f *fakeInventory) SampleByName(name string) (composition.SampleRef, bool) {
	f.lookups++
	s, ok := f.samples[name]
	return s, ok
}

func (f *fakeInventory) Item(id string) (composition.ItemRef, bool) {
	f.lookups++
	for _, items := range f.items {
		for _, item := range items {
			if item.ID == id {
				return item, true
			}
		}
	}
	return composition.ItemRef{}, false
}

func (f *fakeInventory) Items(sample composition.SampleRef) []composition.ItemRef {
	f.lookups++
	return f.items[sample.Name]
}

func names(specs []composition.Spec) []string {
	out := make([]string, len(specs))
	for i, s := range specs {
		out[i] = s.Sample.Name + "@" + s.FinalConcentration.String()
	}
	return out
}

func TestExpandInducerCombinations(t *testing.T) {
	e := NewExpander(newFakeInventory())
	exp, err := e.Expand(FieldInducers, `{
		"IPTG": {"final_concentration": ["10_uM", "20_uM", "30_uM"]},
		"Arabinose": {"final_concentration": ["1_mM", "2_mM"]}
	}`)
	require.NoError(t, err)
	require.Len(t, exp.Alternatives, 6)
	assert.Equal(t, []string{"IPTG@10_µM", "Arabinose@1_mM"}, names(exp.Alternatives[0]))
	assert.Equal(t, []string{"IPTG@10_µM", "Arabinose@2_mM"}, names(exp.Alternatives[1]))
	assert.Equal(t, []string{"IPTG@30_µM", "Arabinose@2_mM"}, names(exp.Alternatives[5]))
	for _, alt := range exp.Alternatives {
		assert.NotEqual(t, alt[0].Sample.Name, alt[1].Sample.Name)
	}
}

func TestCombinationsCountIsProductOfGroupSizes(t *testing.T) {
	mk := func(name string, n int) []composition.Spec {
		out := make([]composition.Spec, n)
		for i := range out {
			m := units.New(float64(i+1), "uM")
			out[i] = composition.Spec{Sample: composition.SampleRef{Name: name}, FinalConcentration: &m}
		}
		return out
	}
	cases := [][]int{{1}, {3}, {2, 3}, {2, 3, 2}, {1, 1, 1, 4}}
	for _, sizes := range cases {
		var groups [][]composition.Spec
		want := 1
		for i, n := range sizes {
			groups = append(groups, mk(string(rune('a'+i)), n))
			want *= n
		}
		got := Combinations(groups)
		assert.Len(t, got, want, "sizes %v", sizes)
		seen := map[string]bool{}
		for _, combo := range got {
			key := ""
			for _, s := range combo {
				key += s.Sample.Name + s.FinalConcentration.String() + ";"
			}
			assert.False(t, seen[key], "duplicate combination %s", key)
			seen[key] = true
		}
	}
	assert.Equal(t, [][]composition.Spec{{}}, Combinations(nil))
}

func TestExpandSingleInducerScalarConcentration(t *testing.T) {
	e := NewExpander(newFakeInventory())
	exp, err := e.Expand(FieldInducers, `{"aTc": {"final_concentration": "500_nM"}}`)
	require.NoError(t, err)
	require.Len(t, exp.Alternatives, 1)
	spec := exp.Alternatives[0][0]
	assert.Equal(t, "atc-1", spec.Item.ID)
	assert.Equal(t, composition.KindInducer, spec.Kind)
}

func TestExpandInducerItemPairing(t *testing.T) {
	e := NewExpander(newFakeInventory())
	exp, err := e.Expand(FieldInducers, `{"IPTG": {"final_concentration": ["1_uM", "2_uM"], "item_id": ["iptg-1mM-b", "iptg-1mM-a"]}}`)
	require.NoError(t, err)
	assert.Equal(t, "iptg-1mM-b", exp.Alternatives[0][0].Item.ID)
	assert.Equal(t, "iptg-1mM-a", exp.Alternatives[1][0].Item.ID)

	exp, err = e.Expand(FieldInducers, `{"IPTG": {"final_concentration": ["1_uM", "2_uM"], "item_id": "iptg-1M-b"}}`)
	require.NoError(t, err)
	assert.Equal(t, "iptg-1M-b", exp.Alternatives[0][0].Item.ID)
	assert.Equal(t, "iptg-1M-b", exp.Alternatives[1][0].Item.ID)

	_, err = e.Expand(FieldInducers, `{"IPTG": {"final_concentration": ["1_uM", "2_uM"], "item_id": ["iptg-1M-b"]}}`)
	var invalid *InvalidParameterError
	assert.ErrorAs(t, err, &invalid)

	_, err = e.Expand(FieldInducers, `{"IPTG": {"final_concentration": "1_uM", "item_id": "missing"}}`)
	var unknown *UnknownItemError
	assert.ErrorAs(t, err, &unknown)
}

func TestResolveInducerItemFloor(t *testing.T) {
	inv := newFakeInventory()
	e := NewExpander(inv)
	iptg := inv.samples["IPTG"]

	item, err := e.ResolveInducerItem(iptg, units.New(10, "uM"))
	require.NoError(t, err)
	assert.Equal(t, "iptg-1mM-a", item.ID, "1 M stock is too concentrated; oldest 1 mM item wins")

	item, err = e.ResolveInducerItem(iptg, units.New(5, "mM"))
	require.NoError(t, err)
	assert.Equal(t, "iptg-1M-a", item.ID)

	item, err = e.ResolveInducerItem(iptg, units.New(0, "uM"))
	require.NoError(t, err)
	assert.Equal(t, "iptg-1M-a", item.ID)

	_, err = e.ResolveInducerItem(iptg, units.New(1, "nM"))
	var missing *MissingInducerItemError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "IPTG", missing.Sample)

	_, err = e.ResolveInducerItem(inv.samples["Amp"], units.New(1, "uM"))
	assert.ErrorAs(t, err, &missing)
}

func TestResolveInducerItemNeverBelowFloor(t *testing.T) {
	inv := newFakeInventory()
	e := NewExpander(inv)
	for _, qty := range []float64{0.5, 1, 5, 10, 50, 100, 500, 1000, 5000} {
		final := units.New(qty, "uM")
		item, err := e.ResolveInducerItem(inv.samples["IPTG"], final)
		if err != nil {
			continue
		}
		label, err := units.ParseStockLabel(item.Label)
		require.NoError(t, err)
		df, err := composition.DilutionFactor(label.Concentration, final)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, df, MinDilutionFactor, "final %v", final)
	}
}

func TestExpandAntibiotics(t *testing.T) {
	e := NewExpander(newFakeInventory())
	exp, err := e.Expand(FieldAntibiotics, `{"Amp": {"final_concentration": "100_ug/mL"}, "Kan": {"final_concentration": "50_ug/mL"}}`)
	require.NoError(t, err)
	require.Len(t, exp.Alternatives, 1)
	require.Len(t, exp.Alternatives[0], 2)
	assert.Equal(t, "Amp", exp.Alternatives[0][0].Sample.Name)
	assert.Equal(t, units.MicrogramsPerMilliliter, exp.Alternatives[0][1].FinalConcentration.Units)

	_, err = e.Expand(FieldAntibiotics, `{"Amp": {"final_concentration": ["1_ug/mL"]}}`)
	var invalid *InvalidParameterError
	assert.ErrorAs(t, err, &invalid)

	exp, err = e.Expand(FieldAntibiotics, `{}`)
	require.NoError(t, err)
	assert.Equal(t, [][]composition.Spec{{}}, exp.Alternatives)
}

func TestExpandStrainForms(t *testing.T) {
	e := NewExpander(newFakeInventory())
	for _, raw := range []string{"NOR 00", `"NOR 00"`, `{"sample": "NOR 00"}`} {
		exp, err := e.Expand(FieldStrain, raw)
		require.NoError(t, err, raw)
		spec := exp.Alternatives[0][0]
		assert.Equal(t, composition.KindStrain, spec.Kind)
		assert.Equal(t, "nor00-old", spec.Item.ID, raw)
	}
	exp, err := e.Expand(FieldStrain, `{"sample": "NOR 00", "item_id": "nor00-new"}`)
	require.NoError(t, err)
	assert.Equal(t, "nor00-new", exp.Alternatives[0][0].Item.ID)

	exp, err = e.Expand(FieldMedia, "SC Media")
	require.NoError(t, err)
	assert.Nil(t, exp.Alternatives[0][0].Item)

	_, err = e.Expand(FieldStrain, "NOR 99")
	var unknown *UnknownSampleError
	assert.ErrorAs(t, err, &unknown)
}

func TestExpandControlTagAndOptions(t *testing.T) {
	e := NewExpander(newFakeInventory())
	exp, err := e.Expand(FieldControlTag, `{"growth_control": "positive", "note": "wt"}`)
	require.NoError(t, err)
	spec := exp.Alternatives[0][0]
	assert.Equal(t, "growth_control", spec.Sample.Name)
	assert.Equal(t, "positive", spec.Attributes["growth_control"])

	exp, err = e.Expand(FieldOptions, `{"temperature": 30}`)
	require.NoError(t, err)
	assert.Equal(t, float64(30), exp.Options["temperature"])
}

func TestExpandRejectsUnknownFieldAndBadJSON(t *testing.T) {
	e := NewExpander(newFakeInventory())
	_, err := e.Expand(Field("Buffer"), "{}")
	var unsupported *UnsupportedFieldError
	assert.ErrorAs(t, err, &unsupported)

	_, err = e.Expand(FieldInducers, `{"IPTG": `)
	var invalid *InvalidJSONError
	assert.ErrorAs(t, err, &invalid)
}

func TestDecodeObjectKeepsOrder(t *testing.T) {
	members, err := decodeObject([]byte(`{"z": 1, "a": [1,2], "m": {"x": true}}`))
	require.NoError(t, err)
	keys := []string{members[0].Key, members[1].Key, members[2].Key}
	assert.Equal(t, []string{"z", "a", "m"}, keys)

	_, err = decodeObject([]byte(`{"a": 1, "a": 2}`))
	assert.Error(t, err)
	_, err = decodeObject([]byte(`[1]`))
	assert.Error(t, err)
	_, err = decodeObject([]byte(`{"a": 1} {"b": 2}`))
	assert.Error(t, err)
}

func TestConditionsCartesianProduct(t *testing.T) {
	e := NewExpander(newFakeInventory())
	conds, err := e.Conditions(Definition{
		Strain:      "NOR 00",
		Media:       "SC Media",
		Inducers:    `{"IPTG": {"final_concentration": ["10_uM", "20_uM"]}, "Arabinose": {"final_concentration": ["1_mM", "2_mM", "3_mM"]}}`,
		Antibiotics: `{"Amp": {"final_concentration": "100_ug/mL"}}`,
		Options:     `{"shaking": "800_rpm"}`,
		Replicates:  3,
	})
	require.NoError(t, err)
	require.Len(t, conds, 6)
	for _, c := range conds {
		assert.Equal(t, 3, c.Replicates)
		assert.Equal(t, "800_rpm", c.Options["shaking"])
		require.Len(t, c.Specs, 5)
		assert.Equal(t, composition.KindStrain, c.Specs[0].Kind)
		assert.Equal(t, composition.KindMedia, c.Specs[1].Kind)
		assert.Equal(t, composition.KindAntibiotic, c.Specs[4].Kind)
	}
}

func TestValidateFailsFastBeforeLookups(t *testing.T) {
	inv := newFakeInventory()
	e := NewExpander(inv)
	_, err := e.Conditions(Definition{Strain: "NOR 00", Media: "SC Media", Antibiotics: `{"Amp": }`, Replicates: 1})
	var invalid *InvalidJSONError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, string(FieldAntibiotics), invalid.Field)
	assert.Zero(t, inv.lookups)

	err = Definition{Strain: "NOR 00", Media: "SC Media"}.Validate()
	var param *InvalidParameterError
	assert.True(t, errors.As(err, &param))
}
