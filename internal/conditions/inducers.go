package conditions

import (
	"encoding/json"
	"fmt"

	"cultureplan/internal/composition"
	"cultureplan/pkg/units"
)

type inducerParams struct {
	FinalConcentration json.RawMessage `json:"final_concentration"`
	ItemID             json.RawMessage `json:"item_id"`
}

func (e *Expander) expandInducers(raw string) (Expansion, error) {
	members, err := decodeField(FieldInducers, raw)
	if err != nil {
		return Expansion{}, err
	}
	var groups [][]composition.Spec
	for _, m := range members {
		specs, err := e.inducerSpecs(m)
		if err != nil {
			return Expansion{}, err
		}
		groups = append(groups, specs)
	}
	return Expansion{Field: FieldInducers, Alternatives: Combinations(groups)}, nil
}

// inducerSpecs produces one spec per final concentration of one inducer.
func (e *Expander) inducerSpecs(m member) ([]composition.Spec, error) {
	invalid := func(reason string) error {
		return &InvalidParameterError{Field: string(FieldInducers), Name: m.Key, Reason: reason}
	}
	var params inducerParams
	if err := json.Unmarshal(m.Value, &params); err != nil {
		return nil, invalid(err.Error())
	}
	if isNull(params.FinalConcentration) {
		return nil, invalid("final_concentration is required")
	}
	finals, err := decodeMeasurements(params.FinalConcentration)
	if err != nil {
		return nil, invalid(err.Error())
	}
	if len(finals) == 0 {
		return nil, invalid("final_concentration list is empty")
	}
	ids, err := pairItemIDs(params.ItemID, len(finals))
	if err != nil {
		return nil, invalid(err.Error())
	}
	sample, ok := e.inventory.SampleByName(m.Key)
	if !ok {
		return nil, &UnknownSampleError{Name: m.Key}
	}
	specs := make([]composition.Spec, 0, len(finals))
	for i, final := range finals {
		var item composition.ItemRef
		if ids[i] != "" {
			item, err = e.lookupItem(ids[i])
		} else {
			item, err = e.ResolveInducerItem(sample, final)
		}
		if err != nil {
			return nil, err
		}
		specs = append(specs, composition.Spec{
			Kind:               composition.KindInducer,
			Sample:             sample,
			Item:               &item,
			FinalConcentration: &final,
		})
	}
	return specs, nil
}

func decodeMeasurements(raw json.RawMessage) ([]units.Measurement, error) {
	if !isList(raw) {
		m, err := decodeMeasurement(raw)
		if err != nil {
			return nil, err
		}
		return []units.Measurement{m}, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	out := make([]units.Measurement, 0, len(elems))
	for _, elem := range elems {
		m, err := decodeMeasurement(elem)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// pairItemIDs aligns item ids with n final concentrations. A list pairs by
// position, a scalar is reused, and an absent id yields blanks.
func pairItemIDs(raw json.RawMessage, n int) ([]string, error) {
	ids := make([]string, n)
	if isNull(raw) {
		return ids, nil
	}
	if !isList(raw) {
		id, err := decodeID(raw)
		if err != nil {
			return nil, err
		}
		for i := range ids {
			ids[i] = id
		}
		return ids, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	if len(elems) != n {
		return nil, fmt.Errorf("item_id has %d entries for %d concentrations", len(elems), n)
	}
	for i, elem := range elems {
		id, err := decodeID(elem)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// ResolveInducerItem picks the stock item an inducer should be drawn from.
// Stocks are grouped by their concentration label in inventory order; the
// oldest item of the first group usable at or above MinDilutionFactor wins.
func (e *Expander) ResolveInducerItem(sample composition.SampleRef, final units.Measurement) (composition.ItemRef, error) {
	items := e.inventory.Items(sample)
	if len(items) == 0 {
		return composition.ItemRef{}, &MissingInducerItemError{Sample: sample.Name, FinalConcentration: final}
	}
	if final.Qty <= 0 {
		return items[0], nil
	}
	var labels []string
	first := map[string]composition.ItemRef{}
	for _, item := range items {
		if _, ok := first[item.Label]; !ok {
			labels = append(labels, item.Label)
			first[item.Label] = item
		}
	}
	for _, label := range labels {
		stock, err := units.ParseStockLabel(label)
		if err != nil {
			continue
		}
		df, err := composition.DilutionFactor(stock.Concentration, final)
		if err != nil {
			continue
		}
		if df >= MinDilutionFactor {
			return first[label], nil
		}
	}
	return composition.ItemRef{}, &MissingInducerItemError{Sample: sample.Name, FinalConcentration: final}
}

// Combinations picks one spec from each group in every possible way. It walks
// the index-ordered n-combinations of the flattened groups and keeps those
// that draw each sample exactly once, so the result has ∏len(group) entries.
func Combinations(groups [][]composition.Spec) [][]composition.Spec {
	switch len(groups) {
	case 0:
		return [][]composition.Spec{{}}
	case 1:
		out := make([][]composition.Spec, 0, len(groups[0]))
		for _, spec := range groups[0] {
			out = append(out, []composition.Spec{spec})
		}
		return out
	}
	var flat []composition.Spec
	for _, g := range groups {
		flat = append(flat, g...)
	}
	n := len(groups)
	var out [][]composition.Spec
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	for {
		if distinctSamples(flat, idx) {
			combo := make([]composition.Spec, n)
			for i, j := range idx {
				combo[i] = flat[j]
			}
			out = append(out, combo)
		}
		// advance to the next index-ordered combination
		i := n - 1
		for i >= 0 && idx[i] == len(flat)-n+i {
			i--
		}
		if i < 0 {
			return out
		}
		idx[i]++
		for j := i + 1; j < n; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

func distinctSamples(flat []composition.Spec, idx []int) bool {
	seen := make(map[string]struct{}, len(idx))
	for _, j := range idx {
		name := flat[j].Sample.Name
		if _, dup := seen[name]; dup {
			return false
		}
		seen[name] = struct{}{}
	}
	return true
}
