package composition

import (
	"fmt"
	"strconv"
	"strings"

	"cultureplan/pkg/domain"
	"cultureplan/pkg/units"
)

// SampleRef is the slice of a catalog sample the resolver needs.
type SampleRef struct {
	ID         string
	Name       string
	Properties map[string]string
}

// ItemRef identifies a source item. Label is its container type name, which
// for stocks carries the concentration ("1 mM IPTG Stock").
type ItemRef struct {
	ID    string
	Label string
}

// Spec is an unresolved component as produced by condition expansion.
type Spec struct {
	Kind               Kind
	Sample             SampleRef
	Item               *ItemRef
	FinalConcentration *units.Measurement
	Attributes         map[string]any
}

// Component is a resolved culture ingredient.
type Component struct {
	Kind               Kind
	Sample             SampleRef
	Item               *ItemRef
	StockConcentration *units.Measurement
	FinalConcentration *units.Measurement
	DilutionFactor     *float64
	WorkingVolume      units.Measurement
	Attributes         map[string]any
}

// Name returns the sample name keying the component in composition records.
func (c Component) Name() string {
	return c.Sample.Name
}

func (c Component) clone() Component {
	out := c
	if c.Item != nil {
		item := *c.Item
		out.Item = &item
	}
	if c.StockConcentration != nil {
		m := *c.StockConcentration
		out.StockConcentration = &m
	}
	if c.FinalConcentration != nil {
		m := *c.FinalConcentration
		out.FinalConcentration = &m
	}
	if c.DilutionFactor != nil {
		df := *c.DilutionFactor
		out.DilutionFactor = &df
	}
	out.Sample.Properties = cloneStrings(c.Sample.Properties)
	out.Attributes = cloneAny(c.Attributes)
	return out
}

// AliquotFinder locates the working aliquot of an antibiotic sample.
type AliquotFinder interface {
	FindAliquot(sample SampleRef) (ItemRef, bool)
}

// Resolver turns component specs into resolved components.
type Resolver struct {
	aliquots AliquotFinder
}

// NewResolver constructs a resolver. A nil finder disables aliquot lookup.
func NewResolver(aliquots AliquotFinder) *Resolver {
	return &Resolver{aliquots: aliquots}
}

// Resolve derives stock concentration and dilution factor for the spec.
func (r *Resolver) Resolve(spec Spec) (Component, error) {
	switch spec.Kind {
	case KindStrain, KindMedia, KindControlTag:
		return passThrough(spec), nil
	case KindInducer:
		return resolveInducer(spec)
	case KindAntibiotic:
		return r.resolveAntibiotic(spec)
	default:
		return Component{}, &UnsupportedComponentKindError{Kind: spec.Kind.String()}
	}
}

// ResolveAll resolves specs in order, stopping at the first failure.
func (r *Resolver) ResolveAll(specs []Spec) ([]Component, error) {
	out := make([]Component, 0, len(specs))
	for _, spec := range specs {
		c, err := r.Resolve(spec)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func passThrough(spec Spec) Component {
	c := Component{
		Kind:               spec.Kind,
		Sample:             spec.Sample,
		Item:               spec.Item,
		FinalConcentration: spec.FinalConcentration,
		Attributes:         spec.Attributes,
	}
	return c.clone()
}

func resolveInducer(spec Spec) (Component, error) {
	c := passThrough(spec)
	if c.Item == nil {
		return Component{}, &MissingStockError{Sample: spec.Sample.Name, Reason: "no source item"}
	}
	if c.FinalConcentration == nil {
		return Component{}, &MissingConcentrationError{Sample: spec.Sample.Name}
	}
	label, err := units.ParseStockLabel(c.Item.Label)
	if err != nil {
		return Component{}, &MissingStockError{Sample: spec.Sample.Name, Reason: err.Error()}
	}
	stock := label.Concentration
	df, err := DilutionFactor(stock, *c.FinalConcentration)
	if err != nil {
		return Component{}, fmt.Errorf("inducer %q: %w", spec.Sample.Name, err)
	}
	c.StockConcentration = &stock
	c.DilutionFactor = &df
	return c, nil
}

func (r *Resolver) resolveAntibiotic(spec Spec) (Component, error) {
	c := passThrough(spec)
	if c.Item == nil && r.aliquots != nil {
		if item, ok := r.aliquots.FindAliquot(spec.Sample); ok {
			c.Item = &item
		}
	}
	if c.FinalConcentration == nil {
		return Component{}, &MissingConcentrationError{Sample: spec.Sample.Name}
	}
	raw, ok := spec.Sample.Properties[domain.PropertyWorkingConcentration]
	if !ok {
		return Component{}, &MissingStockError{Sample: spec.Sample.Name, Reason: "no " + domain.PropertyWorkingConcentration + " property"}
	}
	stockQty, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || stockQty <= 0 {
		return Component{}, &MissingStockError{Sample: spec.Sample.Name, Reason: fmt.Sprintf("working concentration %q is not a positive number", raw)}
	}
	final := *c.FinalConcentration
	if units.NormalizeUnit(final.Units) != units.MicrogramsPerMilliliter {
		return Component{}, &IncompatibleUnitsError{Sample: spec.Sample.Name, Final: final.Units, Stock: units.MicrogramsPerMilliliter}
	}
	stock := units.Measurement{Qty: stockQty, Units: units.MicrogramsPerMilliliter}
	df := units.Round(final.Qty/stockQty, 4)
	c.StockConcentration = &stock
	c.DilutionFactor = &df
	return c, nil
}

// DilutionFactor returns final/stock in molar units, rounded to four places.
func DilutionFactor(stock, final units.Measurement) (float64, error) {
	ratio, err := units.Ratio(final, stock)
	if err != nil {
		return 0, err
	}
	return units.Round(ratio, 4), nil
}

func cloneStrings(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneAny(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneAny(nested)
			continue
		}
		out[k] = v
	}
	return out
}
