package conditions

import (
	"encoding/json"
	"strings"

	"cultureplan/internal/composition"
)

// Definition is one experiment definition as entered by the researcher.
// Object-valued fields hold raw JSON text.
type Definition struct {
	Strain      string `json:"strain" yaml:"strain"`
	Media       string `json:"media" yaml:"media"`
	Inducers    string `json:"inducers,omitempty" yaml:"inducers,omitempty"`
	Antibiotics string `json:"antibiotics,omitempty" yaml:"antibiotics,omitempty"`
	ControlTag  string `json:"control_tag,omitempty" yaml:"control_tag,omitempty"`
	Options     string `json:"options,omitempty" yaml:"options,omitempty"`
	Replicates  int    `json:"replicates" yaml:"replicates"`
}

// jsonFields lists the fields that must hold valid JSON, in expansion order.
func (d Definition) jsonFields() []struct {
	field Field
	raw   string
} {
	return []struct {
		field Field
		raw   string
	}{
		{FieldControlTag, d.ControlTag},
		{FieldInducers, d.Inducers},
		{FieldAntibiotics, d.Antibiotics},
		{FieldOptions, d.Options},
	}
}

// Validate checks that every JSON-valued field parses and the replicate
// count is positive. It runs before any expansion.
func (d Definition) Validate() error {
	for _, f := range d.jsonFields() {
		if strings.TrimSpace(f.raw) == "" {
			continue
		}
		var probe any
		if err := json.Unmarshal([]byte(f.raw), &probe); err != nil {
			return &InvalidJSONError{Field: string(f.field), Err: err}
		}
	}
	if d.Replicates < 1 {
		return &InvalidParameterError{Field: "Replicates", Reason: "at least one replicate is required"}
	}
	return nil
}

// Condition is one distinct culture recipe and the number of replicates to
// grow of it.
type Condition struct {
	Specs      []composition.Spec
	Options    map[string]any
	Replicates int
}

// Conditions expands a definition into the cartesian product of its fields.
func (e *Expander) Conditions(d Definition) ([]Condition, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	fields := []struct {
		field Field
		raw   string
	}{
		{FieldStrain, d.Strain},
		{FieldMedia, d.Media},
	}
	fields = append(fields, d.jsonFields()...)

	product := [][]composition.Spec{{}}
	var options map[string]any
	for _, f := range fields {
		exp, err := e.Expand(f.field, f.raw)
		if err != nil {
			return nil, err
		}
		if f.field == FieldOptions {
			options = exp.Options
			continue
		}
		product = cross(product, exp.Alternatives)
	}
	out := make([]Condition, 0, len(product))
	for _, specs := range product {
		out = append(out, Condition{Specs: specs, Options: options, Replicates: d.Replicates})
	}
	return out, nil
}

func cross(left, right [][]composition.Spec) [][]composition.Spec {
	out := make([][]composition.Spec, 0, len(left)*len(right))
	for _, l := range left {
		for _, r := range right {
			combined := make([]composition.Spec, 0, len(l)+len(r))
			combined = append(combined, l...)
			combined = append(combined, r...)
			out = append(out, combined)
		}
	}
	return out
}
