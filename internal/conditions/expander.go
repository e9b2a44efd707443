// Package conditions expands raw experimental-condition fields into the
// component specs that make up each culture.
package conditions

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"cultureplan/internal/composition"
	"cultureplan/pkg/units"
)

// Field names a raw condition field.
type Field string

// Recognized condition fields.
const (
	FieldStrain      Field = "Strain"
	FieldMedia       Field = "Media"
	FieldControlTag  Field = "Control Tag"
	FieldInducers    Field = "Inducer(s)"
	FieldAntibiotics Field = "Antibiotic(s)"
	FieldOptions     Field = "Option(s)"
)

// MinDilutionFactor is the smallest dilution a stock may be used at; lower
// factors translate to volumes below pipetting accuracy.
const MinDilutionFactor = 0.001

// Inventory is the read-only catalog view used during expansion.
type Inventory interface {
	SampleByName(name string) (composition.SampleRef, bool)
	Item(id string) (composition.ItemRef, bool)
	// Items returns the live (non-deleted) items of a sample, oldest first.
	Items(sample composition.SampleRef) []composition.ItemRef
}

// Expansion is the parsed form of one field. Each alternative is a set of
// specs that go into the same culture; distinct alternatives become
// distinct conditions.
type Expansion struct {
	Field        Field
	Alternatives [][]composition.Spec
	Options      map[string]any
}

func single(field Field, specs ...composition.Spec) Expansion {
	return Expansion{Field: field, Alternatives: [][]composition.Spec{specs}}
}

// Expander parses condition fields against an inventory.
type Expander struct {
	inventory Inventory
}

// NewExpander constructs an expander.
func NewExpander(inventory Inventory) *Expander {
	return &Expander{inventory: inventory}
}

// Expand parses one raw field value.
func (e *Expander) Expand(field Field, raw string) (Expansion, error) {
	switch field {
	case FieldStrain:
		return e.expandSample(field, composition.KindStrain, raw)
	case FieldMedia:
		return e.expandSample(field, composition.KindMedia, raw)
	case FieldInducers:
		return e.expandInducers(raw)
	case FieldAntibiotics:
		return e.expandAntibiotics(raw)
	case FieldControlTag:
		return expandControlTag(raw)
	case FieldOptions:
		return expandOptions(raw)
	default:
		return Expansion{}, &UnsupportedFieldError{Field: string(field)}
	}
}

type sampleReference struct {
	Sample string          `json:"sample"`
	ItemID json.RawMessage `json:"item_id"`
}

func (e *Expander) expandSample(field Field, kind composition.Kind, raw string) (Expansion, error) {
	trimmed := strings.TrimSpace(raw)
	var ref sampleReference
	switch {
	case trimmed == "":
		return Expansion{}, &InvalidParameterError{Field: string(field), Reason: "a sample is required"}
	case strings.HasPrefix(trimmed, "{"):
		if err := json.Unmarshal([]byte(trimmed), &ref); err != nil {
			return Expansion{}, &InvalidJSONError{Field: string(field), Err: err}
		}
	case strings.HasPrefix(trimmed, `"`):
		if err := json.Unmarshal([]byte(trimmed), &ref.Sample); err != nil {
			return Expansion{}, &InvalidJSONError{Field: string(field), Err: err}
		}
	default:
		ref.Sample = trimmed
	}
	sample, ok := e.inventory.SampleByName(ref.Sample)
	if !ok {
		return Expansion{}, &UnknownSampleError{Name: ref.Sample}
	}
	spec := composition.Spec{Kind: kind, Sample: sample}
	if !isNull(ref.ItemID) {
		id, err := decodeID(ref.ItemID)
		if err != nil {
			return Expansion{}, &InvalidParameterError{Field: string(field), Name: ref.Sample, Reason: err.Error()}
		}
		item, err := e.lookupItem(id)
		if err != nil {
			return Expansion{}, err
		}
		spec.Item = &item
	} else if items := e.inventory.Items(sample); len(items) > 0 {
		item := items[0]
		spec.Item = &item
	}
	return single(field, spec), nil
}

func (e *Expander) lookupItem(id string) (composition.ItemRef, error) {
	item, ok := e.inventory.Item(id)
	if !ok {
		return composition.ItemRef{}, &UnknownItemError{ID: id}
	}
	return item, nil
}

type antibioticParams struct {
	FinalConcentration json.RawMessage `json:"final_concentration"`
}

func (e *Expander) expandAntibiotics(raw string) (Expansion, error) {
	members, err := decodeField(FieldAntibiotics, raw)
	if err != nil {
		return Expansion{}, err
	}
	specs := make([]composition.Spec, 0, len(members))
	for _, m := range members {
		var params antibioticParams
		if err := json.Unmarshal(m.Value, &params); err != nil {
			return Expansion{}, &InvalidParameterError{Field: string(FieldAntibiotics), Name: m.Key, Reason: err.Error()}
		}
		if isList(params.FinalConcentration) {
			return Expansion{}, &InvalidParameterError{Field: string(FieldAntibiotics), Name: m.Key, Reason: "final_concentration must be a single value"}
		}
		final, err := decodeMeasurement(params.FinalConcentration)
		if err != nil {
			return Expansion{}, &InvalidParameterError{Field: string(FieldAntibiotics), Name: m.Key, Reason: err.Error()}
		}
		sample, ok := e.inventory.SampleByName(m.Key)
		if !ok {
			return Expansion{}, &UnknownSampleError{Name: m.Key}
		}
		specs = append(specs, composition.Spec{Kind: composition.KindAntibiotic, Sample: sample, FinalConcentration: &final})
	}
	return single(FieldAntibiotics, specs...), nil
}

func expandControlTag(raw string) (Expansion, error) {
	members, err := decodeField(FieldControlTag, raw)
	if err != nil {
		return Expansion{}, err
	}
	if len(members) == 0 {
		return single(FieldControlTag), nil
	}
	var attrs map[string]any
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return Expansion{}, &InvalidJSONError{Field: string(FieldControlTag), Err: err}
	}
	spec := composition.Spec{
		Kind:       composition.KindControlTag,
		Sample:     composition.SampleRef{Name: members[0].Key},
		Attributes: attrs,
	}
	return single(FieldControlTag, spec), nil
}

func expandOptions(raw string) (Expansion, error) {
	out := single(FieldOptions)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out.Options); err != nil {
		return Expansion{}, &InvalidJSONError{Field: string(FieldOptions), Err: err}
	}
	return out, nil
}

// decodeField decodes an object-valued field; blank input is an empty object.
func decodeField(field Field, raw string) ([]member, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	if !json.Valid([]byte(raw)) {
		var probe any
		return nil, &InvalidJSONError{Field: string(field), Err: json.Unmarshal([]byte(raw), &probe)}
	}
	members, err := decodeObject([]byte(raw))
	if err != nil {
		return nil, &InvalidParameterError{Field: string(field), Reason: err.Error()}
	}
	return members, nil
}

// decodeMeasurement accepts "<qty>_<unit>" strings or {"qty","units"} objects.
func decodeMeasurement(raw json.RawMessage) (units.Measurement, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var m units.Measurement
		if err := json.Unmarshal(trimmed, &m); err != nil {
			return units.Measurement{}, err
		}
		return units.New(m.Qty, m.Units), nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return units.Measurement{}, err
	}
	return units.ParseMeasurement(s)
}

// decodeID accepts string or integer item ids.
func decodeID(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return "", err
	}
	return n.String(), nil
}
