package composition

import (
	"encoding/json"
	"fmt"

	"cultureplan/pkg/units"
)

// Reserved top-level keys of a serialized composition.
const (
	OptionsKey       = "Option(s)"
	CultureVolumeKey = "Culture_Volume"
)

// Record is the per-component entry of a composition.
type Record struct {
	ItemID             string             `json:"item_id,omitempty"`
	ItemConcentration  *units.Measurement `json:"item_concentration,omitempty"`
	FinalConcentration *units.Measurement `json:"final_concentration,omitempty"`
	DilutionFactor     *float64           `json:"dilution_factor,omitempty"`
	WorkingVolume      units.Measurement  `json:"working_volume"`
	Attributes         map[string]any     `json:"attributes,omitempty"`
}

// Composition is the nested description attached to a well: kind, then
// sample name, then record.
type Composition struct {
	Components    map[Kind]map[string]Record
	Options       map[string]any
	CultureVolume units.Measurement
}

// Composition folds the culture's components into a composition record.
func (c Culture) Composition() Composition {
	out := Composition{CultureVolume: c.Volume, Options: cloneAny(c.Options)}
	for _, comp := range c.Components {
		out = out.with(comp.Kind, comp.Name(), recordOf(comp))
	}
	return out
}

func recordOf(c Component) Record {
	c = c.clone()
	rec := Record{
		ItemConcentration:  c.StockConcentration,
		FinalConcentration: c.FinalConcentration,
		DilutionFactor:     c.DilutionFactor,
		WorkingVolume:      c.WorkingVolume,
		Attributes:         c.Attributes,
	}
	if c.Item != nil {
		rec.ItemID = c.Item.ID
	}
	return rec
}

// with returns a copy of the composition holding rec under kind/name.
func (c Composition) with(kind Kind, name string, rec Record) Composition {
	next := Composition{
		Components:    make(map[Kind]map[string]Record, len(c.Components)+1),
		Options:       c.Options,
		CultureVolume: c.CultureVolume,
	}
	for k, byName := range c.Components {
		next.Components[k] = byName
	}
	byName := make(map[string]Record, len(c.Components[kind])+1)
	for n, r := range c.Components[kind] {
		byName[n] = r
	}
	byName[name] = rec
	next.Components[kind] = byName
	return next
}

// Record returns the entry for a component.
func (c Composition) Record(kind Kind, name string) (Record, bool) {
	rec, ok := c.Components[kind][name]
	return rec, ok
}

// MarshalJSON renders the composition keyed by field labels plus the
// reserved option and culture-volume keys.
func (c Composition) MarshalJSON() ([]byte, error) {
	payload := make(map[string]any, len(c.Components)+2)
	for kind, byName := range c.Components {
		payload[kind.String()] = byName
	}
	options := c.Options
	if options == nil {
		options = map[string]any{}
	}
	payload[OptionsKey] = options
	payload[CultureVolumeKey] = c.CultureVolume
	return json.Marshal(payload)
}

// UnmarshalJSON reads a composition written by MarshalJSON.
func (c *Composition) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Composition{Components: map[Kind]map[string]Record{}}
	for key, value := range raw {
		switch key {
		case OptionsKey:
			if err := json.Unmarshal(value, &out.Options); err != nil {
				return fmt.Errorf("%s: %w", OptionsKey, err)
			}
		case CultureVolumeKey:
			if err := json.Unmarshal(value, &out.CultureVolume); err != nil {
				return fmt.Errorf("%s: %w", CultureVolumeKey, err)
			}
		default:
			kind, err := ParseKind(key)
			if err != nil {
				return err
			}
			var byName map[string]Record
			if err := json.Unmarshal(value, &byName); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			out.Components[kind] = byName
		}
	}
	*c = out
	return nil
}
