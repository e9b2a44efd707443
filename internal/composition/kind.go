// Package composition resolves experimental components into concrete
// stock/dilution records and assigns per-culture working volumes.
package composition

import "fmt"

// Kind is the closed set of component categories a culture may contain.
type Kind int

const (
	KindStrain Kind = iota + 1
	KindMedia
	KindControlTag
	KindInducer
	KindAntibiotic
)

// Kinds lists every kind in composition order.
var Kinds = []Kind{KindStrain, KindMedia, KindControlTag, KindInducer, KindAntibiotic}

var kindLabels = map[Kind]string{
	KindStrain:     "Strain",
	KindMedia:      "Media",
	KindControlTag: "Control Tag",
	KindInducer:    "Inducer(s)",
	KindAntibiotic: "Antibiotic(s)",
}

// String returns the field label used for the kind in composition records.
func (k Kind) String() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// HasDilution reports whether components of this kind are diluted from a stock.
func (k Kind) HasDilution() bool {
	return k == KindInducer || k == KindAntibiotic
}

// MarshalText encodes the kind as its label.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindLabels[k]; !ok {
		return nil, &UnsupportedComponentKindError{Kind: k.String()}
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind label.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind maps a field label onto its kind.
func ParseKind(label string) (Kind, error) {
	for _, k := range Kinds {
		if kindLabels[k] == label {
			return k, nil
		}
	}
	return 0, &UnsupportedComponentKindError{Kind: label}
}
