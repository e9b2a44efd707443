// Package units implements the quantity arithmetic shared by culture
// composition: "<qty>_<unit>" parsing, molar normalization and rounding.
package units

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Canonical unit spellings.
const (
	Nanomolar               = "nM"
	Micromolar              = "µM"
	Millimolar              = "mM"
	Molar                   = "M"
	MicrogramsPerMilliliter = "µg/mL"
	Microliters             = "µL"
	Milliliters             = "mL"
)

var molarFactors = map[string]float64{
	Nanomolar:  1e-9,
	Micromolar: 1e-6,
	Millimolar: 1e-3,
	Molar:      1,
}

var unitAliases = map[string]string{
	"uM":    Micromolar,
	"μM":    Micromolar,
	"uL":    Microliters,
	"ul":    Microliters,
	"µl":    Microliters,
	"μL":    Microliters,
	"ml":    Milliliters,
	"ug/mL": MicrogramsPerMilliliter,
	"ug/ml": MicrogramsPerMilliliter,
	"µg/ml": MicrogramsPerMilliliter,
	"μg/mL": MicrogramsPerMilliliter,
}

// Measurement is a numeric quantity paired with a unit label.
type Measurement struct {
	Qty   float64 `json:"qty"`
	Units string  `json:"units"`
}

// New returns a measurement with a normalized unit label.
func New(qty float64, unit string) Measurement {
	return Measurement{Qty: qty, Units: NormalizeUnit(unit)}
}

// String renders the measurement in its "<qty>_<unit>" form.
func (m Measurement) String() string {
	return strconv.FormatFloat(m.Qty, 'f', -1, 64) + "_" + m.Units
}

// IsZero reports whether the measurement carries neither quantity nor unit.
func (m Measurement) IsZero() bool {
	return m.Qty == 0 && m.Units == ""
}

// Molar converts a concentration to molar units.
func (m Measurement) Molar() (float64, error) {
	factor, err := MolarFactor(m.Units)
	if err != nil {
		return 0, err
	}
	return m.Qty * factor, nil
}

// NormalizeUnit maps ASCII and alternate spellings onto the canonical labels.
func NormalizeUnit(unit string) string {
	unit = strings.TrimSpace(unit)
	if canonical, ok := unitAliases[unit]; ok {
		return canonical
	}
	return unit
}

// MolarFactor returns the multiplier converting a concentration unit to molar.
func MolarFactor(unit string) (float64, error) {
	factor, ok := molarFactors[NormalizeUnit(unit)]
	if !ok {
		return 0, &UnknownUnitError{Unit: unit}
	}
	return factor, nil
}

// ParseQuantityUnit splits a "<qty>_<unit>" string on its first underscore.
func ParseQuantityUnit(s string) (float64, string, error) {
	raw := strings.TrimSpace(s)
	qtyPart, unitPart, ok := strings.Cut(raw, "_")
	if !ok {
		return 0, "", &FormatError{Input: s, Reason: "expected <qty>_<unit>"}
	}
	qtyPart = strings.TrimSpace(qtyPart)
	unitPart = strings.TrimSpace(unitPart)
	if qtyPart == "" || unitPart == "" {
		return 0, "", &FormatError{Input: s, Reason: "quantity and unit must both be present"}
	}
	qty, err := strconv.ParseFloat(qtyPart, 64)
	if err != nil {
		return 0, "", &FormatError{Input: s, Reason: fmt.Sprintf("quantity %q is not a number", qtyPart)}
	}
	return qty, NormalizeUnit(unitPart), nil
}

// ParseMeasurement parses a "<qty>_<unit>" string into a Measurement.
func ParseMeasurement(s string) (Measurement, error) {
	qty, unit, err := ParseQuantityUnit(s)
	if err != nil {
		return Measurement{}, err
	}
	return Measurement{Qty: qty, Units: unit}, nil
}

// Round rounds x to the given number of decimal places, halves away from zero.
func Round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

// Ratio returns final/stock after normalizing both to molar units.
func Ratio(final, stock Measurement) (float64, error) {
	f, err := final.Molar()
	if err != nil {
		return 0, err
	}
	s, err := stock.Molar()
	if err != nil {
		return 0, err
	}
	if s == 0 {
		return 0, &FormatError{Input: stock.String(), Reason: "stock concentration is zero"}
	}
	return f / s, nil
}
