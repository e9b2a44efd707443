package composition

import (
	"fmt"

	"cultureplan/pkg/units"
)

// UnsupportedComponentKindError reports a component label outside the closed kind set.
type UnsupportedComponentKindError struct {
	Kind string
}

func (e *UnsupportedComponentKindError) Error() string {
	return fmt.Sprintf("unsupported component kind %q", e.Kind)
}

// MissingStockError reports a diluted component whose stock concentration is unknown.
type MissingStockError struct {
	Sample string
	Reason string
}

func (e *MissingStockError) Error() string {
	return fmt.Sprintf("no stock concentration for %q: %s", e.Sample, e.Reason)
}

// MissingConcentrationError reports a diluted component without a final concentration.
type MissingConcentrationError struct {
	Sample string
}

func (e *MissingConcentrationError) Error() string {
	return fmt.Sprintf("no final concentration given for %q", e.Sample)
}

// IncompatibleUnitsError reports a final concentration whose unit cannot be
// compared with the stock unit.
type IncompatibleUnitsError struct {
	Sample string
	Final  string
	Stock  string
}

func (e *IncompatibleUnitsError) Error() string {
	return fmt.Sprintf("%q: final concentration unit %s is incompatible with stock unit %s", e.Sample, e.Final, e.Stock)
}

// NoMediaComponentError reports a culture without a media component.
type NoMediaComponentError struct{}

func (e *NoMediaComponentError) Error() string {
	return "culture has no media component"
}

// DuplicateMediaError reports a culture with more than one media component.
type DuplicateMediaError struct {
	Count int
}

func (e *DuplicateMediaError) Error() string {
	return fmt.Sprintf("culture has %d media components, want exactly one", e.Count)
}

// OverAllocatedContainerError reports diluted components whose volumes exceed
// the container's working volume.
type OverAllocatedContainerError struct {
	Required  units.Measurement
	Available units.Measurement
}

func (e *OverAllocatedContainerError) Error() string {
	return fmt.Sprintf("components require %s but the container holds %s", e.Required, e.Available)
}
