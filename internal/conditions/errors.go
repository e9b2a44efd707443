package conditions

import (
	"fmt"

	"cultureplan/pkg/units"
)

// InvalidJSONError reports a field value that does not parse as JSON.
type InvalidJSONError struct {
	Field string
	Err   error
}

func (e *InvalidJSONError) Error() string {
	return fmt.Sprintf("%s: invalid JSON: %v", e.Field, e.Err)
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// UnsupportedFieldError reports a field name outside the known set.
type UnsupportedFieldError struct {
	Field string
}

func (e *UnsupportedFieldError) Error() string {
	return fmt.Sprintf("unsupported field %q", e.Field)
}

// InvalidParameterError reports a well-formed JSON value with the wrong shape.
type InvalidParameterError struct {
	Field  string
	Name   string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Name, e.Reason)
}

// UnknownSampleError reports a sample name missing from the catalog.
type UnknownSampleError struct {
	Name string
}

func (e *UnknownSampleError) Error() string {
	return fmt.Sprintf("no sample named %q", e.Name)
}

// UnknownItemError reports an item id missing from the catalog.
type UnknownItemError struct {
	ID string
}

func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("no item with id %q", e.ID)
}

// MissingInducerItemError reports that no stock item of an inducer reaches
// the final concentration within the minimum dilution.
type MissingInducerItemError struct {
	Sample             string
	FinalConcentration units.Measurement
}

func (e *MissingInducerItemError) Error() string {
	return fmt.Sprintf("no %s stock can be diluted to %s", e.Sample, e.FinalConcentration)
}
