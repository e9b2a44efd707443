package units

import "fmt"

// FormatError reports a quantity string that does not follow "<qty>_<unit>".
type FormatError struct {
	Input  string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("units: malformed quantity %q: %s", e.Input, e.Reason)
}

// UnknownUnitError reports a concentration unit without a molar conversion.
type UnknownUnitError struct {
	Unit string
}

func (e *UnknownUnitError) Error() string {
	return fmt.Sprintf("units: unknown concentration unit %q", e.Unit)
}
