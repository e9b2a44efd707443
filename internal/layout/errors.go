package layout

import "fmt"

// BlockTooTallError reports a replicate group taller than the plate.
type BlockTooTallError struct {
	GroupSize int
	Rows      int
}

func (e *BlockTooTallError) Error() string {
	return fmt.Sprintf("replicate group of %d does not fit a plate with %d rows", e.GroupSize, e.Rows)
}

// InvalidShapeError reports a container shape without rows or columns.
type InvalidShapeError struct {
	Rows    int
	Columns int
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("invalid plate shape %dx%d", e.Rows, e.Columns)
}

// InsufficientWellsError reports a plate without room for the control cultures.
type InsufficientWellsError struct {
	Plate     int
	Needed    int
	Available int
}

func (e *InsufficientWellsError) Error() string {
	return fmt.Sprintf("plate %d has %d empty wells, controls need %d", e.Plate, e.Available, e.Needed)
}

// CoordinateError reports a malformed well coordinate.
type CoordinateError struct {
	Input string
}

func (e *CoordinateError) Error() string {
	return fmt.Sprintf("invalid well coordinate %q", e.Input)
}
