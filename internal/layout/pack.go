package layout

import "cultureplan/internal/composition"

// Shape is the row/column grid of a plate.
type Shape struct {
	Rows    int
	Columns int
}

// Cell is one well. An empty well has no culture. Group numbers experiment
// groups in sorted order from 0; control groups continue after the last
// experiment group, so a Group value identifies one group across a plan.
type Cell struct {
	Group     int
	Replicate int
	Control   bool
	Culture   *composition.Culture
}

// Empty reports whether nothing is assigned to the well.
func (c Cell) Empty() bool {
	return c.Culture == nil
}

// PlateMatrix is one plate's assignment of cultures to wells.
type PlateMatrix struct {
	Index    int
	Rows     int
	Columns  int
	UsedRows int
	Cells    [][]Cell
}

func newPlate(index int, shape Shape) PlateMatrix {
	cells := make([][]Cell, shape.Rows)
	for r := range cells {
		cells[r] = make([]Cell, shape.Columns)
	}
	return PlateMatrix{Index: index, Rows: shape.Rows, Columns: shape.Columns, Cells: cells}
}

// Filled counts occupied wells.
func (p PlateMatrix) Filled() int {
	n := 0
	for _, row := range p.Cells {
		for _, c := range row {
			if !c.Empty() {
				n++
			}
		}
	}
	return n
}

// EmptyWells lists unoccupied wells in row-major order.
func (p PlateMatrix) EmptyWells() [][2]int {
	var out [][2]int
	for r, row := range p.Cells {
		for c, cell := range row {
			if cell.Empty() {
				out = append(out, [2]int{r, c})
			}
		}
	}
	return out
}

func (p PlateMatrix) clone() PlateMatrix {
	out := p
	out.Cells = make([][]Cell, len(p.Cells))
	for r, row := range p.Cells {
		out.Cells[r] = append([]Cell(nil), row...)
	}
	return out
}

// Pack lays sorted replicate groups into plates. Groups fill the plate one
// column each, Columns groups per block; blocks stack top to bottom and a new
// plate starts when the next block would overflow the rows. A group is never
// split across columns or plates.
func Pack(groups []ReplicateGroup, shape Shape) ([]PlateMatrix, error) {
	if shape.Rows <= 0 || shape.Columns <= 0 {
		return nil, &InvalidShapeError{Rows: shape.Rows, Columns: shape.Columns}
	}
	var plates []PlateMatrix
	current := newPlate(0, shape)
	row := 0
	for start := 0; start < len(groups); start += shape.Columns {
		end := min(start+shape.Columns, len(groups))
		block := groups[start:end]
		height := 0
		for _, g := range block {
			height = max(height, len(g.Cultures))
		}
		if height > shape.Rows {
			return nil, &BlockTooTallError{GroupSize: height, Rows: shape.Rows}
		}
		if row+height > shape.Rows {
			plates = append(plates, current)
			current = newPlate(len(plates), shape)
			row = 0
		}
		for j, g := range block {
			for r, culture := range g.Cultures {
				c := culture.Clone()
				current.Cells[row+r][j] = Cell{Group: start + j, Replicate: r, Culture: &c}
			}
		}
		row += height
		current.UsedRows = row
	}
	if row > 0 {
		plates = append(plates, current)
	}
	return plates, nil
}

// PlaceControls fills each plate's empty wells, row-major, with every
// control culture so that controls appear on all plates. Control groups are
// numbered after the highest experiment group already placed.
func PlaceControls(plates []PlateMatrix, controls []ReplicateGroup) ([]PlateMatrix, error) {
	needed := 0
	for _, g := range controls {
		needed += len(g.Cultures)
	}
	first := nextGroup(plates)
	out := make([]PlateMatrix, len(plates))
	for i, plate := range plates {
		next := plate.clone()
		empty := next.EmptyWells()
		if len(empty) < needed {
			return nil, &InsufficientWellsError{Plate: plate.Index, Needed: needed, Available: len(empty)}
		}
		k := 0
		for gi, g := range controls {
			for r, culture := range g.Cultures {
				c := culture.Clone()
				well := empty[k]
				next.Cells[well[0]][well[1]] = Cell{Group: first + gi, Replicate: r, Control: true, Culture: &c}
				k++
			}
		}
		out[i] = next
	}
	return out, nil
}

func nextGroup(plates []PlateMatrix) int {
	next := 0
	for _, p := range plates {
		for _, row := range p.Cells {
			for _, cell := range row {
				if !cell.Empty() && !cell.Control && cell.Group >= next {
					next = cell.Group + 1
				}
			}
		}
	}
	return next
}
