package layout

import (
	"strconv"
	"strings"
)

// Coordinate renders a zero-based row/column as a well label such as "A1".
// Rows past Z continue as AA, AB, ...
func Coordinate(row, col int) string {
	return rowLabel(row) + strconv.Itoa(col+1)
}

func rowLabel(row int) string {
	var b []byte
	for n := row + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// ParseCoordinate converts a well label back to a zero-based row/column.
func ParseCoordinate(label string) (int, int, error) {
	s := strings.ToUpper(strings.TrimSpace(label))
	i := 0
	row := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		row = row*26 + int(s[i]-'A'+1)
		i++
	}
	if i == 0 || i == len(s) {
		return 0, 0, &CoordinateError{Input: label}
	}
	col, err := strconv.Atoi(s[i:])
	if err != nil || col < 1 {
		return 0, 0, &CoordinateError{Input: label}
	}
	return row - 1, col - 1, nil
}

// Coordinates returns the label matrix for a plate shape.
func Coordinates(shape Shape) [][]string {
	out := make([][]string, shape.Rows)
	for r := range out {
		out[r] = make([]string, shape.Columns)
		for c := range out[r] {
			out[r][c] = Coordinate(r, c)
		}
	}
	return out
}
