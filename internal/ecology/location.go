package ecology

import "fmt"

// Location is a cell coordinate on a grid. Locations are plain values and
// compare equal when both row and column match.
type Location struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// NewLocation creates a location at the given row and column.
func NewLocation(row, col int) Location {
	return Location{Row: row, Col: col}
}

func (l Location) String() string {
	return fmt.Sprintf("(%d,%d)", l.Row, l.Col)
}
