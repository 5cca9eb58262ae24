package ecology

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfBounds is returned when a location lies outside the grid.
	ErrOutOfBounds = errors.New("location out of bounds")
	// ErrNoNeighbors is returned when a location has no in-bounds neighbour (1x1 grid).
	ErrNoNeighbors = errors.New("location has no neighbours")
)

// AgentID is a stable handle to an agent. The zero value marks an empty cell.
type AgentID int64

// NoAgent is the empty-cell marker.
const NoAgent AgentID = 0

// GridView is the read-only side of a grid. Agents receive the current grid
// through this interface so they cannot write into the buffer being read.
type GridView interface {
	Width() int
	Height() int
	InBounds(loc Location) bool
	OccupantAt(loc Location) (AgentID, error)
	AdjacentLocations(loc Location, rnd Rand) []Location
	Occupied(fn func(loc Location, id AgentID))
}

// Grid is a fixed-size rectangular field of cells, each holding at most one
// agent handle. The grid owns no agents.
type Grid struct {
	width  int
	height int
	cells  []AgentID
}

// moore offsets, row-major around the centre cell.
var neighbourOffsets = [8][2]int{
	{-1, -1}, {-1, 0}, {-1, 1},
	{0, -1}, {0, 1},
	{1, -1}, {1, 0}, {1, 1},
}

// NewGrid creates an empty grid. Dimensions must be positive; callers
// normalise configuration before getting here.
func NewGrid(width, height int) *Grid {
	if width <= 0 || height <= 0 {
		panic(fmt.Sprintf("ecology: invalid grid dimensions %dx%d", width, height))
	}
	return &Grid{
		width:  width,
		height: height,
		cells:  make([]AgentID, width*height),
	}
}

func (g *Grid) Width() int  { return g.width }
func (g *Grid) Height() int { return g.height }

// InBounds reports whether 0 <= row < height and 0 <= col < width.
func (g *Grid) InBounds(loc Location) bool {
	return loc.Row >= 0 && loc.Row < g.height && loc.Col >= 0 && loc.Col < g.width
}

func (g *Grid) index(loc Location) (int, error) {
	if !g.InBounds(loc) {
		return 0, fmt.Errorf("%w: %s on %dx%d grid", ErrOutOfBounds, loc, g.width, g.height)
	}
	return loc.Row*g.width + loc.Col, nil
}

// OccupantAt returns the handle stored at loc, or NoAgent for an empty cell.
func (g *Grid) OccupantAt(loc Location) (AgentID, error) {
	i, err := g.index(loc)
	if err != nil {
		return NoAgent, err
	}
	return g.cells[i], nil
}

// Place stores id at loc, overwriting whatever was there.
func (g *Grid) Place(id AgentID, loc Location) error {
	i, err := g.index(loc)
	if err != nil {
		return err
	}
	g.cells[i] = id
	return nil
}

// Remove empties the cell at loc.
func (g *Grid) Remove(loc Location) error {
	return g.Place(NoAgent, loc)
}

// Clear empties every cell.
func (g *Grid) Clear() {
	clear(g.cells)
}

// Occupied calls fn for every non-empty cell in row-major order.
func (g *Grid) Occupied(fn func(loc Location, id AgentID)) {
	for i, id := range g.cells {
		if id == NoAgent {
			continue
		}
		fn(Location{Row: i / g.width, Col: i % g.width}, id)
	}
}

// IsEmpty reports whether no cell holds an agent.
func (g *Grid) IsEmpty() bool {
	for _, id := range g.cells {
		if id != NoAgent {
			return false
		}
	}
	return true
}

// AdjacentLocations returns the in-bounds Moore neighbours of loc in a fresh
// random order. Out-of-bounds neighbours are omitted.
func (g *Grid) AdjacentLocations(loc Location, rnd Rand) []Location {
	out := make([]Location, 0, len(neighbourOffsets))
	for _, off := range neighbourOffsets {
		n := Location{Row: loc.Row + off[0], Col: loc.Col + off[1]}
		if g.InBounds(n) {
			out = append(out, n)
		}
	}
	rnd.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// RandomAdjacentLocation picks one in-bounds neighbour uniformly at random.
func (g *Grid) RandomAdjacentLocation(loc Location, rnd Rand) (Location, error) {
	adj := g.AdjacentLocations(loc, rnd)
	if len(adj) == 0 {
		return Location{}, fmt.Errorf("%w: %s", ErrNoNeighbors, loc)
	}
	return adj[rnd.Intn(len(adj))], nil
}

// FreeAdjacentLocation returns the first empty neighbour in randomized order.
// The boolean is false when every neighbour is occupied (overcrowding).
func (g *Grid) FreeAdjacentLocation(loc Location, rnd Rand) (Location, bool) {
	for _, n := range g.AdjacentLocations(loc, rnd) {
		if g.cells[n.Row*g.width+n.Col] == NoAgent {
			return n, true
		}
	}
	return Location{}, false
}

// copyFrom overwrites g's cells with src's. Both grids must share dimensions.
func (g *Grid) copyFrom(src *Grid) {
	copy(g.cells, src.cells)
}
