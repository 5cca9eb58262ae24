package ecology

import (
	"errors"
	"testing"
)

func TestNewGrid(t *testing.T) {
	g := NewGrid(4, 3)
	if g.Width() != 4 || g.Height() != 3 {
		t.Errorf("Expected 4x3, got %dx%d", g.Width(), g.Height())
	}
	if !g.IsEmpty() {
		t.Error("Expected new grid to be empty")
	}
}

func TestNewGrid_InvalidDimensionsPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic for 0x5 grid")
		}
	}()
	NewGrid(0, 5)
}

func TestGrid_InBounds(t *testing.T) {
	g := NewGrid(4, 3)
	tests := []struct {
		loc  Location
		want bool
	}{
		{NewLocation(0, 0), true},
		{NewLocation(2, 3), true},
		{NewLocation(3, 0), false},
		{NewLocation(0, 4), false},
		{NewLocation(-1, 0), false},
		{NewLocation(0, -1), false},
	}
	for _, tt := range tests {
		if got := g.InBounds(tt.loc); got != tt.want {
			t.Errorf("InBounds(%v) = %v, want %v", tt.loc, got, tt.want)
		}
	}
}

func TestGrid_PlaceAndOccupantAt(t *testing.T) {
	g := NewGrid(3, 3)
	loc := NewLocation(1, 2)

	if id, err := g.OccupantAt(loc); err != nil || id != NoAgent {
		t.Fatalf("Expected empty cell, got %d, %v", id, err)
	}
	if err := g.Place(5, loc); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if id, _ := g.OccupantAt(loc); id != 5 {
		t.Errorf("Expected occupant 5, got %d", id)
	}

	// last write wins
	if err := g.Place(9, loc); err != nil {
		t.Fatalf("Place failed: %v", err)
	}
	if id, _ := g.OccupantAt(loc); id != 9 {
		t.Errorf("Expected occupant 9 after overwrite, got %d", id)
	}

	if err := g.Remove(loc); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if id, _ := g.OccupantAt(loc); id != NoAgent {
		t.Errorf("Expected empty cell after Remove, got %d", id)
	}
}

func TestGrid_OutOfBounds(t *testing.T) {
	g := NewGrid(2, 2)
	bad := NewLocation(2, 0)

	if _, err := g.OccupantAt(bad); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds from OccupantAt, got %v", err)
	}
	if err := g.Place(1, bad); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds from Place, got %v", err)
	}
}

func TestGrid_Clear(t *testing.T) {
	g := NewGrid(3, 3)
	g.Place(1, NewLocation(0, 0))
	g.Place(2, NewLocation(2, 2))
	g.Clear()
	if !g.IsEmpty() {
		t.Error("Expected grid to be empty after Clear")
	}
	g.Clear()
	if !g.IsEmpty() {
		t.Error("Expected second Clear to keep grid empty")
	}
}

func TestGrid_Occupied(t *testing.T) {
	g := NewGrid(3, 2)
	g.Place(4, NewLocation(1, 2))
	g.Place(3, NewLocation(0, 1))

	var locs []Location
	var ids []AgentID
	g.Occupied(func(loc Location, id AgentID) {
		locs = append(locs, loc)
		ids = append(ids, id)
	})

	if len(ids) != 2 {
		t.Fatalf("Expected 2 occupied cells, got %d", len(ids))
	}
	if locs[0] != NewLocation(0, 1) || ids[0] != 3 {
		t.Errorf("Expected first (0,1)=3, got %v=%d", locs[0], ids[0])
	}
	if locs[1] != NewLocation(1, 2) || ids[1] != 4 {
		t.Errorf("Expected second (1,2)=4, got %v=%d", locs[1], ids[1])
	}
}

func TestGrid_AdjacentLocations(t *testing.T) {
	g := NewGrid(5, 5)
	rnd := NewRand(1)

	tests := []struct {
		name string
		loc  Location
		want int
	}{
		{"centre", NewLocation(2, 2), 8},
		{"corner", NewLocation(0, 0), 3},
		{"edge", NewLocation(0, 2), 5},
		{"far corner", NewLocation(4, 4), 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adj := g.AdjacentLocations(tt.loc, rnd)
			if len(adj) != tt.want {
				t.Fatalf("Expected %d neighbours, got %d: %v", tt.want, len(adj), adj)
			}
			seen := make(map[Location]bool)
			for _, n := range adj {
				if !g.InBounds(n) {
					t.Errorf("Neighbour %v out of bounds", n)
				}
				if n == tt.loc {
					t.Error("Location must not be its own neighbour")
				}
				dr, dc := n.Row-tt.loc.Row, n.Col-tt.loc.Col
				if dr < -1 || dr > 1 || dc < -1 || dc > 1 {
					t.Errorf("Neighbour %v not adjacent to %v", n, tt.loc)
				}
				if seen[n] {
					t.Errorf("Duplicate neighbour %v", n)
				}
				seen[n] = true
			}
		})
	}
}

func TestGrid_AdjacentLocations_Randomized(t *testing.T) {
	g := NewGrid(5, 5)
	rnd := NewRand(42)
	centre := NewLocation(2, 2)

	first := g.AdjacentLocations(centre, rnd)
	for i := 0; i < 50; i++ {
		next := g.AdjacentLocations(centre, rnd)
		for j := range next {
			if next[j] != first[j] {
				return
			}
		}
	}
	t.Error("Expected neighbour order to change between calls")
}

func TestGrid_RandomAdjacentLocation(t *testing.T) {
	g := NewGrid(3, 3)
	rnd := NewRand(3)
	centre := NewLocation(1, 1)

	for i := 0; i < 20; i++ {
		loc, err := g.RandomAdjacentLocation(centre, rnd)
		if err != nil {
			t.Fatalf("RandomAdjacentLocation failed: %v", err)
		}
		if loc == centre || !g.InBounds(loc) {
			t.Errorf("Unexpected neighbour %v", loc)
		}
	}

	single := NewGrid(1, 1)
	if _, err := single.RandomAdjacentLocation(NewLocation(0, 0), rnd); !errors.Is(err, ErrNoNeighbors) {
		t.Errorf("Expected ErrNoNeighbors on 1x1 grid, got %v", err)
	}
}

func TestGrid_FreeAdjacentLocation(t *testing.T) {
	g := NewGrid(3, 3)
	rnd := NewRand(7)
	centre := NewLocation(1, 1)

	// fill everything except (2,0)
	id := AgentID(1)
	for _, n := range g.AdjacentLocations(centre, rnd) {
		if n != NewLocation(2, 0) {
			g.Place(id, n)
			id++
		}
	}

	loc, ok := g.FreeAdjacentLocation(centre, rnd)
	if !ok {
		t.Fatal("Expected a free neighbour")
	}
	if loc != NewLocation(2, 0) {
		t.Errorf("Expected (2,0), got %v", loc)
	}

	g.Place(id, NewLocation(2, 0))
	if _, ok := g.FreeAdjacentLocation(centre, rnd); ok {
		t.Error("Expected no free neighbour on a full ring")
	}
}
