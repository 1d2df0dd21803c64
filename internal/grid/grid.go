// Package grid provides the rectangular cell classification that agents walk
// across: tile kinds, coordinates, the Provider contract and a concrete Grid.
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrMissingStart    = errors.New("grid has no start cell")
	ErrMissingFinish   = errors.New("grid has no finish cell")
	ErrDuplicateStart  = errors.New("grid has more than one start cell")
	ErrDuplicateFinish = errors.New("grid has more than one finish cell")
	ErrRagged          = errors.New("grid rows have different widths")
	ErrEmpty           = errors.New("grid has no cells")
)

type TileKind uint8

const (
	Empty TileKind = iota
	Wall
	Start
	Finish
)

func (k TileKind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Wall:
		return "wall"
	case Start:
		return "start"
	case Finish:
		return "finish"
	default:
		return fmt.Sprintf("tile(%d)", uint8(k))
	}
}

// Glyph is the layout character for the kind.
func (k TileKind) Glyph() byte {
	switch k {
	case Wall:
		return '#'
	case Start:
		return 'S'
	case Finish:
		return 'F'
	default:
		return '.'
	}
}

// Coordinate indexes a cell. Y grows downwards.
type Coordinate struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coordinate) Add(d Coordinate) Coordinate {
	return Coordinate{X: c.X + d.X, Y: c.Y + d.Y}
}

func (c Coordinate) Sub(d Coordinate) Coordinate {
	return Coordinate{X: c.X - d.X, Y: c.Y - d.Y}
}

// Distance is the Euclidean distance between two cells.
func (c Coordinate) Distance(o Coordinate) float64 {
	d := o.Sub(c)
	return math.Hypot(float64(d.X), float64(d.Y))
}

func (c Coordinate) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Provider is the read-only cell classification consumed by the simulator.
// Classify must panic for coordinates outside Bounds rather than clamp or wrap.
type Provider interface {
	Classify(x, y int) TileKind
	Bounds() (width, height int)
}

// Anchored is implemented by providers that know their start and finish
// cells without a scan.
type Anchored interface {
	Provider
	Start() Coordinate
	Finish() Coordinate
}

// Grid is an immutable Provider backed by a column-major cell table.
type Grid struct {
	cells  [][]TileKind // cells[x][y]
	start  Coordinate
	finish Coordinate
}

// New builds a grid from rows of kinds, rows[y][x], and validates that it has
// exactly one start and one finish.
func New(rows [][]TileKind) (*Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, ErrEmpty
	}
	width, height := len(rows[0]), len(rows)
	cells := make([][]TileKind, width)
	for x := range cells {
		cells[x] = make([]TileKind, height)
	}
	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has width %d, want %d: %w", y, len(row), width, ErrRagged)
		}
		for x, kind := range row {
			cells[x][y] = kind
		}
	}

	g := &Grid{cells: cells}
	start, finish, err := scan(g)
	if err != nil {
		return nil, err
	}
	g.start, g.finish = start, finish
	return g, nil
}

// NewBordered builds a width x height grid whose outer ring is wall and whose
// interior is empty apart from the given start and finish.
func NewBordered(width, height int, start, finish Coordinate) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("bordered grid needs at least 3x3 cells, got %dx%d", width, height)
	}
	rows := make([][]TileKind, height)
	for y := range rows {
		rows[y] = make([]TileKind, width)
		for x := range rows[y] {
			if x == 0 || y == 0 || x == width-1 || y == height-1 {
				rows[y][x] = Wall
			}
		}
	}
	for _, c := range []Coordinate{start, finish} {
		if c.X <= 0 || c.Y <= 0 || c.X >= width-1 || c.Y >= height-1 {
			return nil, fmt.Errorf("cell %s is not inside the border of a %dx%d grid", c, width, height)
		}
	}
	if start == finish {
		return nil, fmt.Errorf("start and finish share cell %s", start)
	}
	rows[start.Y][start.X] = Start
	rows[finish.Y][finish.X] = Finish
	return New(rows)
}

func (g *Grid) Classify(x, y int) TileKind {
	return g.cells[x][y]
}

func (g *Grid) Bounds() (int, int) {
	return len(g.cells), len(g.cells[0])
}

func (g *Grid) Start() Coordinate {
	return g.start
}

func (g *Grid) Finish() Coordinate {
	return g.finish
}

// In reports whether c lies inside the grid bounds.
func (g *Grid) In(c Coordinate) bool {
	w, h := g.Bounds()
	return c.X >= 0 && c.Y >= 0 && c.X < w && c.Y < h
}

// Validate checks that p has exactly one start and exactly one finish cell.
func Validate(p Provider) error {
	_, _, err := scan(p)
	return err
}

// Locate returns the start and finish cells of p. Anchored providers answer
// directly; anything else is scanned cell by cell.
func Locate(p Provider) (start, finish Coordinate, err error) {
	if anchored, ok := p.(Anchored); ok {
		return anchored.Start(), anchored.Finish(), nil
	}
	return scan(p)
}

func scan(p Provider) (start, finish Coordinate, err error) {
	width, height := p.Bounds()
	if width <= 0 || height <= 0 {
		return Coordinate{}, Coordinate{}, ErrEmpty
	}
	starts, finishes := 0, 0
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			switch p.Classify(x, y) {
			case Start:
				starts++
				start = Coordinate{X: x, Y: y}
			case Finish:
				finishes++
				finish = Coordinate{X: x, Y: y}
			}
		}
	}
	switch {
	case starts == 0:
		return Coordinate{}, Coordinate{}, ErrMissingStart
	case starts > 1:
		return Coordinate{}, Coordinate{}, fmt.Errorf("%d start cells: %w", starts, ErrDuplicateStart)
	case finishes == 0:
		return Coordinate{}, Coordinate{}, ErrMissingFinish
	case finishes > 1:
		return Coordinate{}, Coordinate{}, fmt.Errorf("%d finish cells: %w", finishes, ErrDuplicateFinish)
	}
	return start, finish, nil
}
