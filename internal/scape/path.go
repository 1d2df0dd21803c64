package scape

import (
	"fmt"

	"pathevo/internal/genome"
	"pathevo/internal/grid"
)

// Outcome is how a simulated walk terminated.
type Outcome uint8

const (
	// Exhausted means every gene was consumed without touching a wall or the finish.
	Exhausted Outcome = iota
	HitWall
	ReachedFinish
)

func (o Outcome) String() string {
	switch o {
	case Exhausted:
		return "exhausted"
	case HitWall:
		return "wall"
	case ReachedFinish:
		return "finish"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "exhausted":
		*o = Exhausted
	case "wall":
		*o = HitWall
	case "finish":
		*o = ReachedFinish
	default:
		return fmt.Errorf("unknown outcome: %s", text)
	}
	return nil
}

// Step is one applied move and the cell it landed on.
type Step struct {
	Move genome.Move     `json:"move"`
	At   grid.Coordinate `json:"at"`
}

// Path is the realized walk of a genome.
type Path struct {
	Start   grid.Coordinate `json:"start"`
	Steps   []Step          `json:"steps"`
	Outcome Outcome         `json:"outcome"`
}

func (p Path) Len() int {
	return len(p.Steps)
}

// End is the last visited cell, or Start for an empty path.
func (p Path) End() grid.Coordinate {
	if len(p.Steps) == 0 {
		return p.Start
	}
	return p.Steps[len(p.Steps)-1].At
}

// Coordinates lists the visited cells in order, excluding Start.
func (p Path) Coordinates() []grid.Coordinate {
	out := make([]grid.Coordinate, len(p.Steps))
	for i, step := range p.Steps {
		out[i] = step.At
	}
	return out
}

// Moves lists the applied moves.
func (p Path) Moves() genome.Genome {
	out := make(genome.Genome, len(p.Steps))
	for i, step := range p.Steps {
		out[i] = step.Move
	}
	return out
}

// Simulate replays g from the start cell of p.
func Simulate(g genome.Genome, p grid.Provider) (Path, error) {
	start, _, err := grid.Locate(p)
	if err != nil {
		return Path{}, err
	}
	return SimulateFrom(g, p, start), nil
}

// SimulateFrom replays g from start, stopping on the first wall or finish cell
// (inclusive). Reading outside the bounds of p panics.
func SimulateFrom(g genome.Genome, p grid.Provider, start grid.Coordinate) Path {
	path := Path{Start: start, Steps: make([]Step, 0, len(g))}
	at := start
	for _, move := range g {
		at = at.Add(move.Delta())
		path.Steps = append(path.Steps, Step{Move: move, At: at})
		switch p.Classify(at.X, at.Y) {
		case grid.Wall:
			path.Outcome = HitWall
			return path
		case grid.Finish:
			path.Outcome = ReachedFinish
			return path
		}
	}
	path.Outcome = Exhausted
	return path
}
