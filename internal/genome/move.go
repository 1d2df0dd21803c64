package genome

import (
	"fmt"

	"pathevo/internal/grid"
)

// Move is one unit step on the grid.
type Move uint8

const (
	Up Move = iota
	Down
	Left
	Right
)

// Moves lists every move in draw order.
var Moves = [...]Move{Up, Down, Left, Right}

var deltas = [...]grid.Coordinate{
	Up:    {X: 0, Y: -1},
	Down:  {X: 0, Y: 1},
	Left:  {X: -1, Y: 0},
	Right: {X: 1, Y: 0},
}

func (m Move) Delta() grid.Coordinate {
	return deltas[m]
}

// Reverse returns the move that undoes m.
func (m Move) Reverse() Move {
	switch m {
	case Up:
		return Down
	case Down:
		return Up
	case Left:
		return Right
	default:
		return Left
	}
}

// Reverses reports whether m directly undoes prev.
func (m Move) Reverses(prev Move) bool {
	return m == prev.Reverse()
}

func (m Move) String() string {
	switch m {
	case Up:
		return "Up"
	case Down:
		return "Down"
	case Left:
		return "Left"
	case Right:
		return "Right"
	default:
		return fmt.Sprintf("Move(%d)", uint8(m))
	}
}

// Letter is the single-character encoding used by Genome.String.
func (m Move) Letter() byte {
	return "UDLR"[m]
}

func ParseMove(b byte) (Move, error) {
	switch b {
	case 'U', 'u':
		return Up, nil
	case 'D', 'd':
		return Down, nil
	case 'L', 'l':
		return Left, nil
	case 'R', 'r':
		return Right, nil
	default:
		return 0, fmt.Errorf("unknown move %q", b)
	}
}

func (m Move) MarshalText() ([]byte, error) {
	return []byte{m.Letter()}, nil
}

func (m *Move) UnmarshalText(text []byte) error {
	if len(text) != 1 {
		return fmt.Errorf("move must be one letter, got %q", text)
	}
	parsed, err := ParseMove(text[0])
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
