package grid

import (
	"fmt"
	"sort"
	"strings"
)

// Layout glyphs: '#' wall, '.' empty, 'S' start, 'F' finish. Rows run top to
// bottom and blank lines are ignored.
func Parse(layout string) (*Grid, error) {
	var rows [][]TileKind
	for _, line := range strings.Split(layout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		row := make([]TileKind, 0, len(line))
		for i := 0; i < len(line); i++ {
			kind, err := kindFromGlyph(line[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %d: %w", len(rows), i, err)
			}
			row = append(row, kind)
		}
		rows = append(rows, row)
	}
	return New(rows)
}

func kindFromGlyph(b byte) (TileKind, error) {
	switch b {
	case '.', ' ':
		return Empty, nil
	case '#':
		return Wall, nil
	case 'S', 's':
		return Start, nil
	case 'F', 'f':
		return Finish, nil
	default:
		return Empty, fmt.Errorf("unknown layout glyph %q", b)
	}
}

// Format writes p back in layout form.
func Format(p Provider) string {
	return Render(p, nil)
}

// Render draws p in layout form with overlay glyphs replacing the cells they
// name. Overlay cells outside the bounds are ignored.
func Render(p Provider, overlay map[Coordinate]byte) string {
	width, height := p.Bounds()
	var b strings.Builder
	b.Grow((width + 1) * height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if glyph, ok := overlay[Coordinate{X: x, Y: y}]; ok {
				b.WriteByte(glyph)
				continue
			}
			b.WriteByte(p.Classify(x, y).Glyph())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

var builtinLayouts = map[string]string{
	// Border walls only; the reference end-to-end scenario.
	"open11": `
###########
#S........#
#.........#
#.........#
#.........#
#.........#
#.........#
#.........#
#.........#
#........F#
###########`,
	"open10": `
##########
#S.......#
#........#
#........#
#........#
#........#
#........#
#........#
#.......F#
##########`,
	// Shortest route is sixteen moves.
	"maze11": `
###########
#S........#
#.#######.#
#.........#
#####.#####
#.........#
#.###.###.#
#...#.#...#
#.#.#.#.#.#
#.#.....#F#
###########`,
}

// DefaultLayout names the layout used when none is requested.
const DefaultLayout = "open11"

// Layout returns a fresh copy of a built-in layout.
func Layout(name string) (*Grid, error) {
	text, ok := builtinLayouts[name]
	if !ok {
		return nil, fmt.Errorf("unknown layout: %s", name)
	}
	return Parse(text)
}

func LayoutNames() []string {
	names := make([]string, 0, len(builtinLayouts))
	for name := range builtinLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
