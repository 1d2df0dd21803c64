package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOpenLayout(t *testing.T) {
	g, err := Layout("open11")
	require.NoError(t, err)

	w, h := g.Bounds()
	assert.Equal(t, 11, w)
	assert.Equal(t, 11, h)
	assert.Equal(t, Coordinate{X: 1, Y: 1}, g.Start())
	assert.Equal(t, Coordinate{X: 9, Y: 9}, g.Finish())
	assert.Equal(t, Wall, g.Classify(0, 5))
	assert.Equal(t, Wall, g.Classify(10, 10))
	assert.Equal(t, Empty, g.Classify(5, 5))
}

func TestParseRejectsBadLayouts(t *testing.T) {
	cases := []struct {
		name   string
		layout string
		want   error
	}{
		{name: "no start", layout: "###\n#F#\n###", want: ErrMissingStart},
		{name: "no finish", layout: "###\n#S#\n###", want: ErrMissingFinish},
		{name: "two starts", layout: "####\n#SS#\n#F.#\n####", want: ErrDuplicateStart},
		{name: "two finishes", layout: "####\n#SF#\n#F.#\n####", want: ErrDuplicateFinish},
		{name: "ragged", layout: "####\n#SF#\n###", want: ErrRagged},
		{name: "empty", layout: "\n\n", want: ErrEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.layout)
			require.ErrorIs(t, err, tc.want)
		})
	}

	_, err := Parse("#?#")
	require.Error(t, err)
}

func TestNewBordered(t *testing.T) {
	g, err := NewBordered(5, 4, Coordinate{X: 1, Y: 1}, Coordinate{X: 3, Y: 2})
	require.NoError(t, err)
	assert.Equal(t, "#####\n#S..#\n#..F#\n#####\n", Format(g))

	_, err = NewBordered(5, 4, Coordinate{X: 0, Y: 1}, Coordinate{X: 3, Y: 2})
	require.Error(t, err)
	_, err = NewBordered(5, 4, Coordinate{X: 1, Y: 1}, Coordinate{X: 1, Y: 1})
	require.Error(t, err)
}

func TestClassifyOutOfBoundsPanics(t *testing.T) {
	g, err := Layout("open10")
	require.NoError(t, err)

	assert.Panics(t, func() { g.Classify(-1, 0) })
	assert.Panics(t, func() { g.Classify(0, 10) })
	assert.Panics(t, func() { g.Classify(10, 0) })
}

// scanOnly hides the Anchored accessors of a Grid.
type scanOnly struct{ g *Grid }

func (s scanOnly) Classify(x, y int) TileKind { return s.g.Classify(x, y) }
func (s scanOnly) Bounds() (int, int)         { return s.g.Bounds() }

func TestLocateScansPlainProviders(t *testing.T) {
	g, err := Layout("maze11")
	require.NoError(t, err)

	start, finish, err := Locate(scanOnly{g: g})
	require.NoError(t, err)
	assert.Equal(t, g.Start(), start)
	assert.Equal(t, g.Finish(), finish)
	require.NoError(t, Validate(scanOnly{g: g}))
}

func TestRenderOverlay(t *testing.T) {
	g, err := NewBordered(4, 3, Coordinate{X: 1, Y: 1}, Coordinate{X: 2, Y: 1})
	require.NoError(t, err)

	out := Render(g, map[Coordinate]byte{{X: 0, Y: 0}: '*', {X: 9, Y: 9}: '!'})
	assert.Equal(t, "*###\n#SF#\n####\n", out)
}

func TestCoordinateDistance(t *testing.T) {
	assert.InDelta(t, 5.0, Coordinate{X: 1, Y: 1}.Distance(Coordinate{X: 4, Y: 5}), 1e-12)
	assert.Equal(t, Coordinate{X: 2, Y: 0}, Coordinate{X: 1, Y: 1}.Add(Coordinate{X: 1, Y: -1}))
}

func TestLayoutNames(t *testing.T) {
	assert.Equal(t, []string{"maze11", "open10", "open11"}, LayoutNames())
	for _, name := range LayoutNames() {
		_, err := Layout(name)
		require.NoError(t, err, name)
	}
	_, err := Layout("nope")
	require.Error(t, err)
}
