package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShortestMovesBuiltinLayouts(t *testing.T) {
	cases := map[string]int{
		"open11": 16,
		"open10": 14,
		"maze11": 16,
	}
	for name, want := range cases {
		g, err := Layout(name)
		require.NoError(t, err)

		moves, ok, err := ShortestMoves(g)
		require.NoError(t, err)
		require.True(t, ok, name)
		assert.Equal(t, want, moves, name)

		reachable, err := Reachable(g)
		require.NoError(t, err)
		assert.True(t, reachable, name)
	}
}

func TestWalledOffFinish(t *testing.T) {
	g, err := Parse(`
#######
#S.#..#
#..#.F#
#######`)
	require.NoError(t, err)

	reachable, err := Reachable(g)
	require.NoError(t, err)
	assert.False(t, reachable)

	moves, ok, err := ShortestMoves(g)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, moves)
}

func TestShortestMovesAdjacentFinish(t *testing.T) {
	g, err := Parse("####\n#SF#\n####")
	require.NoError(t, err)
	moves, ok, err := ShortestMoves(g)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, moves)
}

type rowProvider [][]TileKind

func (r rowProvider) Classify(x, y int) TileKind { return r[y][x] }
func (r rowProvider) Bounds() (int, int)         { return len(r[0]), len(r) }

func TestRouteRequiresStartAndFinish(t *testing.T) {
	_, err := Reachable(rowProvider{{Wall, Empty, Finish}})
	require.ErrorIs(t, err, ErrMissingStart)

	_, _, err = ShortestMoves(rowProvider{{Start, Empty, Wall}})
	require.ErrorIs(t, err, ErrMissingFinish)
}
