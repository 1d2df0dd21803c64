package evo

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathevo/internal/genome"
	"pathevo/internal/grid"
	"pathevo/internal/scape"
)

func newTestScape(t *testing.T, layout string) *scape.MazeScape {
	t.Helper()
	g, err := grid.Layout(layout)
	require.NoError(t, err)
	s, err := scape.NewMazeScape(layout, g, scape.DefaultFitnessConfig())
	require.NoError(t, err)
	return s
}

func agentFromMoves(t *testing.T, label, moves string) Agent {
	t.Helper()
	g, err := genome.Parse(moves)
	require.NoError(t, err)
	return Agent{Label: label, Genome: g}
}

func TestLabelsExtendDefaultColors(t *testing.T) {
	labels := Labels(10, DefaultLabels)
	require.Len(t, labels, 10)
	assert.Equal(t, DefaultLabels, labels[:8])
	assert.Equal(t, []string{"agent-008", "agent-009"}, labels[8:])

	assert.Equal(t, []string{"Red", "Blue"}, Labels(2, DefaultLabels))
	assert.Empty(t, Labels(0, DefaultLabels))
}

func TestAgentOperatorsKeepLabel(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	a := NewRandomAgent("Red", 36, rng)
	b := NewRandomAgent("Blue", 36, rng)

	mutated := a.Mutate(rng)
	assert.Equal(t, "Red", mutated.Label)
	assert.Len(t, mutated.Genome, 36)

	child := a.Crossover(b, rng)
	assert.Equal(t, "Red", child.Label)
	for i := range child.Genome {
		assert.Truef(t, child.Genome[i] == a.Genome[i] || child.Genome[i] == b.Genome[i],
			"gene %d came from neither parent", i)
	}
}

func TestAgentCloneIsIndependent(t *testing.T) {
	a := agentFromMoves(t, "Red", "RRDD")
	c := a.Clone()
	c.Genome[0] = genome.Left
	assert.Equal(t, genome.Right, a.Genome[0])
}

func TestAgentAssessMatchesPath(t *testing.T) {
	s := newTestScape(t, "open11")
	a := agentFromMoves(t, "Red", "RRRRRRRRDDDDDDDD")

	path := a.Path(s)
	assert.Equal(t, scape.ReachedFinish, path.Outcome)
	assert.Equal(t, 16, path.Len())

	assessed, err := a.Assess(context.Background(), s)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, assessed.Fitness, 1e-12)
}

func TestAgentAssessWrapsErrors(t *testing.T) {
	s := newTestScape(t, "open11")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := agentFromMoves(t, "Cyan", "R").Assess(ctx, s)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "Cyan")
}
