package platform

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathevo/internal/evo"
	"pathevo/internal/grid"
	"pathevo/internal/model"
	"pathevo/internal/scape"
	"pathevo/internal/storage"
)

func newScape(t *testing.T, layout string) *scape.MazeScape {
	t.Helper()
	g, err := grid.Layout(layout)
	require.NoError(t, err)
	s, err := scape.NewMazeScape(layout, g, scape.DefaultFitnessConfig())
	require.NoError(t, err)
	return s
}

func newPolis(t *testing.T, store storage.Store, layouts ...string) *Polis {
	t.Helper()
	scapes := make([]*scape.MazeScape, 0, len(layouts))
	for _, name := range layouts {
		scapes = append(scapes, newScape(t, name))
	}
	p := NewPolis(Config{Store: store, Scapes: scapes})
	require.NoError(t, p.Init(context.Background()))
	return p
}

func evolutionConfig(runID string, seed int64) EvolutionConfig {
	monitor := evo.DefaultMonitorConfig()
	monitor.Seed = seed
	return EvolutionConfig{
		RunID:        runID,
		ScapeName:    grid.DefaultLayout,
		CreatedAtUTC: "2026-01-02T03:04:05Z",
		Seed:         evo.DefaultSeedConfig(),
		Monitor:      monitor,
		MaxTicks:     60,
	}
}

func TestPolisRunEvolutionPersistsRun(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := newPolis(t, store, grid.DefaultLayout)

	result, err := p.RunEvolution(ctx, evolutionConfig("run-a", 11))
	require.NoError(t, err)

	assert.Equal(t, "run-a", result.RunID)
	require.Len(t, result.BestByGeneration, 3)
	require.Len(t, result.GenerationDiagnostics, 3)
	require.Len(t, result.TopFinal, TopAgentCount)
	for i, top := range result.TopFinal {
		assert.Equal(t, i+1, top.Rank)
	}
	assert.Equal(t, result.Final.BestFitness, result.TopFinal[0].Fitness)
	assert.Equal(t, result.Final.BestFitness, result.BestFinalFitness)

	run, ok, err := store.GetRun(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 60, run.Ticks)
	assert.Equal(t, 3, run.BreedingSteps)
	assert.Equal(t, 3, run.FinalGeneration)
	assert.Equal(t, grid.DefaultLayout, run.Layout)
	assert.Equal(t, "2026-01-02T03:04:05Z", run.CreatedAtUTC)
	assert.Equal(t, string(evo.PolicyUnconditional), run.Policy)
	assert.Equal(t, 36, run.GenomeLength)
	assert.NotEmpty(t, run.Grid)

	snapshot, ok, err := store.GetPopulation(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, snapshot.Generation)
	assert.Len(t, snapshot.Agents, run.PopulationSize)

	history, ok, err := store.GetFitnessHistory(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.BestByGeneration, history)

	lineage, ok, err := store.GetLineage(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	require.GreaterOrEqual(t, len(lineage), 8)
	for _, rec := range lineage[:8] {
		assert.Equal(t, evo.OpSeed, rec.Operation)
		assert.Zero(t, rec.Generation)
	}

	top, ok, err := store.GetTopAgents(ctx, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, result.TopFinal, top)

	assert.Empty(t, p.ActiveRuns())
}

func TestPolisRunEvolutionIsReproducible(t *testing.T) {
	ctx := context.Background()
	a, err := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout).RunEvolution(ctx, evolutionConfig("run", 5))
	require.NoError(t, err)
	b, err := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout).RunEvolution(ctx, evolutionConfig("run", 5))
	require.NoError(t, err)
	assert.Equal(t, a.BestByGeneration, b.BestByGeneration)
	assert.Equal(t, a.TopFinal, b.TopFinal)
}

func TestPolisRunEvolutionDrawsFromOneStream(t *testing.T) {
	ctx := context.Background()
	s := newScape(t, grid.DefaultLayout)
	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	cfg := evolutionConfig("one-stream", 42)
	cfg.MaxTicks = cfg.Monitor.TicksPerGeneration

	result, err := p.RunEvolution(ctx, cfg)
	require.NoError(t, err)
	require.Equal(t, 1, result.Final.Generation)
	got := finalGenomes(result.Final)

	// Seeding and the first breeding step continue the same source.
	rng := rand.New(rand.NewSource(42))
	seeded, err := evo.Seed(s, cfg.Seed, rng)
	require.NoError(t, err)
	bred, _, err := evo.Breed(ctx, seeded, cfg.Monitor.Breed, rng)
	require.NoError(t, err)
	assert.Equal(t, agentGenomes(bred.Agents), got)

	// A breeding source restarted from the seed would replay the draws that
	// built generation zero.
	replayed, _, err := evo.Breed(ctx, seeded, cfg.Monitor.Breed, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	assert.NotEqual(t, agentGenomes(replayed.Agents), got)
}

func finalGenomes(final evo.GenerationResult) []string {
	out := make([]string, 0, len(final.Agents))
	for _, r := range final.Agents {
		out = append(out, r.Agent.Genome.String())
	}
	return out
}

func agentGenomes(agents []evo.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Genome.String())
	}
	return out
}

func TestPolisRunEvolutionDefaultRunID(t *testing.T) {
	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	cfg := evolutionConfig("", 9)
	cfg.MaxTicks = 20
	result, err := p.RunEvolution(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, "evo:open11:9", result.RunID)
}

func TestPolisRunEvolutionErrors(t *testing.T) {
	ctx := context.Background()

	uninitialized := NewPolis(Config{Store: storage.NewMemoryStore()})
	_, err := uninitialized.RunEvolution(ctx, evolutionConfig("r", 1))
	require.ErrorContains(t, err, "not initialized")

	p := newPolis(t, storage.NewMemoryStore())
	_, err = p.RunEvolution(ctx, evolutionConfig("r", 1))
	require.ErrorContains(t, err, "scape not registered")

	cfg := evolutionConfig("r", 1)
	cfg.ScapeName = ""
	_, err = p.RunEvolution(ctx, cfg)
	require.ErrorContains(t, err, "scape name is required")

	require.NoError(t, p.RegisterScape(newScape(t, grid.DefaultLayout)))
	cfg = evolutionConfig("r", 1)
	cfg.Monitor.TicksPerGeneration = 0
	_, err = p.RunEvolution(ctx, cfg)
	require.ErrorIs(t, err, evo.ErrInvalidConfig)
}

func TestPolisInitValidatesScapes(t *testing.T) {
	p := NewPolis(Config{})
	require.ErrorContains(t, p.Init(context.Background()), "store is required")

	dup := NewPolis(Config{
		Store:  storage.NewMemoryStore(),
		Scapes: []*scape.MazeScape{newScape(t, "open11"), newScape(t, "open11")},
	})
	require.ErrorContains(t, dup.Init(context.Background()), "duplicate scape")
	assert.False(t, dup.Started())
}

func TestPolisRegisteredScapes(t *testing.T) {
	p := newPolis(t, storage.NewMemoryStore(), "open11")
	require.NoError(t, p.RegisterScape(newScape(t, "maze11")))
	assert.Equal(t, []string{"maze11", "open11"}, p.RegisteredScapes())

	s, ok := p.GetScape("maze11")
	require.True(t, ok)
	assert.Equal(t, "maze11", s.Name())

	require.Error(t, p.RegisterScape(nil))
}

func TestPolisRunControl(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	cfg := evolutionConfig("controlled", 3)
	cfg.Monitor.Policy = evo.PolicyManual
	cfg.MaxTicks = 0

	type outcome struct {
		result EvolutionResult
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := p.RunEvolution(ctx, cfg)
		done <- outcome{result: result, err: err}
	}()

	require.Eventually(t, func() bool {
		return len(p.ActiveRuns()) == 1
	}, 5*time.Second, time.Millisecond)

	require.NoError(t, p.PauseRun("controlled"))
	require.NoError(t, p.TriggerRun("controlled"))
	require.NoError(t, p.ContinueRun("controlled"))
	require.NoError(t, p.StopRun("controlled"))

	out := <-done
	require.NoError(t, out.err)
	assert.True(t, out.result.Stopped)
	assert.Empty(t, p.ActiveRuns())
	require.ErrorContains(t, p.StopRun("controlled"), "run not active")
}

func TestPolisDuplicateActiveRun(t *testing.T) {
	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	control := make(chan evo.MonitorCommand, 1)
	require.NoError(t, p.registerRunControl("dup", control))
	_, err := p.RunEvolution(context.Background(), evolutionConfig("dup", 1))
	require.ErrorContains(t, err, "run already active")
}

func TestPolisStopSignalsActiveRuns(t *testing.T) {
	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	control := make(chan evo.MonitorCommand, 1)
	require.NoError(t, p.registerRunControl("r", control))

	require.NoError(t, p.StopWithReason(StopReasonShutdown))
	assert.Equal(t, evo.CommandStop, <-control)
	assert.False(t, p.Started())
	assert.Equal(t, StopReasonShutdown, p.LastStopReason())
	assert.Empty(t, p.RegisteredScapes())
	require.Error(t, p.StopWithReason("sideways"))
}

func TestPolisContinueFromSnapshot(t *testing.T) {
	ctx := context.Background()
	p := newPolis(t, storage.NewMemoryStore(), grid.DefaultLayout)
	first, err := p.RunEvolution(ctx, evolutionConfig("first", 2))
	require.NoError(t, err)

	snapshot, agents, err := p.LoadPopulation(ctx, "first")
	require.NoError(t, err)
	require.Len(t, agents, len(first.Final.Agents))
	for i, a := range agents {
		assert.Equal(t, first.Final.Agents[i].Agent.Genome, a.Genome)
		assert.Equal(t, first.Final.Agents[i].Agent.Label, a.Label)
	}

	cfg := evolutionConfig("second", 4)
	cfg.Initial = agents
	cfg.InitialGeneration = snapshot.Generation
	cfg.MaxTicks = 20
	second, err := p.RunEvolution(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, second.GenerationDiagnostics, 1)
	assert.Equal(t, snapshot.Generation, second.GenerationDiagnostics[0].Generation)
	assert.Equal(t, snapshot.Generation+1, second.Record.FinalGeneration)
	assert.Equal(t, first.Final.BestFitness, second.GenerationDiagnostics[0].BestFitness)

	_, _, err = p.LoadPopulation(ctx, "missing")
	require.ErrorContains(t, err, "population not found")
}

func TestPolisLoadEmptyPopulation(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	p := newPolis(t, store, grid.DefaultLayout)
	require.NoError(t, store.SavePopulation(ctx, model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              "empty",
		Layout:          grid.DefaultLayout,
		Generation:      6,
	}))

	snapshot, agents, err := p.LoadPopulation(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, agents)

	cfg := evolutionConfig("reseeded", 3)
	cfg.Initial = agents
	cfg.InitialGeneration = snapshot.Generation
	cfg.MaxTicks = 20
	result, err := p.RunEvolution(ctx, cfg)
	require.NoError(t, err)
	require.Len(t, result.GenerationDiagnostics, 1)
	assert.Equal(t, 6, result.GenerationDiagnostics[0].Generation)
	assert.Equal(t, cfg.Seed.Size, result.GenerationDiagnostics[0].PopulationSize)
}

func TestRestoreAgentsRejectsBadGenome(t *testing.T) {
	_, err := RestoreAgents(model.PopulationSnapshot{
		ID:     "bad",
		Agents: []model.AgentRecord{{Label: "Red", Genome: "UDX"}},
	})
	require.ErrorContains(t, err, "agent Red")
}
