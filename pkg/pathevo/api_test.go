package pathevo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pathevo/internal/evo"
	"pathevo/internal/model"
	"pathevo/internal/stats"
	"pathevo/internal/storage"
)

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:     "memory",
		BenchmarksDir: filepath.Join(base, "benchmarks"),
		ExportsDir:    filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func TestClientRunRunsAndExport(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	client := newTestClient(t, base)

	var progress []int
	summary, err := client.Run(ctx, RunRequest{
		Seed:     42,
		MaxTicks: 60,
		Workers:  2,
		Progress: func(d model.GenerationDiagnostics) { progress = append(progress, d.Generation) },
	})
	require.NoError(t, err)

	_, err = uuid.Parse(summary.RunID)
	require.NoError(t, err)
	assert.Len(t, summary.BestByGeneration, 3)
	assert.Equal(t, []int{0, 1, 2}, progress)
	assert.Equal(t, 60, summary.Ticks)
	assert.Equal(t, 3, summary.FinalGeneration)
	assert.Equal(t, summary.FinalBestFitness, summary.Best.Fitness)
	assert.FileExists(t, filepath.Join(summary.ArtifactsDir, "config.json"))
	assert.FileExists(t, filepath.Join(summary.ArtifactsDir, "fitness.png"))

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, "open11", runs[0].Layout)
	assert.Equal(t, 8, runs[0].Population)
	assert.Equal(t, string(evo.PolicyUnconditional), runs[0].Policy)
	assert.Equal(t, int64(42), runs[0].Seed)
	assert.Equal(t, summary.FinalBestFitness, runs[0].FinalBestFitness)

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	assert.Equal(t, filepath.Join(base, "exports", summary.RunID), exported.Directory)
	for _, name := range []string{"config.json", "fitness_history.csv", "generation_diagnostics.json", "top_agents.json", "lineage.json"} {
		assert.FileExists(t, filepath.Join(exported.Directory, name))
	}
}

func TestClientReadsRunBack(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	summary, err := client.Run(ctx, RunRequest{RunID: "run-1", Seed: 3, MaxTicks: 100})
	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)

	limited, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration[:2], limited)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "run-1"})
	require.NoError(t, err)
	require.Len(t, diagnostics, 5)
	assert.Equal(t, 100, diagnostics[4].Tick)

	top, err := client.TopAgents(ctx, TopAgentsRequest{Latest: true, Limit: 3})
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, summary.Best, top[0].AgentRecord)

	lineage, err := client.Lineage(ctx, LineageRequest{RunID: "run-1", Limit: 8})
	require.NoError(t, err)
	require.Len(t, lineage, 8)
	for _, rec := range lineage {
		assert.Equal(t, evo.OpSeed, rec.Operation)
	}
}

func TestClientFallsBackToArtifacts(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	first := newTestClient(t, base)
	summary, err := first.Run(ctx, RunRequest{RunID: "on-disk", Seed: 8, MaxTicks: 40})
	require.NoError(t, err)

	second := newTestClient(t, base)
	history, err := second.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "on-disk"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, summary.BestByGeneration, history, 1e-12)

	diagnostics, err := second.Diagnostics(ctx, DiagnosticsRequest{Latest: true})
	require.NoError(t, err)
	assert.Len(t, diagnostics, 2)

	top, err := second.TopAgents(ctx, TopAgentsRequest{RunID: "on-disk"})
	require.NoError(t, err)
	require.NotEmpty(t, top)
	assert.Equal(t, summary.Best.Genome, top[0].Genome)

	shown, err := second.Show(ctx, ShowRequest{RunID: "on-disk"})
	require.NoError(t, err)
	assert.Equal(t, "open11", shown.Layout)

	_, err = second.Lineage(ctx, LineageRequest{RunID: "on-disk"})
	require.ErrorContains(t, err, "lineage not found")
}

func TestClientRunIDResolution(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	_, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Latest: true})
	require.ErrorContains(t, err, "use either run id or latest")

	_, err = client.TopAgents(ctx, TopAgentsRequest{})
	require.ErrorContains(t, err, "top agents requires run id or latest")

	_, err = client.Export(ctx, ExportRequest{Latest: true})
	require.ErrorContains(t, err, "no runs available")

	_, err = client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "x", Limit: -1})
	require.ErrorContains(t, err, "limit must be >= 0")

	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: "missing"})
	require.ErrorContains(t, err, "diagnostics not found")
}

func TestClientContinuePopulation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	first, err := client.Run(ctx, RunRequest{RunID: "first", Seed: 1, MaxTicks: 40})
	require.NoError(t, err)

	_, err = client.Run(ctx, RunRequest{ContinuePopulationID: "first", Layout: "maze11"})
	require.ErrorContains(t, err, "bred on layout open11")

	_, err = client.Run(ctx, RunRequest{ContinuePopulationID: "missing"})
	require.ErrorContains(t, err, "population not found")

	second, err := client.Run(ctx, RunRequest{RunID: "second", ContinuePopulationID: "first", Seed: 2, MaxTicks: 20})
	require.NoError(t, err)
	assert.Equal(t, first.FinalGeneration+1, second.FinalGeneration)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "second"})
	require.NoError(t, err)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, first.FinalGeneration, diagnostics[0].Generation)
}

func TestClientContinueEmptyPopulationSeedsFresh(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	require.NoError(t, client.Init(ctx))
	require.NoError(t, client.store.SavePopulation(ctx, model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              "bred-empty",
		Layout:          "open11",
		Generation:      4,
	}))

	summary, err := client.Run(ctx, RunRequest{RunID: "after-empty", ContinuePopulationID: "bred-empty", Seed: 3, MaxTicks: 20})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.FinalGeneration)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: "after-empty"})
	require.NoError(t, err)
	require.Len(t, diagnostics, 1)
	assert.Equal(t, 4, diagnostics[0].Generation)
	assert.Equal(t, evo.DefaultSeedConfig().Size, diagnostics[0].PopulationSize)
}

func TestClientRunRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	_, err := client.Run(ctx, RunRequest{Strategy: "shuffle"})
	require.ErrorIs(t, err, evo.ErrInvalidConfig)

	_, err = client.Run(ctx, RunRequest{Policy: "sometimes"})
	require.ErrorIs(t, err, evo.ErrInvalidConfig)

	_, err = client.Run(ctx, RunRequest{Layout: "nowhere"})
	require.ErrorContains(t, err, "unknown layout")

	_, err = client.Run(ctx, RunRequest{IncompleteWeight: Float64(2)})
	require.ErrorContains(t, err, "incomplete weight")

	_, err = client.Run(ctx, RunRequest{Grid: "#####\n#S..#\n#####"})
	require.Error(t, err)
}

func TestClientRunKeepsZeroWeights(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	client := newTestClient(t, base)

	_, err := client.Run(ctx, RunRequest{
		RunID:             "zero",
		Seed:              4,
		MaxTicks:          40,
		IncompleteWeight:  Float64(0),
		MutationThreshold: Float64(0),
	})
	require.NoError(t, err)
	_, err = client.Run(ctx, RunRequest{RunID: "defaults", Seed: 4, MaxTicks: 40})
	require.NoError(t, err)

	cases := map[string][2]float64{
		"zero":     {0, 0},
		"defaults": {0.5, 0.3},
	}
	for runID, want := range cases {
		cfg, ok, err := stats.ReadRunConfig(filepath.Join(base, "benchmarks"), runID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want[0], cfg.IncompleteWeight, runID)
		assert.Equal(t, want[1], cfg.MutationThreshold, runID)

		run, ok, err := client.store.GetRun(ctx, runID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want[0], run.IncompleteWeight, runID)
		assert.Equal(t, want[1], run.MutationThreshold, runID)
	}
}

func TestClientCustomGrid(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	summary, err := client.Run(ctx, RunRequest{
		Grid:         "######\n#S...#\n#...F#\n######",
		GenomeLength: 6,
		Population:   4,
		Seed:         5,
		MaxTicks:     20,
	})
	require.NoError(t, err)

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "custom", runs[0].Layout)

	shown, err := client.Show(ctx, ShowRequest{RunID: summary.RunID})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(shown.Rendered, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "######", lines[0])
	assert.Equal(t, byte('S'), lines[1][1])
}

func TestClientRunNormalizesLayoutName(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	_, err := client.Run(ctx, RunRequest{Layout: "Scape_Maze-11", Seed: 4, MaxTicks: 20})
	require.NoError(t, err)

	runs, err := client.Runs(ctx, RunsRequest{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "maze11", runs[0].Layout)
}

func TestClientShow(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())
	_, err := client.Run(ctx, RunRequest{Seed: 13, MaxTicks: 20})
	require.NoError(t, err)

	shown, err := client.Show(ctx, ShowRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, 1, shown.Agent.Rank)
	lines := strings.Split(strings.TrimRight(shown.Rendered, "\n"), "\n")
	require.Len(t, lines, 11)
	assert.Equal(t, byte('S'), lines[1][1])
	assert.Equal(t, byte('F'), lines[9][9])
	if shown.Agent.PathLen > 0 {
		assert.True(t, strings.ContainsAny(shown.Rendered, string([]byte{PathGlyph, CrashGlyph})))
	}

	_, err = client.Show(ctx, ShowRequest{Latest: true, Rank: 99})
	require.ErrorContains(t, err, "ranked agents")
	_, err = client.Show(ctx, ShowRequest{Latest: true, Rank: -1})
	require.Error(t, err)
}

func TestClientLayouts(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	layouts, err := client.Layouts()
	require.NoError(t, err)
	require.Len(t, layouts, 3)
	assert.Equal(t, "maze11", layouts[0].Name)
	assert.Equal(t, "open10", layouts[1].Name)
	open := layouts[2]
	assert.Equal(t, "open11", open.Name)
	assert.Equal(t, 11, open.Width)
	assert.Equal(t, 11, open.Height)
	assert.Equal(t, "(1,1)", open.Start)
	assert.Equal(t, "(9,9)", open.Finish)
	assert.True(t, open.Reachable)
	assert.Equal(t, 16, open.MinMoves)
	assert.Equal(t, 16, layouts[0].MinMoves)
}

func TestClientControlWithoutRuns(t *testing.T) {
	client := newTestClient(t, t.TempDir())
	require.ErrorContains(t, client.StopRun("nothing"), "no active runs")
	require.NoError(t, client.Init(context.Background()))
	require.ErrorContains(t, client.PauseRun("nothing"), "run not active")
}

func TestNewRejectsUnknownStore(t *testing.T) {
	_, err := New(Options{StoreKind: "tape"})
	require.Error(t, err)
}
