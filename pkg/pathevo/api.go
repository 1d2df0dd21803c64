package pathevo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"pathevo/internal/evo"
	"pathevo/internal/genome"
	"pathevo/internal/grid"
	"pathevo/internal/model"
	"pathevo/internal/platform"
	"pathevo/internal/scape"
	"pathevo/internal/scapeid"
	"pathevo/internal/stats"
	"pathevo/internal/storage"
)

const (
	defaultBenchmarksDir = stats.DefaultArtifactDir
	defaultExportsDir    = "exports"
	defaultDBPath        = "pathevo.db"
	defaultMaxTicks      = 1000
	defaultWorkers       = 4
	customLayoutName     = "custom"
)

// Glyphs drawn over a grid by Show.
const (
	PathGlyph  = '*'
	CrashGlyph = 'X'
)

type Options struct {
	StoreKind     string
	DBPath        string
	BenchmarksDir string
	ExportsDir    string
	Logger        *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	mu    sync.Mutex
	polis *platform.Polis

	benchmarksDir string
	exportsDir    string
}

// RunRequest configures one run. Zero values take the defaults of the engine
// packages; Grid, when set, is a layout in text form and overrides Layout.
// IncompleteWeight and MutationThreshold are pointers because zero is a valid
// setting for both; nil selects the default.
type RunRequest struct {
	RunID                string
	Layout               string
	Grid                 string
	Population           int
	GenomeLength         int
	MinLen               int
	IncompleteWeight     *float64
	MutationThreshold    *float64
	Strategy             string
	Orphans              string
	Policy               string
	TicksPerGeneration   int
	BurstSize            int
	MaxTicks             int
	StopWhenSolved       bool
	Seed                 int64
	Workers              int
	ContinuePopulationID string
	Progress             func(model.GenerationDiagnostics)
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	BestByGeneration []float64
	FinalBestFitness float64
	FinalGeneration  int
	Ticks            int
	Solved           bool
	Stopped          bool
	Best             model.AgentRecord
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Layout           string
	Seed             int64
	Population       int
	Policy           string
	Ticks            int
	FinalGeneration  int
	FinalBestFitness float64
	Solved           bool
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopAgentsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// ShowRequest selects the agent of a run to draw. Rank 0 means the best.
type ShowRequest struct {
	RunID  string
	Latest bool
	Rank   int
}

type ShowItem struct {
	RunID    string
	Layout   string
	Agent    model.TopAgentRecord
	Rendered string
}

// LayoutItem describes a built-in layout. MinMoves is the shortest
// start-to-finish route and is zero when the finish is walled off.
type LayoutItem struct {
	Name      string
	Width     int
	Height    int
	Start     string
	Finish    string
	MinMoves  int
	Reachable bool
	Text      string
}

// Float64 returns a pointer to v for the optional fields of RunRequest.
func Float64(v float64) *float64 {
	return &v
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	benchmarksDir := opts.BenchmarksDir
	if benchmarksDir == "" {
		benchmarksDir = defaultBenchmarksDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:         store,
		logger:        logger,
		benchmarksDir: benchmarksDir,
		exportsDir:    exportsDir,
	}, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	if c.polis != nil {
		c.polis.Stop()
	}
	c.mu.Unlock()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	req.Layout = scapeid.Normalize(req.Layout)
	if req.Population <= 0 {
		req.Population = evo.DefaultSeedConfig().Size
	}
	if req.GenomeLength <= 0 {
		req.GenomeLength = genome.DefaultLength
	}
	fitness := scape.DefaultFitnessConfig()
	if req.MinLen <= 0 {
		req.MinLen = fitness.MinLen
	}
	incompleteWeight := fitness.Incomplete
	if req.IncompleteWeight != nil {
		incompleteWeight = *req.IncompleteWeight
	}
	fitness = scape.FitnessConfig{Incomplete: incompleteWeight, MinLen: req.MinLen}
	if err := fitness.Validate(); err != nil {
		return RunSummary{}, err
	}
	mutationThreshold := evo.DefaultBreedConfig().MutationThreshold
	if req.MutationThreshold != nil {
		mutationThreshold = *req.MutationThreshold
	}
	strategy, err := evo.ParseStrategy(req.Strategy)
	if err != nil {
		return RunSummary{}, err
	}
	orphans, err := evo.ParseOrphanPolicy(req.Orphans)
	if err != nil {
		return RunSummary{}, err
	}
	policy, err := evo.ParsePolicy(req.Policy)
	if err != nil {
		return RunSummary{}, err
	}
	monitor := evo.DefaultMonitorConfig()
	if req.TicksPerGeneration <= 0 {
		req.TicksPerGeneration = monitor.TicksPerGeneration
	}
	if req.BurstSize <= 0 {
		req.BurstSize = monitor.BurstSize
	}
	if req.MaxTicks <= 0 {
		req.MaxTicks = defaultMaxTicks
	}
	if req.Workers <= 0 {
		req.Workers = defaultWorkers
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	var (
		initial           []evo.Agent
		initialGeneration int
	)
	if req.ContinuePopulationID != "" {
		snapshot, agents, err := p.LoadPopulation(ctx, req.ContinuePopulationID)
		if err != nil {
			return RunSummary{}, err
		}
		if req.Layout == "" && req.Grid == "" {
			req.Layout = snapshot.Layout
		}
		if req.Grid == "" && req.Layout != snapshot.Layout {
			return RunSummary{}, fmt.Errorf("population %s was bred on layout %s, not %s", snapshot.ID, snapshot.Layout, req.Layout)
		}
		initialGeneration = snapshot.Generation
		if len(agents) == 0 {
			c.logger.Warn("continued population is empty, seeding a fresh one",
				"population_id", snapshot.ID,
				"generation", snapshot.Generation,
			)
		} else {
			initial = agents
			req.Population = len(agents)
			req.GenomeLength = len(agents[0].Genome)
		}
	}

	target, err := buildScape(req.Layout, req.Grid, fitness)
	if err != nil {
		return RunSummary{}, err
	}
	req.Layout = target.Name()
	if reachable, err := grid.Reachable(target.Grid()); err == nil && !reachable {
		c.logger.Warn("finish is walled off from start", "layout", req.Layout)
	}
	if err := p.RegisterScape(target); err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	now := time.Now()

	monitor.Breed = evo.BreedConfig{MutationThreshold: mutationThreshold, Strategy: strategy, Orphans: orphans}
	monitor.Policy = policy
	monitor.TicksPerGeneration = req.TicksPerGeneration
	monitor.BurstSize = req.BurstSize
	monitor.Workers = req.Workers
	monitor.Seed = req.Seed
	monitor.StopWhenSolved = req.StopWhenSolved
	monitor.Logger = c.logger.With("run_id", runID)
	if req.Progress != nil {
		progress := req.Progress
		monitor.OnGeneration = func(r evo.GenerationReport) { progress(r.Diagnostics) }
	}

	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:        runID,
		ScapeName:    target.Name(),
		CreatedAtUTC: stats.Timestamp(now),
		Seed: evo.SeedConfig{
			Size:         req.Population,
			GenomeLength: req.GenomeLength,
		},
		Initial:           initial,
		InitialGeneration: initialGeneration,
		Monitor:           monitor,
		MaxTicks:          req.MaxTicks,
	})
	if err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.benchmarksDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:                runID,
			ContinuePopulationID: req.ContinuePopulationID,
			InitialGeneration:    initialGeneration,
			Layout:               req.Layout,
			Grid:                 result.Record.Grid,
			PopulationSize:       req.Population,
			GenomeLength:         req.GenomeLength,
			MinLen:               req.MinLen,
			IncompleteWeight:     incompleteWeight,
			MutationThreshold:    mutationThreshold,
			Strategy:             string(strategy),
			Orphans:              string(orphans),
			Policy:               string(policy),
			TicksPerGeneration:   req.TicksPerGeneration,
			BurstSize:            req.BurstSize,
			MaxTicks:             req.MaxTicks,
			StopWhenSolved:       req.StopWhenSolved,
			Seed:                 req.Seed,
			Workers:              req.Workers,
		},
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		TopAgents:             result.TopFinal,
		Lineage:               result.Lineage,
		FinalBestFitness:      result.BestFinalFitness,
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.benchmarksDir, stats.RunIndexEntry{
		RunID:            runID,
		Layout:           req.Layout,
		PopulationSize:   req.Population,
		Policy:           string(policy),
		Seed:             req.Seed,
		Ticks:            result.Record.Ticks,
		FinalGeneration:  result.Record.FinalGeneration,
		FinalBestFitness: result.BestFinalFitness,
		Solved:           result.Solved,
		CreatedAtUTC:     result.Record.CreatedAtUTC,
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		BestByGeneration: append([]float64(nil), result.BestByGeneration...),
		FinalBestFitness: result.BestFinalFitness,
		FinalGeneration:  result.Record.FinalGeneration,
		Ticks:            result.Record.Ticks,
		Solved:           result.Solved,
		Stopped:          result.Stopped,
	}
	if len(result.TopFinal) > 0 {
		summary.Best = result.TopFinal[0].AgentRecord
	}
	return summary, nil
}

// PauseRun, ContinueRun, StopRun and TriggerRun forward control commands to
// a run started by Run on this client.
func (c *Client) PauseRun(runID string) error {
	p, err := c.activePolis()
	if err != nil {
		return err
	}
	return p.PauseRun(runID)
}

func (c *Client) ContinueRun(runID string) error {
	p, err := c.activePolis()
	if err != nil {
		return err
	}
	return p.ContinueRun(runID)
}

func (c *Client) StopRun(runID string) error {
	p, err := c.activePolis()
	if err != nil {
		return err
	}
	return p.StopRun(runID)
}

func (c *Client) TriggerRun(runID string) error {
	p, err := c.activePolis()
	if err != nil {
		return err
	}
	return p.TriggerRun(runID)
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.benchmarksDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Layout:           e.Layout,
			Seed:             e.Seed,
			Population:       e.PopulationSize,
			Policy:           e.Policy,
			Ticks:            e.Ticks,
			FinalGeneration:  e.FinalGeneration,
			FinalBestFitness: e.FinalBestFitness,
			Solved:           e.Solved,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.benchmarksDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]model.LineageRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "lineage")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("lineage not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}
	out := make([]model.LineageRecord, len(lineage))
	copy(out, lineage)
	return out, nil
}

// FitnessHistory returns the best fitness per evaluation window. Runs missing
// from the store fall back to the fitness CSV artifact.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopAgents(ctx context.Context, req TopAgentsRequest) ([]model.TopAgentRecord, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top agents")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	top, ok, err := c.store.GetTopAgents(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopAgents(c.benchmarksDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("top agents not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopAgentRecord, len(top))
	copy(out, top)
	return out, nil
}

// Show replays one of the top agents of a run on the run's grid and draws
// its path.
func (c *Client) Show(ctx context.Context, req ShowRequest) (ShowItem, error) {
	if req.Rank < 0 {
		return ShowItem{}, errors.New("rank must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "show")
	if err != nil {
		return ShowItem{}, err
	}
	top, err := c.TopAgents(ctx, TopAgentsRequest{RunID: runID})
	if err != nil {
		return ShowItem{}, err
	}
	rank := req.Rank
	if rank == 0 {
		rank = 1
	}
	if rank > len(top) {
		return ShowItem{}, fmt.Errorf("run %s has %d ranked agents, asked for rank %d", runID, len(top), rank)
	}
	agent := top[rank-1]

	layout, text, err := c.runGrid(ctx, runID)
	if err != nil {
		return ShowItem{}, err
	}
	g, err := grid.Parse(text)
	if err != nil {
		return ShowItem{}, err
	}
	moves, err := genome.Parse(agent.Genome)
	if err != nil {
		return ShowItem{}, fmt.Errorf("agent %s: %w", agent.Label, err)
	}
	path, err := scape.Simulate(moves, g)
	if err != nil {
		return ShowItem{}, err
	}

	return ShowItem{
		RunID:    runID,
		Layout:   layout,
		Agent:    agent,
		Rendered: grid.Render(g, pathOverlay(g, path)),
	}, nil
}

func pathOverlay(g *grid.Grid, path scape.Path) map[grid.Coordinate]byte {
	overlay := make(map[grid.Coordinate]byte, path.Len())
	for _, at := range path.Coordinates() {
		switch g.Classify(at.X, at.Y) {
		case grid.Empty:
			overlay[at] = PathGlyph
		case grid.Wall:
			overlay[at] = CrashGlyph
		}
	}
	return overlay
}

func (c *Client) runGrid(ctx context.Context, runID string) (string, string, error) {
	if _, err := c.ensurePolis(ctx); err != nil {
		return "", "", err
	}
	run, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return "", "", err
	}
	if ok {
		return run.Layout, run.Grid, nil
	}
	cfg, ok, err := stats.ReadRunConfig(c.benchmarksDir, runID)
	if err != nil {
		return "", "", err
	}
	if !ok {
		return "", "", fmt.Errorf("run not found: %s", runID)
	}
	return cfg.Layout, cfg.Grid, nil
}

// Layouts describes the built-in layouts in name order.
func (c *Client) Layouts() ([]LayoutItem, error) {
	names := grid.LayoutNames()
	out := make([]LayoutItem, 0, len(names))
	for _, name := range names {
		g, err := grid.Layout(name)
		if err != nil {
			return nil, err
		}
		width, height := g.Bounds()
		moves, reachable, err := grid.ShortestMoves(g)
		if err != nil {
			return nil, err
		}
		out = append(out, LayoutItem{
			Name:      name,
			Width:     width,
			Height:    height,
			Start:     g.Start().String(),
			Finish:    g.Finish().String(),
			MinMoves:  moves,
			Reachable: reachable,
			Text:      grid.Format(g),
		})
	}
	return out, nil
}

func (c *Client) resolveRunID(runID string, latest bool, action string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.benchmarksDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", action)
	}
	return runID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store, Logger: c.logger})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

func (c *Client) activePolis() (*platform.Polis, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.polis == nil {
		return nil, errors.New("client has no active runs")
	}
	return c.polis, nil
}

func buildScape(layout, text string, fitness scape.FitnessConfig) (*scape.MazeScape, error) {
	var (
		g   *grid.Grid
		err error
	)
	switch {
	case text != "":
		if layout == "" {
			layout = customLayoutName
		}
		g, err = grid.Parse(text)
	default:
		if layout == "" {
			layout = grid.DefaultLayout
		}
		g, err = grid.Layout(layout)
	}
	if err != nil {
		return nil, err
	}
	return scape.NewMazeScape(layout, g, fitness)
}
