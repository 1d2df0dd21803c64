package platform

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"pathevo/internal/evo"
	"pathevo/internal/grid"
	"pathevo/internal/model"
	"pathevo/internal/scape"
	"pathevo/internal/stats"
	"pathevo/internal/storage"
)

// TopAgentCount is the number of ranked agents persisted per run.
const TopAgentCount = 5

type Config struct {
	Store  storage.Store
	Scapes []*scape.MazeScape
	Logger *slog.Logger
}

type StopReason string

const (
	StopReasonNormal   StopReason = "normal"
	StopReasonShutdown StopReason = "shutdown"
)

// EvolutionConfig describes one run. When Initial is empty the population is
// seeded from Seed.
type EvolutionConfig struct {
	RunID             string
	ScapeName         string
	CreatedAtUTC      string
	Seed              evo.SeedConfig
	Initial           []evo.Agent
	InitialGeneration int
	Monitor           evo.MonitorConfig
	MaxTicks          int
	Control           chan evo.MonitorCommand
}

type EvolutionResult struct {
	RunID                 string
	Record                model.RunRecord
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	Lineage               []model.LineageRecord
	TopFinal              []model.TopAgentRecord
	BestFinalFitness      float64
	Final                 evo.GenerationResult
	Solved                bool
	Stopped               bool
}

// Polis owns the registered scapes, the store and the control channels of
// active runs.
type Polis struct {
	store  storage.Store
	logger *slog.Logger

	mu sync.RWMutex

	scapes         map[string]*scape.MazeScape
	started        bool
	lastStopReason StopReason
	runs           map[string]chan evo.MonitorCommand

	config Config
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Polis{
		store:          cfg.Store,
		logger:         logger,
		scapes:         make(map[string]*scape.MazeScape),
		runs:           make(map[string]chan evo.MonitorCommand),
		config:         cfg,
		lastStopReason: StopReasonNormal,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	scapes := make(map[string]*scape.MazeScape, len(p.config.Scapes))
	for i, s := range p.config.Scapes {
		if s == nil {
			return fmt.Errorf("scape is nil at index %d", i)
		}
		if s.Name() == "" {
			return fmt.Errorf("scape name is required at index %d", i)
		}
		if _, exists := scapes[s.Name()]; exists {
			return fmt.Errorf("duplicate scape: %s", s.Name())
		}
		scapes[s.Name()] = s
	}
	p.scapes = scapes
	p.started = true
	return nil
}

// RegisterScape adds s, replacing any scape already registered under its
// name.
func (p *Polis) RegisterScape(s *scape.MazeScape) error {
	if s == nil {
		return fmt.Errorf("scape is nil")
	}

	name := s.Name()
	if name == "" {
		return fmt.Errorf("scape name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	p.scapes[name] = s
	return nil
}

func (p *Polis) GetScape(name string) (*scape.MazeScape, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s, ok := p.scapes[name]
	return s, ok
}

func (p *Polis) RegisteredScapes() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.scapes))
	for name := range p.scapes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *Polis) Stop() {
	_ = p.StopWithReason(StopReasonNormal)
}

// StopWithReason asks every active run to stop and forgets the registered
// scapes. Runs finish their current tick before returning.
func (p *Polis) StopWithReason(reason StopReason) error {
	if reason == "" {
		reason = StopReasonNormal
	}
	if reason != StopReasonNormal && reason != StopReasonShutdown {
		return fmt.Errorf("unsupported stop reason: %s", reason)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, control := range p.runs {
		select {
		case control <- evo.CommandStop:
		default:
		}
	}
	p.started = false
	p.lastStopReason = reason
	p.scapes = make(map[string]*scape.MazeScape)
	p.runs = make(map[string]chan evo.MonitorCommand)
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) LastStopReason() StopReason {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastStopReason
}

// RunEvolution runs a population monitor to completion and persists the run
// record, its history, the top agents and the final population snapshot.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.ScapeName == "" {
		return EvolutionResult{}, fmt.Errorf("scape name is required")
	}

	p.mu.RLock()
	target, ok := p.scapes[cfg.ScapeName]
	started := p.started
	p.mu.RUnlock()

	if !started {
		return EvolutionResult{}, fmt.Errorf("polis is not initialized")
	}
	if !ok {
		return EvolutionResult{}, fmt.Errorf("scape not registered: %s", cfg.ScapeName)
	}

	rng := cfg.Monitor.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Monitor.Seed))
	}
	initial, err := initialPopulation(target, cfg, rng)
	if err != nil {
		return EvolutionResult{}, err
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("evo:%s:%d", cfg.ScapeName, cfg.Monitor.Seed)
	}
	control := cfg.Control
	if control == nil {
		control = make(chan evo.MonitorCommand, 16)
	}
	if err := p.registerRunControl(runID, control); err != nil {
		return EvolutionResult{}, err
	}
	defer p.unregisterRunControl(runID)

	monitorCfg := cfg.Monitor
	monitorCfg.Control = control
	monitorCfg.Rand = rng
	if monitorCfg.Logger == nil {
		monitorCfg.Logger = p.logger.With("run_id", runID)
	}
	monitor, err := evo.NewPopulationMonitor(initial, monitorCfg)
	if err != nil {
		return EvolutionResult{}, err
	}

	result, err := monitor.Run(ctx, cfg.MaxTicks)
	if err != nil {
		return EvolutionResult{}, err
	}

	lineage := toModelLineage(result.Lineage)
	topFinal := topAgents(result.Final, TopAgentCount)
	record := runRecord(runID, target, cfg, result)

	snapshot := snapshotPopulation(runID, runID, cfg.ScapeName, result.Final)
	if err := p.store.SavePopulation(ctx, snapshot); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveLineage(ctx, runID, lineage); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveTopAgents(ctx, runID, topFinal); err != nil {
		return EvolutionResult{}, err
	}
	if err := p.store.SaveRun(ctx, record); err != nil {
		return EvolutionResult{}, err
	}

	p.logger.Info("run persisted",
		"run_id", runID,
		"scape", cfg.ScapeName,
		"ticks", result.Ticks,
		"generation", result.Final.Generation,
		"best_fitness", result.Final.BestFitness,
		"solved", result.Solved,
	)

	return EvolutionResult{
		RunID:                 runID,
		Record:                record,
		BestByGeneration:      result.BestByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		Lineage:               lineage,
		TopFinal:              topFinal,
		BestFinalFitness:      result.Final.BestFitness,
		Final:                 result.Final,
		Solved:                result.Solved,
		Stopped:               result.Stopped,
	}, nil
}

// initialPopulation restores cfg.Initial or seeds a fresh population from
// rng, the same source the monitor breeds from.
func initialPopulation(s *scape.MazeScape, cfg EvolutionConfig, rng *rand.Rand) (*evo.Population, error) {
	if len(cfg.Initial) > 0 {
		return evo.NewPopulation(s, cfg.InitialGeneration, cfg.Initial)
	}
	pop, err := evo.Seed(s, cfg.Seed, rng)
	if err != nil {
		return nil, err
	}
	pop.Generation = cfg.InitialGeneration
	return pop, nil
}

func runRecord(runID string, s *scape.MazeScape, cfg EvolutionConfig, result evo.RunResult) model.RunRecord {
	createdAt := cfg.CreatedAtUTC
	if createdAt == "" {
		createdAt = stats.Timestamp(time.Now())
	}
	fitness := s.FitnessConfig()
	genomeLength := cfg.Seed.GenomeLength
	if len(cfg.Initial) > 0 {
		genomeLength = len(cfg.Initial[0].Genome)
	}
	return model.RunRecord{
		VersionedRecord:    storage.Versioned(),
		ID:                 runID,
		CreatedAtUTC:       createdAt,
		Layout:             s.Name(),
		Grid:               grid.Format(s.Grid()),
		Seed:               cfg.Monitor.Seed,
		PopulationSize:     len(result.Final.Agents),
		GenomeLength:       genomeLength,
		MinLen:             fitness.MinLen,
		IncompleteWeight:   fitness.Incomplete,
		MutationThreshold:  cfg.Monitor.Breed.MutationThreshold,
		Strategy:           string(cfg.Monitor.Breed.Strategy),
		Orphans:            string(cfg.Monitor.Breed.Orphans),
		Policy:             string(cfg.Monitor.Policy),
		TicksPerGeneration: cfg.Monitor.TicksPerGeneration,
		BurstSize:          cfg.Monitor.BurstSize,
		Ticks:              result.Ticks,
		BreedingSteps:      result.BreedingSteps,
		FinalGeneration:    result.Final.Generation,
		FinalBestFitness:   result.Final.BestFitness,
		Solved:             result.Solved,
	}
}

func topAgents(final evo.GenerationResult, limit int) []model.TopAgentRecord {
	ranked := final.Ranked()
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]model.TopAgentRecord, 0, len(ranked))
	for i, r := range ranked {
		out = append(out, model.TopAgentRecord{Rank: i + 1, AgentRecord: r.Record()})
	}
	return out
}

func toModelLineage(records []evo.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, 0, len(records))
	for _, r := range records {
		out = append(out, model.LineageRecord{
			Generation:    r.Generation,
			Label:         r.Label,
			Operation:     r.Operation,
			Donor:         r.Donor,
			ParentFitness: r.ParentFitness,
		})
	}
	return out
}

func (p *Polis) PauseRun(runID string) error {
	return p.sendRunCommand(runID, evo.CommandPause)
}

func (p *Polis) ContinueRun(runID string) error {
	return p.sendRunCommand(runID, evo.CommandContinue)
}

func (p *Polis) StopRun(runID string) error {
	return p.sendRunCommand(runID, evo.CommandStop)
}

// TriggerRun queues a manual breeding burst on an active run.
func (p *Polis) TriggerRun(runID string) error {
	return p.sendRunCommand(runID, evo.CommandBreed)
}

// ActiveRuns lists the ids of runs currently holding a control channel.
func (p *Polis) ActiveRuns() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.runs))
	for id := range p.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p *Polis) registerRunControl(runID string, control chan evo.MonitorCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return fmt.Errorf("polis is not initialized")
	}
	if _, exists := p.runs[runID]; exists {
		return fmt.Errorf("run already active: %s", runID)
	}
	p.runs[runID] = control
	return nil
}

func (p *Polis) unregisterRunControl(runID string) {
	if runID == "" {
		return
	}
	p.mu.Lock()
	delete(p.runs, runID)
	p.mu.Unlock()
}

func (p *Polis) sendRunCommand(runID string, cmd evo.MonitorCommand) error {
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	p.mu.RLock()
	control, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return fmt.Errorf("run not active: %s", runID)
	}
	select {
	case control <- cmd:
		return nil
	default:
		return fmt.Errorf("run control channel is full: %s", runID)
	}
}
