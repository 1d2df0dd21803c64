package evo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"pathevo/internal/model"
)

// Policy decides what happens to a generation once its evaluation window
// closes.
type Policy string

const (
	// PolicyUnconditional breeds once after every window.
	PolicyUnconditional Policy = "unconditional"
	// PolicyConditional breeds a burst only when no agent reached the finish.
	PolicyConditional Policy = "conditional"
	// PolicyManual holds the generation until a breed command arrives.
	PolicyManual Policy = "manual"
)

func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case "", PolicyUnconditional:
		return PolicyUnconditional, nil
	case PolicyConditional, "conditional_on_success":
		return PolicyConditional, nil
	case PolicyManual:
		return PolicyManual, nil
	default:
		return "", fmt.Errorf("%w: unsupported replacement policy %q", ErrInvalidConfig, name)
	}
}

type MonitorCommand string

const (
	CommandPause    MonitorCommand = "pause"
	CommandContinue MonitorCommand = "continue"
	CommandStop     MonitorCommand = "stop"
	CommandBreed    MonitorCommand = "breed"
)

// Window actions reported with each evaluated generation.
const (
	ActionReplace = "replace"
	ActionHold    = "hold"
)

// GenerationReport is passed to MonitorConfig.OnGeneration after every
// evaluation window.
type GenerationReport struct {
	Result      GenerationResult
	Diagnostics model.GenerationDiagnostics
	Action      string
}

// MonitorConfig configures a PopulationMonitor. Rand is the run's random
// source, shared with whatever seeded the initial population so a run draws
// from one stream; when nil the monitor uses a source seeded with Seed.
type MonitorConfig struct {
	Breed              BreedConfig
	Policy             Policy
	TicksPerGeneration int
	BurstSize          int
	Workers            int
	Seed               int64
	Rand               *rand.Rand
	StopWhenSolved     bool
	Logger             *slog.Logger
	Control            <-chan MonitorCommand
	OnGeneration       func(GenerationReport)
}

func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Breed:              DefaultBreedConfig(),
		Policy:             PolicyUnconditional,
		TicksPerGeneration: 20,
		BurstSize:          1,
		Workers:            1,
	}
}

type RunResult struct {
	Ticks                 int
	BreedingSteps         int
	BestByGeneration      []float64
	GenerationDiagnostics []model.GenerationDiagnostics
	Lineage               []LineageRecord
	Final                 GenerationResult
	FinalPopulation       *Population
	Solved                bool
	Stopped               bool
}

// PopulationMonitor drives a population through evaluation windows and
// replaces it according to the configured policy. It is not safe for
// concurrent use; other goroutines talk to a running monitor through the
// control channel.
type PopulationMonitor struct {
	cfg    MonitorConfig
	rng    *rand.Rand
	logger *slog.Logger

	current       *Population
	windowTicks   int
	ticks         int
	breedingSteps int
	triggers      int
	paused        bool
	stopped       bool
	solved        bool

	bestHistory []float64
	diagnostics []model.GenerationDiagnostics
	lineage     []LineageRecord
}

func NewPopulationMonitor(initial *Population, cfg MonitorConfig) (*PopulationMonitor, error) {
	if initial == nil {
		return nil, errors.New("initial population is required")
	}
	if initial.scape == nil {
		return nil, errors.New("population scape is required")
	}
	if err := cfg.Breed.Validate(); err != nil {
		return nil, err
	}
	policy, err := ParsePolicy(string(cfg.Policy))
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy
	if cfg.TicksPerGeneration <= 0 {
		return nil, fmt.Errorf("%w: ticks per generation must be > 0", ErrInvalidConfig)
	}
	if cfg.BurstSize <= 0 {
		return nil, fmt.Errorf("%w: burst size must be > 0", ErrInvalidConfig)
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(cfg.Seed))
	}
	m := &PopulationMonitor{
		cfg:     cfg,
		rng:     rng,
		logger:  logger.With("scape", initial.scape.Name()),
		current: initial,
	}
	for _, a := range initial.Agents {
		m.lineage = append(m.lineage, LineageRecord{
			Generation: initial.Generation,
			Label:      a.Label,
			Operation:  OpSeed,
		})
	}
	return m, nil
}

func (m *PopulationMonitor) Population() *Population {
	return m.current
}

func (m *PopulationMonitor) Ticks() int {
	return m.ticks
}

func (m *PopulationMonitor) BreedingSteps() int {
	return m.breedingSteps
}

func (m *PopulationMonitor) Paused() bool {
	return m.paused
}

func (m *PopulationMonitor) Stopped() bool {
	return m.stopped
}

// Trigger queues one breeding burst, applied on the next tick whatever the
// policy.
func (m *PopulationMonitor) Trigger() {
	m.triggers++
}

// Apply handles one control command.
func (m *PopulationMonitor) Apply(cmd MonitorCommand) error {
	switch cmd {
	case CommandPause:
		m.paused = true
	case CommandContinue:
		m.paused = false
	case CommandStop:
		m.stopped = true
	case CommandBreed:
		m.Trigger()
	default:
		return fmt.Errorf("unsupported monitor command %q", cmd)
	}
	m.logger.Debug("monitor command", "command", string(cmd))
	return nil
}

// Tick advances the monitor by one logical tick. Queued breed triggers run
// first. When the window reaches TicksPerGeneration the current generation
// is evaluated and the policy decides whether it is replaced. Paused or
// stopped monitors do not advance.
func (m *PopulationMonitor) Tick(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.paused || m.stopped {
		return nil
	}

	for m.triggers > 0 {
		m.triggers--
		m.logger.Info("manual trigger", "generation", m.current.Generation, "burst", m.cfg.BurstSize)
		if err := m.burst(ctx, m.cfg.BurstSize); err != nil {
			return err
		}
		m.windowTicks = 0
	}

	m.ticks++
	m.windowTicks++
	if m.windowTicks < m.cfg.TicksPerGeneration {
		return nil
	}
	m.windowTicks = 0
	return m.closeWindow(ctx)
}

func (m *PopulationMonitor) closeWindow(ctx context.Context) error {
	result, err := Evaluate(ctx, m.current, m.cfg.Workers)
	if err != nil {
		return err
	}
	if result.AnyReachedFinish {
		m.solved = true
	}
	if result.Empty() {
		m.logger.Warn("empty generation", "generation", result.Generation)
	}

	steps := 0
	switch m.cfg.Policy {
	case PolicyUnconditional:
		steps = 1
	case PolicyConditional:
		if !result.AnyReachedFinish {
			steps = m.cfg.BurstSize
		}
	case PolicyManual:
	}

	diag := Summarize(result, m.ticks, steps)
	m.bestHistory = append(m.bestHistory, result.BestFitness)
	m.diagnostics = append(m.diagnostics, diag)

	action := ActionHold
	if steps > 0 {
		action = ActionReplace
	}
	if m.cfg.OnGeneration != nil {
		m.cfg.OnGeneration(GenerationReport{Result: result, Diagnostics: diag, Action: action})
	}

	if m.cfg.StopWhenSolved && result.AnyReachedFinish {
		m.logger.Info("finish reached", "generation", result.Generation, "best_fitness", result.BestFitness)
		m.stopped = true
		return nil
	}
	if steps == 0 {
		m.logger.Debug("generation held",
			"generation", result.Generation,
			"best_fitness", result.BestFitness,
			"any_reached_finish", result.AnyReachedFinish,
		)
		return nil
	}
	if err := m.burst(ctx, steps); err != nil {
		return err
	}
	m.logger.Info("generation replaced",
		"generation", m.current.Generation,
		"previous_best_fitness", result.BestFitness,
		"size", m.current.Size(),
		"breeding_steps", steps,
	)
	return nil
}

func (m *PopulationMonitor) burst(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		next, lineage, err := Breed(ctx, m.current, m.cfg.Breed, m.rng)
		if err != nil {
			return fmt.Errorf("breed generation %d: %w", m.current.Generation+1, err)
		}
		m.current = next
		m.breedingSteps++
		m.lineage = append(m.lineage, lineage...)
	}
	return nil
}

// Run ticks the monitor until maxTicks have elapsed, a stop command arrives
// or ctx is done. maxTicks <= 0 runs until stopped. A cancelled context
// returns the context error. While paused, Run blocks on the control
// channel.
func (m *PopulationMonitor) Run(ctx context.Context, maxTicks int) (RunResult, error) {
	for maxTicks <= 0 || m.ticks < maxTicks {
		if err := m.drainControl(ctx); err != nil {
			return RunResult{}, err
		}
		if m.stopped {
			break
		}
		if err := m.Tick(ctx); err != nil {
			return RunResult{}, err
		}
		if m.stopped {
			break
		}
	}
	return m.Result(ctx)
}

func (m *PopulationMonitor) drainControl(ctx context.Context) error {
	if m.cfg.Control == nil {
		if m.paused {
			return errors.New("monitor paused without a control channel")
		}
		return ctx.Err()
	}
	for {
		if m.paused {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case cmd, ok := <-m.cfg.Control:
				if !ok {
					return errors.New("control channel closed while paused")
				}
				if err := m.Apply(cmd); err != nil {
					return err
				}
			}
			if m.stopped {
				return nil
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd, ok := <-m.cfg.Control:
			if !ok {
				m.cfg.Control = nil
				return nil
			}
			if err := m.Apply(cmd); err != nil {
				return err
			}
			if m.stopped {
				return nil
			}
		default:
			return nil
		}
	}
}

// Result evaluates the current generation and collects the run history.
func (m *PopulationMonitor) Result(ctx context.Context) (RunResult, error) {
	final, err := Evaluate(ctx, m.current, m.cfg.Workers)
	if err != nil {
		return RunResult{}, err
	}
	return RunResult{
		Ticks:                 m.ticks,
		BreedingSteps:         m.breedingSteps,
		BestByGeneration:      append([]float64(nil), m.bestHistory...),
		GenerationDiagnostics: append([]model.GenerationDiagnostics(nil), m.diagnostics...),
		Lineage:               append([]LineageRecord(nil), m.lineage...),
		Final:                 final,
		FinalPopulation:       m.current,
		Solved:                m.solved || final.AnyReachedFinish,
		Stopped:               m.stopped,
	}, nil
}
