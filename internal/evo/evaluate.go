package evo

import (
	"context"
	"sort"

	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"pathevo/internal/model"
	"pathevo/internal/scape"
)

// AgentResult is one agent of a generation with its realized path.
type AgentResult struct {
	Index   int
	Agent   Agent
	Path    scape.Path
	Fitness float64
}

func (r AgentResult) Outcome() scape.Outcome {
	return r.Path.Outcome
}

// Record converts the result into its persisted form.
func (r AgentResult) Record() model.AgentRecord {
	return model.AgentRecord{
		Label:   r.Agent.Label,
		Genome:  r.Agent.Genome.String(),
		Fitness: r.Fitness,
		Outcome: r.Path.Outcome.String(),
		PathLen: r.Path.Len(),
		Path:    r.Path.Moves().String(),
	}
}

// GenerationResult is the outcome of evaluating one population. Agents keep
// population order.
type GenerationResult struct {
	Generation       int
	Agents           []AgentResult
	BestFitness      float64
	AnyReachedFinish bool
}

func (r GenerationResult) Empty() bool {
	return len(r.Agents) == 0
}

// Ranked returns the agents ordered by fitness, best first. Equal scores keep
// population order.
func (r GenerationResult) Ranked() []AgentResult {
	ranked := append([]AgentResult(nil), r.Agents...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}

func (r GenerationResult) Best() (AgentResult, bool) {
	if len(r.Agents) == 0 {
		return AgentResult{}, false
	}
	return r.Ranked()[0], true
}

// Fitnesses returns the fitness values in population order.
func (r GenerationResult) Fitnesses() []float64 {
	out := make([]float64, 0, len(r.Agents))
	for _, a := range r.Agents {
		out = append(out, a.Fitness)
	}
	return out
}

// Evaluate simulates and scores every agent of pop using at most workers
// goroutines. An empty population evaluates to an empty, unfit result.
func Evaluate(ctx context.Context, pop *Population, workers int) (GenerationResult, error) {
	result := GenerationResult{Generation: pop.Generation}
	if pop.Empty() {
		return result, ctx.Err()
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > len(pop.Agents) {
		workers = len(pop.Agents)
	}

	results := make([]AgentResult, len(pop.Agents))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithFirstError()
	for i := range pop.Agents {
		p.Go(func(ctx context.Context) error {
			a := pop.Agents[i]
			assessed, err := a.Assess(ctx, pop.scape)
			if err != nil {
				return err
			}
			results[i] = AgentResult{Index: i, Agent: a, Path: assessed.Path, Fitness: assessed.Fitness}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return GenerationResult{}, err
	}

	result.Agents = results
	result.BestFitness = results[0].Fitness
	for _, r := range results {
		if r.Fitness > result.BestFitness {
			result.BestFitness = r.Fitness
		}
		if r.Path.Outcome == scape.ReachedFinish {
			result.AnyReachedFinish = true
		}
	}
	return result, nil
}

// Summarize reduces a generation result to its diagnostics record.
func Summarize(result GenerationResult, tick, breedingSteps int) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{
		Generation:       result.Generation,
		Tick:             tick,
		PopulationSize:   len(result.Agents),
		AnyReachedFinish: result.AnyReachedFinish,
		BreedingSteps:    breedingSteps,
	}
	for _, a := range result.Agents {
		switch a.Path.Outcome {
		case scape.ReachedFinish:
			diag.Finishers++
		case scape.HitWall:
			diag.WallHits++
		default:
			diag.Exhausted++
		}
	}
	fitness := result.Fitnesses()
	if len(fitness) == 0 {
		return diag
	}
	diag.BestFitness = floats.Max(fitness)
	diag.MinFitness = floats.Min(fitness)
	if len(fitness) == 1 {
		diag.MeanFitness = fitness[0]
		return diag
	}
	diag.MeanFitness, diag.StdDevFitness = stat.MeanStdDev(fitness, nil)
	return diag
}
