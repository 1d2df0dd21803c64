package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"pathevo/internal/genome"
	"pathevo/internal/scape"
)

// Population is one generation of agents bred against a single scape.
type Population struct {
	Generation int
	Agents     []Agent
	scape      *scape.MazeScape
}

type SeedConfig struct {
	Size         int      `json:"size"`
	GenomeLength int      `json:"genome_length"`
	Labels       []string `json:"labels,omitempty"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Size:         len(DefaultLabels),
		GenomeLength: genome.DefaultLength,
	}
}

func (c SeedConfig) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("%w: population size must be > 0", ErrInvalidConfig)
	}
	if c.GenomeLength <= 0 {
		return fmt.Errorf("%w: genome length must be > 0", ErrInvalidConfig)
	}
	return nil
}

// Seed builds generation zero from random agents.
func Seed(s *scape.MazeScape, cfg SeedConfig, rng *rand.Rand) (*Population, error) {
	if s == nil {
		return nil, errors.New("scape is required")
	}
	if rng == nil {
		return nil, errors.New("random source is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base := cfg.Labels
	if len(base) == 0 {
		base = DefaultLabels
	}
	labels := Labels(cfg.Size, base)
	agents := make([]Agent, 0, cfg.Size)
	for _, label := range labels {
		agents = append(agents, NewRandomAgent(label, cfg.GenomeLength, rng))
	}
	return &Population{Agents: agents, scape: s}, nil
}

// NewPopulation wraps existing agents, for example ones restored from a
// snapshot.
func NewPopulation(s *scape.MazeScape, generation int, agents []Agent) (*Population, error) {
	if s == nil {
		return nil, errors.New("scape is required")
	}
	if generation < 0 {
		return nil, fmt.Errorf("generation must be >= 0")
	}
	copied := make([]Agent, 0, len(agents))
	for _, a := range agents {
		copied = append(copied, a.Clone())
	}
	return &Population{Generation: generation, Agents: copied, scape: s}, nil
}

func (p *Population) Size() int {
	return len(p.Agents)
}

func (p *Population) Empty() bool {
	return len(p.Agents) == 0
}

func (p *Population) Scape() *scape.MazeScape {
	return p.scape
}

// Best returns the fittest agent. The first agent wins ties. ok is false for
// an empty population.
func (p *Population) Best(ctx context.Context) (AgentResult, bool, error) {
	var (
		best  AgentResult
		found bool
	)
	for i, a := range p.Agents {
		assessed, err := a.Assess(ctx, p.scape)
		if err != nil {
			return AgentResult{}, false, err
		}
		if !found || assessed.Fitness > best.Fitness {
			best = AgentResult{Index: i, Agent: a, Path: assessed.Path, Fitness: assessed.Fitness}
			found = true
		}
	}
	return best, found, nil
}
