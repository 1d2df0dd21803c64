package evo

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// OrphanPolicy decides what happens to a fit agent with no predecessor.
type OrphanPolicy string

const (
	OrphansDrop  OrphanPolicy = "drop"
	OrphansCarry OrphanPolicy = "carry"
)

func ParseOrphanPolicy(name string) (OrphanPolicy, error) {
	switch OrphanPolicy(name) {
	case "", OrphansDrop:
		return OrphansDrop, nil
	case OrphansCarry:
		return OrphansCarry, nil
	default:
		return "", fmt.Errorf("%w: unsupported orphan policy %q", ErrInvalidConfig, name)
	}
}

// Lineage operations.
const (
	OpSeed      = "seed"
	OpMutate    = "mutate"
	OpCrossover = "crossover"
	OpCarry     = "carry"
	OpDrop      = "drop"
)

type LineageRecord struct {
	Generation    int     `json:"generation"`
	Label         string  `json:"label"`
	Operation     string  `json:"operation"`
	Donor         string  `json:"donor,omitempty"`
	ParentFitness float64 `json:"parent_fitness"`
}

type BreedConfig struct {
	MutationThreshold float64      `json:"mutation_threshold"`
	Strategy          Strategy     `json:"strategy"`
	Orphans           OrphanPolicy `json:"orphans"`
}

func DefaultBreedConfig() BreedConfig {
	return BreedConfig{
		MutationThreshold: 0.3,
		Strategy:          StrategyMutateThenCrossover,
		Orphans:           OrphansDrop,
	}
}

func (c BreedConfig) Validate() error {
	if _, err := c.Strategy.Operator(); err != nil {
		return err
	}
	if _, err := ParseOrphanPolicy(string(c.Orphans)); err != nil {
		return err
	}
	return nil
}

// Breed derives the next generation from prev. Walking prev in order, agents
// scoring at or below the mutation threshold are mutated; fitter agents are
// combined with their predecessor by the strategy's pair operator. A fit
// agent with no predecessor is dropped or carried over according to the
// orphan policy, so the next generation may be smaller than prev.
func Breed(ctx context.Context, prev *Population, cfg BreedConfig, rng *rand.Rand) (*Population, []LineageRecord, error) {
	if prev == nil {
		return nil, nil, errors.New("previous population is required")
	}
	if rng == nil {
		return nil, nil, errors.New("random source is required")
	}
	op, err := cfg.Strategy.Operator()
	if err != nil {
		return nil, nil, err
	}

	generation := prev.Generation + 1
	next := &Population{
		Generation: generation,
		Agents:     make([]Agent, 0, len(prev.Agents)),
		scape:      prev.scape,
	}
	lineage := make([]LineageRecord, 0, len(prev.Agents))

	var predecessor *Agent
	for i := range prev.Agents {
		agent := prev.Agents[i]
		assessed, err := agent.Assess(ctx, prev.scape)
		if err != nil {
			return nil, nil, err
		}

		record := LineageRecord{Generation: generation, Label: agent.Label, ParentFitness: assessed.Fitness}
		switch {
		case assessed.Fitness <= cfg.MutationThreshold:
			next.Agents = append(next.Agents, agent.Mutate(rng))
			record.Operation = OpMutate
		case predecessor != nil:
			next.Agents = append(next.Agents, op.Apply(rng, agent, *predecessor))
			record.Operation = op.Name()
			if record.Operation == OpCrossover {
				record.Donor = predecessor.Label
			}
		case cfg.Orphans == OrphansCarry:
			next.Agents = append(next.Agents, agent.Clone())
			record.Operation = OpCarry
		default:
			record.Operation = OpDrop
		}
		lineage = append(lineage, record)
		predecessor = &prev.Agents[i]
	}
	return next, lineage, nil
}
