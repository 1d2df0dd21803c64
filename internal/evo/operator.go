package evo

import (
	"fmt"
	"math/rand"
)

// PairOperator produces the offspring of a fit agent and the agent that
// preceded it in the previous generation.
type PairOperator interface {
	Name() string
	Apply(rng *rand.Rand, fit, predecessor Agent) Agent
}

// PositionalCrossover inherits genes from the predecessor with a probability
// that grows along the genome.
type PositionalCrossover struct{}

func (PositionalCrossover) Name() string {
	return OpCrossover
}

func (PositionalCrossover) Apply(rng *rand.Rand, fit, predecessor Agent) Agent {
	return fit.Crossover(predecessor, rng)
}

// MutateAlias ignores the predecessor and mutates the fit agent.
type MutateAlias struct{}

func (MutateAlias) Name() string {
	return OpMutate
}

func (MutateAlias) Apply(rng *rand.Rand, fit, _ Agent) Agent {
	return fit.Mutate(rng)
}

// Strategy selects the pair operator used for fit agents.
type Strategy string

const (
	StrategyMutateOnly          Strategy = "mutate_only"
	StrategyMutateThenCrossover Strategy = "mutate_then_crossover"
)

func ParseStrategy(name string) (Strategy, error) {
	switch Strategy(name) {
	case "", StrategyMutateThenCrossover:
		return StrategyMutateThenCrossover, nil
	case StrategyMutateOnly:
		return StrategyMutateOnly, nil
	default:
		return "", fmt.Errorf("%w: unsupported strategy %q", ErrInvalidConfig, name)
	}
}

func (s Strategy) Operator() (PairOperator, error) {
	switch s {
	case StrategyMutateOnly:
		return MutateAlias{}, nil
	case "", StrategyMutateThenCrossover:
		return PositionalCrossover{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported strategy %q", ErrInvalidConfig, string(s))
	}
}
