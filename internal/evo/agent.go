package evo

import (
	"context"
	"fmt"
	"math/rand"

	"pathevo/internal/genome"
	"pathevo/internal/scape"
)

// DefaultLabels are the display colors of the original eight-agent runs.
var DefaultLabels = []string{"Red", "Blue", "Green", "Magenta", "Cyan", "Black", "White", "Yellow"}

// Agent owns one genome and an opaque display label. Paths and fitness are
// always recomputed from the genome.
type Agent struct {
	Label  string        `json:"label"`
	Genome genome.Genome `json:"genome"`
}

// NewRandomAgent builds an agent with a fresh random genome.
func NewRandomAgent(label string, length int, rng *rand.Rand) Agent {
	return Agent{Label: label, Genome: genome.Random(rng, length)}
}

// Mutate returns a mutated copy that keeps the label.
func (a Agent) Mutate(rng *rand.Rand) Agent {
	return Agent{Label: a.Label, Genome: a.Genome.Mutate(rng)}
}

// Crossover returns a copy of a that inherits genes from other.
func (a Agent) Crossover(other Agent, rng *rand.Rand) Agent {
	return Agent{Label: a.Label, Genome: a.Genome.Crossover(other.Genome, rng)}
}

func (a Agent) Clone() Agent {
	return Agent{Label: a.Label, Genome: a.Genome.Clone()}
}

func (a Agent) Path(s *scape.MazeScape) scape.Path {
	return s.Simulate(a.Genome)
}

func (a Agent) Assess(ctx context.Context, s *scape.MazeScape) (scape.Assessment, error) {
	assessed, err := s.Assess(ctx, a.Genome)
	if err != nil {
		return scape.Assessment{}, fmt.Errorf("assess agent %s: %w", a.Label, err)
	}
	return assessed, nil
}

// Labels returns n labels drawn from base, then numbered agent-NNN labels
// once base runs out.
func Labels(n int, base []string) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		if i < len(base) {
			out = append(out, base[i])
			continue
		}
		out = append(out, fmt.Sprintf("agent-%03d", i))
	}
	return out
}
