// Package genome holds the fixed-length move sequences that agents follow and
// the random operators that construct and vary them.
package genome

import (
	"fmt"
	"math/rand"
	"strings"
)

// DefaultLength is the number of moves in a genome unless configured otherwise.
const DefaultLength = 36

// Genome is an ordered sequence of moves.
type Genome []Move

// Random draws length moves uniformly, redrawing any move that would undo the
// one before it.
func Random(rng *rand.Rand, length int) Genome {
	g := make(Genome, length)
	for i := range g {
		if i == 0 {
			g[i] = drawMove(rng)
			continue
		}
		g[i] = drawNonReversing(rng, g[i-1])
	}
	return g
}

// Mutate returns a copy of g where gene i is redrawn with probability
// i/len(g). A redrawn gene never reverses the gene before it, and is never
// reversed by the gene after it, so a reversal-free genome stays reversal-free.
func (g Genome) Mutate(rng *rand.Rand) Genome {
	out := g.Clone()
	for i := range out {
		progress := float64(i) / float64(len(out))
		if rng.Float64() >= progress {
			continue
		}
		m := drawMove(rng)
		for (i > 0 && m.Reverses(out[i-1])) || (i+1 < len(out) && out[i+1].Reverses(m)) {
			m = drawMove(rng)
		}
		out[i] = m
	}
	return out
}

// Crossover returns a copy of g where gene i is taken from other with
// probability i/len(g). Inherited genes are not checked for reversals.
func (g Genome) Crossover(other Genome, rng *rand.Rand) Genome {
	out := g.Clone()
	for i := range out {
		progress := float64(i) / float64(len(out))
		if rng.Float64() < progress && i < len(other) {
			out[i] = other[i]
		}
	}
	return out
}

func (g Genome) Clone() Genome {
	if g == nil {
		return nil
	}
	out := make(Genome, len(g))
	copy(out, g)
	return out
}

// FirstReversal returns the index of the first gene that undoes its
// predecessor, or -1.
func (g Genome) FirstReversal() int {
	for i := 1; i < len(g); i++ {
		if g[i].Reverses(g[i-1]) {
			return i
		}
	}
	return -1
}

func (g Genome) String() string {
	var b strings.Builder
	b.Grow(len(g))
	for _, m := range g {
		b.WriteByte(m.Letter())
	}
	return b.String()
}

// Parse decodes the letter form produced by String.
func Parse(s string) (Genome, error) {
	g := make(Genome, 0, len(s))
	for i := 0; i < len(s); i++ {
		m, err := ParseMove(s[i])
		if err != nil {
			return nil, fmt.Errorf("gene %d: %w", i, err)
		}
		g = append(g, m)
	}
	return g, nil
}

func (g Genome) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Genome) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func drawMove(rng *rand.Rand) Move {
	return Moves[rng.Intn(len(Moves))]
}

func drawNonReversing(rng *rand.Rand, prev Move) Move {
	m := drawMove(rng)
	for m.Reverses(prev) {
		m = drawMove(rng)
	}
	return m
}
