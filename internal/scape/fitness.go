package scape

import (
	"errors"
	"fmt"

	"pathevo/internal/grid"
)

// ErrEmptyPath guards the finish score against a zero-length divisor.
var ErrEmptyPath = errors.New("finish reached with an empty path")

// FitnessConfig tunes the asymmetric score. Wall deaths land in
// [0, Incomplete], finishes in (Incomplete, ...] and exhausted walks score
// exactly Incomplete.
type FitnessConfig struct {
	Incomplete float64 `json:"incomplete_weight"`
	MinLen     int     `json:"min_len"`
}

func DefaultFitnessConfig() FitnessConfig {
	return FitnessConfig{Incomplete: 0.5, MinLen: 16}
}

func (c FitnessConfig) Validate() error {
	if c.Incomplete < 0 || c.Incomplete > 1 {
		return fmt.Errorf("incomplete weight must be in [0, 1], got %g", c.Incomplete)
	}
	if c.MinLen <= 0 {
		return fmt.Errorf("min len must be > 0, got %d", c.MinLen)
	}
	return nil
}

// Fitness scores path against p by the kind of its final cell.
func Fitness(path Path, p grid.Provider, cfg FitnessConfig) (float64, error) {
	start, finish, err := grid.Locate(p)
	if err != nil {
		return 0, err
	}
	end := path.End()
	return score(p.Classify(end.X, end.Y), path.Len(), start, finish, end, cfg)
}

func score(kind grid.TileKind, n int, start, finish, end grid.Coordinate, cfg FitnessConfig) (float64, error) {
	w := cfg.Incomplete
	switch kind {
	case grid.Wall:
		total := start.Distance(finish)
		if total == 0 {
			return 0, fmt.Errorf("start and finish share cell %s", start)
		}
		// Walls behind the start are farther from the finish than the start
		// itself; they count as no progress.
		progress := 1 - end.Distance(finish)/total
		if progress < 0 {
			progress = 0
		}
		return progress * w, nil
	case grid.Finish:
		if n == 0 {
			return 0, ErrEmptyPath
		}
		return float64(cfg.MinLen)/float64(n)*(1-w) + w, nil
	default:
		return w, nil
	}
}
