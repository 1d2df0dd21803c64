// Package scape simulates genomes on a grid and scores the resulting paths.
package scape

import (
	"context"
	"fmt"

	"pathevo/internal/genome"
	"pathevo/internal/grid"
)

// Assessment is the simulated path of a genome and its score.
type Assessment struct {
	Path    Path    `json:"path"`
	Fitness float64 `json:"fitness"`
}

// MazeScape binds a validated grid to a fitness configuration. Start and
// finish are located once; the grid is never written.
type MazeScape struct {
	name   string
	grid   grid.Provider
	start  grid.Coordinate
	finish grid.Coordinate
	cfg    FitnessConfig
}

func NewMazeScape(name string, p grid.Provider, cfg FitnessConfig) (*MazeScape, error) {
	if p == nil {
		return nil, fmt.Errorf("grid is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := grid.Validate(p); err != nil {
		return nil, fmt.Errorf("scape %s: %w", name, err)
	}
	start, finish, err := grid.Locate(p)
	if err != nil {
		return nil, fmt.Errorf("scape %s: %w", name, err)
	}
	return &MazeScape{
		name:   name,
		grid:   p,
		start:  start,
		finish: finish,
		cfg:    cfg,
	}, nil
}

func (s *MazeScape) Name() string {
	return s.name
}

func (s *MazeScape) Grid() grid.Provider {
	return s.grid
}

func (s *MazeScape) Start() grid.Coordinate {
	return s.start
}

func (s *MazeScape) Finish() grid.Coordinate {
	return s.finish
}

func (s *MazeScape) FitnessConfig() FitnessConfig {
	return s.cfg
}

func (s *MazeScape) Simulate(g genome.Genome) Path {
	return SimulateFrom(g, s.grid, s.start)
}

func (s *MazeScape) Score(path Path) (float64, error) {
	end := path.End()
	return score(s.grid.Classify(end.X, end.Y), path.Len(), s.start, s.finish, end, s.cfg)
}

// Assess simulates g and scores the path.
func (s *MazeScape) Assess(ctx context.Context, g genome.Genome) (Assessment, error) {
	if err := ctx.Err(); err != nil {
		return Assessment{}, err
	}
	path := s.Simulate(g)
	fitness, err := s.Score(path)
	if err != nil {
		return Assessment{}, err
	}
	return Assessment{Path: path, Fitness: fitness}, nil
}
