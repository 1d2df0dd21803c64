package platform

import (
	"context"
	"fmt"

	"pathevo/internal/evo"
	"pathevo/internal/genome"
	"pathevo/internal/model"
	"pathevo/internal/storage"
)

func snapshotPopulation(id, runID, layout string, final evo.GenerationResult) model.PopulationSnapshot {
	agents := make([]model.AgentRecord, 0, len(final.Agents))
	for _, r := range final.Agents {
		agents = append(agents, r.Record())
	}
	return model.PopulationSnapshot{
		VersionedRecord: storage.Versioned(),
		ID:              id,
		RunID:           runID,
		Layout:          layout,
		Generation:      final.Generation,
		Agents:          agents,
	}
}

// RestoreAgents rebuilds agents from a stored snapshot in snapshot order.
func RestoreAgents(snapshot model.PopulationSnapshot) ([]evo.Agent, error) {
	agents := make([]evo.Agent, 0, len(snapshot.Agents))
	for _, rec := range snapshot.Agents {
		g, err := genome.Parse(rec.Genome)
		if err != nil {
			return nil, fmt.Errorf("population %s agent %s: %w", snapshot.ID, rec.Label, err)
		}
		agents = append(agents, evo.Agent{Label: rec.Label, Genome: g})
	}
	return agents, nil
}

// LoadPopulation reads a stored snapshot and restores its agents. A snapshot
// of a generation that bred empty restores to no agents.
func (p *Polis) LoadPopulation(ctx context.Context, id string) (model.PopulationSnapshot, []evo.Agent, error) {
	if id == "" {
		return model.PopulationSnapshot{}, nil, fmt.Errorf("population id is required")
	}
	snapshot, ok, err := p.store.GetPopulation(ctx, id)
	if err != nil {
		return model.PopulationSnapshot{}, nil, err
	}
	if !ok {
		return model.PopulationSnapshot{}, nil, fmt.Errorf("population not found: %s", id)
	}
	agents, err := RestoreAgents(snapshot)
	if err != nil {
		return model.PopulationSnapshot{}, nil, err
	}
	return snapshot, agents, nil
}
