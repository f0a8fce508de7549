package impact

import (
	"fmt"

	"github.com/papapumpkin/orrery/internal/graph"
)

// RemovalSimulation projects what breaks if an entity were deleted from
// the corpus. The graph itself is never modified.
type RemovalSimulation struct {
	RemovedEntity       string               `json:"removed_entity"`
	BrokenRelationships []graph.Relationship `json:"broken_relationships"`
	OrphanedEntities    []string             `json:"orphaned_entities"`
	CascadeRemovals     []string             `json:"cascade_removals"`
	AffectedContracts   []string             `json:"affected_contracts"`
	RecoveryPlan        []string             `json:"recovery_plan"`
}

// SimulateRemoval reports the fallout of removing entityID: every
// relationship that would break, requirements left without an
// implementation, dependents left without any dependency, and contracts
// that name the entity. Unknown entities fail with graph.ErrNotFound.
func (a *Analyzer) SimulateRemoval(entityID string) (*RemovalSimulation, error) {
	if _, err := a.g.Require(entityID); err != nil {
		return nil, fmt.Errorf("impact: %w", err)
	}

	sim := &RemovalSimulation{
		RemovedEntity:       entityID,
		BrokenRelationships: a.g.Touching(entityID),
		OrphanedEntities:    []string{},
		CascadeRemovals:     []string{},
		AffectedContracts:   []string{},
	}

	for _, rel := range sim.BrokenRelationships {
		if rel.Type != graph.RelImplements || rel.Source != entityID {
			continue
		}
		if _, ok := a.g.Entity(rel.Target); ok {
			sim.OrphanedEntities = append(sim.OrphanedEntities, rel.Target)
		}
	}

	// A dependent cascades only when this entity was its sole dependency.
	for _, rel := range sim.BrokenRelationships {
		if rel.Type != graph.RelDependsOn || rel.Target != entityID {
			continue
		}
		alternatives := 0
		for _, alt := range a.g.Outgoing(rel.Source, graph.RelDependsOn) {
			if alt.Target != entityID {
				alternatives++
			}
		}
		if alternatives == 0 {
			sim.CascadeRemovals = append(sim.CascadeRemovals, rel.Source)
		}
	}

	for _, e := range a.g.Entities() {
		if e.Type != graph.TypeContract {
			continue
		}
		appliesTo, _ := e.Attributes["applies_to"].(map[string]any)
		if name, _ := appliesTo["entity_name"].(string); name == entityID {
			sim.AffectedContracts = append(sim.AffectedContracts, e.ID)
		}
	}

	sim.RecoveryPlan = recoveryPlan(sim)
	return sim, nil
}

func recoveryPlan(sim *RemovalSimulation) []string {
	plan := []string{}
	if len(sim.OrphanedEntities) > 0 {
		plan = append(plan, "Create alternative implementations for orphaned requirements")
	}
	if len(sim.CascadeRemovals) > 0 {
		plan = append(plan, "Establish alternative dependencies for cascade-affected entities")
	}
	if len(sim.AffectedContracts) > 0 {
		plan = append(plan, "Update or remove affected contracts")
	}
	if len(sim.BrokenRelationships) > 0 {
		plan = append(plan, "Re-establish critical relationships with alternative entities")
	}
	plan = append(plan,
		"Update documentation and traceability matrix",
		"Run full corpus verification after changes",
	)
	return plan
}
