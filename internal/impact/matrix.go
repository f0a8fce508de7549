package impact

import (
	"math"
	"sort"

	"github.com/papapumpkin/orrery/internal/graph"
)

// criticalityThreshold is the minimum score an entity needs to appear in
// the CriticalDependencies report.
const criticalityThreshold = 0.7

// ImpactMatrix maps every ordered pair of the given entities to how
// strongly a change to the first would reach the second: "high" for a
// direct relationship, "medium" for one intermediary, "low" for longer
// paths, "none" when no path connects them.
func (a *Analyzer) ImpactMatrix(ids []string) map[string]map[string]string {
	matrix := make(map[string]map[string]string, len(ids))
	for _, src := range ids {
		row := make(map[string]string, len(ids)-1)
		for _, dst := range ids {
			if src == dst {
				continue
			}
			row[dst] = reachLevel(a.g.ShortestPath(src, dst))
		}
		matrix[src] = row
	}
	return matrix
}

func reachLevel(path []string) string {
	switch {
	case path == nil:
		return "none"
	case len(path) == 2:
		return "high"
	case len(path) == 3:
		return "medium"
	}
	return "low"
}

// CriticalDependency flags an entity whose position in the graph makes
// changing it expensive.
type CriticalDependency struct {
	Entity               graph.Entity `json:"entity"`
	CriticalityScore     float64      `json:"criticality_score"`
	IncomingDependencies int          `json:"incoming_dependencies"`
	OutgoingDependencies int          `json:"outgoing_dependencies"`
	RiskFactors          []string     `json:"risk_factors"`
}

// CriticalDependencies scores every entity by type weight plus fan-in and
// fan-out, and returns those at or above criticalityThreshold, highest
// score first, ties by id.
func (a *Analyzer) CriticalDependencies() []CriticalDependency {
	deps := []CriticalDependency{}
	for _, e := range a.g.Entities() {
		incoming := len(a.g.Incoming(e.ID, graph.RelDependsOn, graph.RelImplements))
		outgoing := len(a.g.Outgoing(e.ID, graph.RelDependsOn))
		score := criticalityScore(e.Type, incoming, outgoing)
		if score < criticalityThreshold {
			continue
		}
		deps = append(deps, CriticalDependency{
			Entity:               *e,
			CriticalityScore:     score,
			IncomingDependencies: incoming,
			OutgoingDependencies: outgoing,
			RiskFactors:          dependencyRiskFactors(e.Type, incoming, outgoing),
		})
	}
	sort.SliceStable(deps, func(i, j int) bool {
		if deps[i].CriticalityScore != deps[j].CriticalityScore {
			return deps[i].CriticalityScore > deps[j].CriticalityScore
		}
		return deps[i].Entity.ID < deps[j].Entity.ID
	})
	return deps
}

// criticalityScore weighs the entity type, then adds capped contributions
// for entities depending on it and entities it depends on.
func criticalityScore(typ graph.EntityType, incoming, outgoing int) float64 {
	var score float64
	switch typ {
	case graph.TypeRequirement:
		score = 0.4
	case graph.TypeContract:
		score = 0.3
	case graph.TypeUnitOfWork:
		score = 0.2
	}
	score += math.Min(float64(incoming)*0.1, 0.4)
	score += math.Min(float64(outgoing)*0.05, 0.2)
	return math.Min(score, 1.0)
}

func dependencyRiskFactors(typ graph.EntityType, incoming, outgoing int) []string {
	factors := []string{}
	if incoming > 5 {
		factors = append(factors, "High number of dependent entities")
	}
	if outgoing > 3 {
		factors = append(factors, "High complexity with multiple dependencies")
	}
	if typ == graph.TypeRequirement || typ == graph.TypeContract {
		factors = append(factors, "Critical entity type")
	}
	return factors
}
