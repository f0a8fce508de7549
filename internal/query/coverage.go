package query

import "github.com/papapumpkin/orrery/internal/graph"

// CoverageReport lists traceability holes across the graph, entity order
// matching the index.
type CoverageReport struct {
	RequirementsWithoutUoWs []string `json:"requirements_without_uows"`
	UoWsWithoutContracts    []string `json:"uows_without_contracts"`
	UoWsWithoutBDD          []string `json:"uows_without_bdd"`
	OrphanedContracts       []string `json:"orphaned_contracts"`
}

// CoverageResult wraps a CoverageReport inside a query result.
type CoverageResult struct {
	CoverageAnalysis CoverageReport `json:"coverage_analysis"`
}

// CoverageGaps reports requirements with no implementing unit of work,
// units of work with no validating contract or BDD feature, and contracts
// applying to entities the index does not know.
func (e *Engine) CoverageGaps() CoverageReport {
	report := CoverageReport{
		RequirementsWithoutUoWs: []string{},
		UoWsWithoutContracts:    []string{},
		UoWsWithoutBDD:          []string{},
		OrphanedContracts:       []string{},
	}
	for _, ent := range e.g.Entities() {
		switch ent.Type {
		case graph.TypeRequirement, graph.TypeQualityAttribute:
			if len(e.g.Incoming(ent.ID, graph.RelImplements)) == 0 {
				report.RequirementsWithoutUoWs = append(report.RequirementsWithoutUoWs, ent.ID)
			}
		case graph.TypeUnitOfWork:
			if len(e.g.Incoming(ent.ID, graph.RelValidates)) == 0 {
				report.UoWsWithoutContracts = append(report.UoWsWithoutContracts, ent.ID)
			}
			if e.features == nil || !e.features.Has(ent.ID) {
				report.UoWsWithoutBDD = append(report.UoWsWithoutBDD, ent.ID)
			}
		case graph.TypeContract:
			appliesTo, _ := ent.Attributes["applies_to"].(map[string]any)
			name, _ := appliesTo["entity_name"].(string)
			if name == "" {
				continue
			}
			if _, ok := e.g.Entity(name); !ok {
				report.OrphanedContracts = append(report.OrphanedContracts, ent.ID)
			}
		}
	}
	return report
}
