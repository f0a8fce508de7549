package impact

import (
	"fmt"
	"sort"
	"strings"

	"github.com/papapumpkin/orrery/internal/graph"
)

const (
	maxCascadeImpacts = 20
	maxCascadePath    = 5
)

// Analyzer computes change-impact reports over a loaded graph snapshot.
type Analyzer struct {
	g *graph.Graph
}

// New returns an Analyzer over g.
func New(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// Item is one impacted entity inside a report.
type Item struct {
	EntityID        string           `json:"entity_id"`
	EntityType      graph.EntityType `json:"entity_type"`
	ImpactType      string           `json:"impact_type"`
	Severity        Severity         `json:"severity"`
	Description     string           `json:"description"`
	Path            []string         `json:"path"`
	Recommendations []string         `json:"recommendations"`
}

// RiskAssessment rolls a report up into a single risk verdict.
type RiskAssessment struct {
	OverallRisk        Severity `json:"overall_risk"`
	RiskScore          int      `json:"risk_score"`
	RiskFactors        []string `json:"risk_factors"`
	MitigationRequired bool     `json:"mitigation_required"`
}

// Report is the complete impact analysis for one proposed change.
type Report struct {
	SourceEntity           string         `json:"source_entity"`
	ChangeType             ChangeType     `json:"change_type"`
	DirectImpacts          []Item         `json:"direct_impacts"`
	IndirectImpacts        []Item         `json:"indirect_impacts"`
	CascadeImpacts         []Item         `json:"cascade_impacts"`
	RiskAssessment         RiskAssessment `json:"risk_assessment"`
	MitigationStrategies   []string       `json:"mitigation_strategies"`
	AffectedLayers         []string       `json:"affected_layers"`
	TestingRecommendations []string       `json:"testing_recommendations"`
}

// AnalyzeChangeImpact reports everything a change to entityID would touch.
// Unknown entities fail with graph.ErrNotFound.
func (a *Analyzer) AnalyzeChangeImpact(entityID string, change ChangeType) (*Report, error) {
	source, err := a.g.Require(entityID)
	if err != nil {
		return nil, fmt.Errorf("impact: %w", err)
	}

	direct := a.directImpacts(entityID, change)
	indirect := a.indirectImpacts(entityID, direct)
	cascade := a.cascadeImpacts(entityID, direct, indirect)

	all := make([]Item, 0, len(direct)+len(indirect)+len(cascade))
	all = append(all, direct...)
	all = append(all, indirect...)
	all = append(all, cascade...)
	layers := a.affectedLayers(all)

	risk := riskAssessment(source, direct, indirect, cascade, layers)

	return &Report{
		SourceEntity:           entityID,
		ChangeType:             change,
		DirectImpacts:          direct,
		IndirectImpacts:        indirect,
		CascadeImpacts:         cascade,
		RiskAssessment:         risk,
		MitigationStrategies:   mitigationStrategies(risk.OverallRisk, direct, indirect, layers),
		AffectedLayers:         layers,
		TestingRecommendations: testingRecommendations(direct, indirect, layers),
	}, nil
}

// directImpacts covers every entity one relationship away from the source.
// Dangling targets are skipped; an edge into nothing impacts nothing.
func (a *Analyzer) directImpacts(entityID string, change ChangeType) []Item {
	items := []Item{}
	for _, rel := range a.g.Touching(entityID) {
		affectedID := rel.Other(entityID)
		affected, ok := a.g.Entity(affectedID)
		if !ok {
			continue
		}
		items = append(items, Item{
			EntityID:        affectedID,
			EntityType:      affected.Type,
			ImpactType:      impactType(rel.Type),
			Severity:        directSeverity(rel.Type, affected.Type, change),
			Description:     impactDescription(rel.Type, affected),
			Path:            []string{entityID, affectedID},
			Recommendations: impactRecommendations(rel.Type),
		})
	}
	return items
}

// indirectImpacts covers entities exactly two hops out: neighbors of each
// direct impact, excluding the source, edges that touch the source, and
// anything already reported as a direct impact. First parent wins when two
// direct impacts reach the same entity.
func (a *Analyzer) indirectImpacts(entityID string, direct []Item) []Item {
	seen := make(map[string]bool, len(direct)+1)
	seen[entityID] = true
	for _, d := range direct {
		seen[d.EntityID] = true
	}

	items := []Item{}
	for _, d := range direct {
		for _, rel := range a.g.Touching(d.EntityID) {
			if rel.Source == entityID || rel.Target == entityID {
				continue
			}
			affectedID := rel.Other(d.EntityID)
			if seen[affectedID] {
				continue
			}
			affected, ok := a.g.Entity(affectedID)
			if !ok {
				continue
			}
			seen[affectedID] = true
			items = append(items, Item{
				EntityID:        affectedID,
				EntityType:      affected.Type,
				ImpactType:      "indirect_" + impactType(rel.Type),
				Severity:        reduce(d.Severity),
				Description:     "Indirectly affected via " + d.EntityID,
				Path:            []string{entityID, d.EntityID, affectedID},
				Recommendations: []string{"Review for potential side effects"},
			})
		}
	}
	return items
}

// cascadeImpacts walks outward breadth-first from every reported impact,
// collecting entities not yet seen. Expansion stops at maxCascadeImpacts
// items and never extends a path past maxCascadePath nodes.
func (a *Analyzer) cascadeImpacts(entityID string, direct, indirect []Item) []Item {
	type frame struct {
		id   string
		path []string
	}

	visited := map[string]bool{entityID: true}
	queue := make([]frame, 0, len(direct)+len(indirect))
	for _, imp := range direct {
		visited[imp.EntityID] = true
		queue = append(queue, frame{id: imp.EntityID, path: imp.Path})
	}
	for _, imp := range indirect {
		visited[imp.EntityID] = true
		queue = append(queue, frame{id: imp.EntityID, path: imp.Path})
	}

	items := []Item{}
	for len(queue) > 0 && len(items) < maxCascadeImpacts {
		f := queue[0]
		queue = queue[1:]
		if len(f.path) >= maxCascadePath {
			continue
		}
		for _, rel := range a.g.Touching(f.id) {
			if len(items) >= maxCascadeImpacts {
				break
			}
			nextID := rel.Other(f.id)
			if visited[nextID] {
				continue
			}
			visited[nextID] = true
			next, ok := a.g.Entity(nextID)
			if !ok {
				continue
			}
			path := append(append([]string{}, f.path...), nextID)
			items = append(items, Item{
				EntityID:        nextID,
				EntityType:      next.Type,
				ImpactType:      "cascade",
				Severity:        cascadeSeverity(len(f.path)),
				Description:     "Cascade impact via " + strings.Join(f.path[1:], " → "),
				Path:            path,
				Recommendations: []string{"Monitor for unexpected effects"},
			})
			queue = append(queue, frame{id: nextID, path: path})
		}
	}
	return items
}

func impactType(rel graph.RelationshipType) string {
	switch rel {
	case graph.RelImplements:
		return "implementation_change"
	case graph.RelDependsOn:
		return "dependency_impact"
	case graph.RelValidates:
		return "contract_validation"
	case graph.RelExtends:
		return "extension_impact"
	}
	return "general_impact"
}

// directSeverity scores the impact additively: the relationship kind, the
// affected entity's type, and the change type each contribute, and the
// total buckets into a severity.
func directSeverity(rel graph.RelationshipType, affected graph.EntityType, change ChangeType) Severity {
	score := 1
	switch rel {
	case graph.RelImplements, graph.RelValidates:
		score += 2
	case graph.RelDependsOn:
		score++
	}
	switch affected {
	case graph.TypeRequirement, graph.TypeContract:
		score += 2
	case graph.TypeUnitOfWork:
		score++
	}
	switch change {
	case ChangeRemoval:
		score += 2
	case ChangeMajorModification:
		score++
	}
	switch {
	case score >= 6:
		return SeverityCritical
	case score >= 4:
		return SeverityHigh
	case score >= 2:
		return SeverityMedium
	}
	return SeverityLow
}

func cascadeSeverity(parentPathLen int) Severity {
	if parentPathLen <= 3 {
		return SeverityMedium
	}
	return SeverityLow
}

func impactDescription(rel graph.RelationshipType, affected *graph.Entity) string {
	name := affected.DisplayName()
	switch rel {
	case graph.RelImplements:
		return "Implementation relationship will be affected: " + name
	case graph.RelDependsOn:
		return "Dependency relationship will be affected: " + name
	case graph.RelValidates:
		return "Contract validation will be affected: " + name
	}
	return fmt.Sprintf("Related %s will be affected: %s", affected.Type, name)
}

func impactRecommendations(rel graph.RelationshipType) []string {
	switch rel {
	case graph.RelImplements:
		return []string{
			"Update implementation to match changes",
			"Verify acceptance criteria still satisfied",
		}
	case graph.RelDependsOn:
		return []string{
			"Check dependency compatibility",
			"Update dependent entity if needed",
		}
	case graph.RelValidates:
		return []string{
			"Re-validate contract conditions",
			"Update contract if necessary",
		}
	}
	return []string{}
}

// affectedLayers collects the architectural layers the impacted entities
// declare. Entities without a layer attribute are skipped.
func (a *Analyzer) affectedLayers(impacts []Item) []string {
	seen := make(map[string]bool)
	for _, imp := range impacts {
		e, ok := a.g.Entity(imp.EntityID)
		if !ok {
			continue
		}
		if layer := e.Str("layer"); layer != "" {
			seen[layer] = true
		}
	}
	layers := make([]string, 0, len(seen))
	for layer := range seen {
		layers = append(layers, layer)
	}
	sort.Strings(layers)
	return layers
}

func riskAssessment(source *graph.Entity, direct, indirect, cascade []Item, layers []string) RiskAssessment {
	factors := []string{}
	score := 0

	if source.Type == graph.TypeRequirement || source.Type == graph.TypeContract {
		factors = append(factors, "Critical entity type")
		score += 3
	}

	total := len(direct) + len(indirect) + len(cascade)
	switch {
	case total > 10:
		factors = append(factors, "High impact count")
		score += 2
	case total > 5:
		factors = append(factors, "Medium impact count")
		score++
	}

	critical := 0
	for _, imp := range direct {
		if imp.Severity == SeverityCritical {
			critical++
		}
	}
	for _, imp := range indirect {
		if imp.Severity == SeverityCritical {
			critical++
		}
	}
	if critical > 0 {
		factors = append(factors, "Critical severity impacts")
		score += critical
	}

	if len(layers) > 2 {
		factors = append(factors, "Multiple layer impact")
		score++
	}

	risk := SeverityLow
	switch {
	case score >= 8:
		risk = SeverityCritical
	case score >= 5:
		risk = SeverityHigh
	case score >= 3:
		risk = SeverityMedium
	}

	return RiskAssessment{
		OverallRisk:        risk,
		RiskScore:          score,
		RiskFactors:        factors,
		MitigationRequired: risk == SeverityHigh || risk == SeverityCritical,
	}
}

func mitigationStrategies(risk Severity, direct, indirect []Item, layers []string) []string {
	strategies := []string{}
	switch risk {
	case SeverityCritical:
		strategies = append(strategies,
			"Implement phased rollout with rollback plan",
			"Create comprehensive test suite covering all impacts",
			"Set up monitoring for all affected entities",
			"Prepare hotfix deployment process",
		)
	case SeverityHigh:
		strategies = append(strategies,
			"Perform staged deployment",
			"Enhanced testing of affected components",
			"Monitor key metrics during rollout",
		)
	}

	types := make(map[string]bool)
	for _, imp := range direct {
		types[imp.ImpactType] = true
	}
	for _, imp := range indirect {
		types[imp.ImpactType] = true
	}
	if types["implementation_change"] {
		strategies = append(strategies, "Update related contracts and BDD scenarios")
	}
	if types["dependency_impact"] {
		strategies = append(strategies, "Verify dependency compatibility")
	}
	if types["contract_validation"] {
		strategies = append(strategies, "Re-validate all affected contracts")
	}

	if len(layers) > 1 {
		strategies = append(strategies, "Coordinate changes across affected layers")
	}
	return strategies
}

func testingRecommendations(direct, indirect []Item, layers []string) []string {
	recs := []string{
		"Unit tests for modified entity",
		"Integration tests for direct impacts",
	}
	if len(direct)+len(indirect) > 5 {
		recs = append(recs,
			"Regression test suite execution",
			"End-to-end testing of affected workflows",
		)
	}

	layerSet := make(map[string]bool, len(layers))
	for _, layer := range layers {
		layerSet[layer] = true
	}
	if layerSet["foundation"] {
		recs = append(recs, "Infrastructure and configuration testing")
	}
	if layerSet["application"] {
		recs = append(recs, "Business logic validation testing")
	}
	if layerSet["deployment"] {
		recs = append(recs, "Deployment and operational testing")
	}

	for _, imp := range append(append([]Item{}, direct...), indirect...) {
		if imp.ImpactType == "contract_validation" {
			recs = append(recs, "Contract compliance verification")
			break
		}
	}
	return recs
}
