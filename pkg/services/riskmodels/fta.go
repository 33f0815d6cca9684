package riskmodels

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// FTAModelID is the registry key of the fault tree model.
const FTAModelID = "fta"

const (
	defaultSeverity         = 3
	defaultSensitivityDelta = 0.1
	// ftaRecommendedNodes bounds the basic events quoted in recommendations.
	ftaRecommendedNodes = 5
)

// Top event names reported when the tree cannot be evaluated.
const (
	FTANoDataName     = "No data"
	FTANoTopEventName = "Top event not found"
)

// ============================================================================
// Fault Tree Evaluation
// ============================================================================

// FaultTree is a read-only view of a mission's fault tree. Evaluation never
// mutates the node records; perturbed probabilities are passed in as maps.
type FaultTree struct {
	nodes    []*models.FTANode
	byID     map[int64]*models.FTANode
	children map[int64][]int64
	base     map[int64]float64
}

// NewFaultTree indexes nodes and edges. Edges whose parent is unknown are ignored.
func NewFaultTree(nodes []*models.FTANode, edges []*models.FTAEdge) *FaultTree {
	t := &FaultTree{
		nodes:    nodes,
		byID:     make(map[int64]*models.FTANode, len(nodes)),
		children: make(map[int64][]int64),
		base:     make(map[int64]float64),
	}
	for _, n := range nodes {
		t.byID[n.ID] = n
		if n.IsBasic() {
			t.base[n.ID] = n.BaseProbability()
		}
	}
	for _, e := range edges {
		if _, ok := t.byID[e.ParentID]; ok {
			t.children[e.ParentID] = append(t.children[e.ParentID], e.ChildID)
		}
	}
	return t
}

// Top returns the first TOP node, or nil.
func (t *FaultTree) Top() *models.FTANode {
	for _, n := range t.nodes {
		if n.NodeType == models.FTANodeTop {
			return n
		}
	}
	return nil
}

// BaseProbabilities returns a copy of the BASIC node probabilities.
func (t *FaultTree) BaseProbabilities() map[int64]float64 {
	return maps.Clone(t.base)
}

// Evaluate propagates probabilities from root downward and returns every
// visited node's probability. basic supplies BASIC node probabilities; a nil
// map uses the stored ones.
//
// AND gates multiply child probabilities, OR gates (and nodes without a gate)
// combine them as 1 - prod(1 - p). Non-basic nodes without children and
// unknown ids evaluate to 0. A node reached again while it is still being
// evaluated also counts as 0, so a cyclic graph terminates.
func (t *FaultTree) Evaluate(root int64, basic map[int64]float64) map[int64]float64 {
	if basic == nil {
		basic = t.base
	}
	probs := make(map[int64]float64, len(t.nodes))
	inProgress := make(map[int64]bool)

	var eval func(id int64) float64
	eval = func(id int64) float64 {
		if p, ok := probs[id]; ok {
			return p
		}
		node, ok := t.byID[id]
		if !ok || inProgress[id] {
			return 0
		}

		if node.IsBasic() {
			p, ok := basic[id]
			if !ok {
				p = node.BaseProbability()
			}
			probs[id] = p
			return p
		}

		kids := t.children[id]
		if len(kids) == 0 {
			probs[id] = 0
			return 0
		}

		inProgress[id] = true
		p := 1.0
		if node.GateType == models.FTAGateAnd {
			for _, c := range kids {
				p *= eval(c)
			}
		} else {
			for _, c := range kids {
				p *= 1 - eval(c)
			}
			p = 1 - p
		}
		delete(inProgress, id)

		probs[id] = p
		return p
	}

	eval(root)
	return probs
}

// withOverride returns a copy of base with one probability replaced.
func withOverride(base map[int64]float64, id int64, p float64) map[int64]float64 {
	out := maps.Clone(base)
	out[id] = p
	return out
}

// ============================================================================
// Result Types
// ============================================================================

// FTANodeResult is the evaluated probability of one node.
type FTANodeResult struct {
	NodeID       int64              `json:"node_id"`
	Name         string             `json:"name"`
	NodeType     models.FTANodeType `json:"node_type"`
	GateType     models.FTAGateType `json:"gate_type"`
	Probability  float64            `json:"probability"`
	Contribution float64            `json:"contribution"`
}

// FTASensitivityItem is the top-event response to perturbing one basic event.
type FTASensitivityItem struct {
	NodeID          int64   `json:"node_id"`
	NodeName        string  `json:"node_name"`
	BaseProbability float64 `json:"base_probability"`
	MinusProb       float64 `json:"minus_prob"`
	PlusProb        float64 `json:"plus_prob"`
	ImpactScore     float64 `json:"impact_score"`
}

// FTAResult is the payload of a fault tree run.
type FTAResult struct {
	TopEventName        string               `json:"top_event_name"`
	TopEventProbability float64              `json:"top_event_probability"`
	LikelihoodLevel     int                  `json:"likelihood_level"`
	SeverityLevel       int                  `json:"severity_level"`
	RiskScore           int                  `json:"risk_score"`
	RiskLevel           models.RiskLevel     `json:"risk_level"`
	NodeResults         []FTANodeResult      `json:"node_results"`
	Sensitivity         []FTASensitivityItem `json:"sensitivity"`
	// CutSets is reserved for minimal cut sets; they are not enumerated.
	CutSets [][]string `json:"cut_sets"`
}

func emptyFTAResult(name string) *FTAResult {
	return &FTAResult{
		TopEventName:    name,
		LikelihoodLevel: 1,
		SeverityLevel:   1,
		RiskScore:       1,
		RiskLevel:       models.RiskLevelLow,
		NodeResults:     []FTANodeResult{},
		Sensitivity:     []FTASensitivityItem{},
		CutSets:         [][]string{},
	}
}

// FTAOptions tunes AnalyzeFaultTree.
type FTAOptions struct {
	DefaultSeverity  int
	SensitivityDelta float64
	SensitivityTopN  int
}

// AnalyzeFaultTree evaluates the tree rooted at the first TOP node, maps the
// top probability to a risk score and runs OAT sensitivity on basic events.
func AnalyzeFaultTree(nodes []*models.FTANode, edges []*models.FTAEdge, opts FTAOptions) *FTAResult {
	if len(nodes) == 0 {
		return emptyFTAResult(FTANoDataName)
	}

	tree := NewFaultTree(nodes, edges)
	top := tree.Top()
	if top == nil {
		return emptyFTAResult(FTANoTopEventName)
	}

	probs := tree.Evaluate(top.ID, nil)
	pTop := probs[top.ID]

	severity := opts.DefaultSeverity
	if top.Severity != nil && *top.Severity > 0 {
		severity = *top.Severity
	}
	likelihood := LikelihoodFromProbability(pTop)
	score := likelihood * severity

	result := &FTAResult{
		TopEventName:        top.Name,
		TopEventProbability: pTop,
		LikelihoodLevel:     likelihood,
		SeverityLevel:       severity,
		RiskScore:           score,
		RiskLevel:           MatrixLevel(score),
		NodeResults:         make([]FTANodeResult, 0, len(nodes)),
		CutSets:             [][]string{},
	}

	for _, n := range nodes {
		p := probs[n.ID]
		contribution := 0.0
		if pTop > 0 {
			contribution = p / pTop
		}
		result.NodeResults = append(result.NodeResults, FTANodeResult{
			NodeID:       n.ID,
			Name:         n.Name,
			NodeType:     n.NodeType,
			GateType:     n.GateType,
			Probability:  p,
			Contribution: contribution,
		})
	}

	result.Sensitivity = faultTreeSensitivity(tree, top.ID, pTop, opts.SensitivityDelta, opts.SensitivityTopN)
	return result
}

// faultTreeSensitivity scales each basic event's probability by (1 -/+ delta),
// clamped to [0, 1], and records the top-event probability either way.
func faultTreeSensitivity(tree *FaultTree, topID int64, pTop, delta float64, n int) []FTASensitivityItem {
	base := tree.BaseProbabilities()
	items := []FTASensitivityItem{}

	for _, node := range tree.nodes {
		if !node.IsBasic() {
			continue
		}
		orig := base[node.ID]
		minus := tree.Evaluate(topID, withOverride(base, node.ID, math.Max(0, orig*(1-delta))))[topID]
		plus := tree.Evaluate(topID, withOverride(base, node.ID, math.Min(1, orig*(1+delta))))[topID]

		items = append(items, FTASensitivityItem{
			NodeID:          node.ID,
			NodeName:        node.Name,
			BaseProbability: orig,
			MinusProb:       minus,
			PlusProb:        plus,
			ImpactScore:     math.Max(math.Abs(minus-pTop), math.Abs(plus-pTop)),
		})
	}

	slices.SortStableFunc(items, func(a, b FTASensitivityItem) int {
		return cmp.Compare(b.ImpactScore, a.ImpactScore)
	})
	return topN(items, n)
}

// FTARecommendations advises on high-risk top events and the most
// influential basic events.
func FTARecommendations(result *FTAResult) []string {
	recs := []string{}
	if result.RiskLevel.IsHighOrAbove() {
		recs = append(recs,
			fmt.Sprintf("Fault tree analysis rates top event [%s] as %s with probability %.2e; recommended:",
				result.TopEventName, result.RiskLevel, result.TopEventProbability),
			"  • Reduce the probability of the key basic events first",
			"  • Add redundancy so single failures feed AND gates instead of OR gates",
			"  • Strengthen preventive maintenance and monitoring",
		)
	}
	if len(result.Sensitivity) > 0 {
		recs = append(recs, "Sensitivity analysis shows these basic events influence the top event most:")
		for i, s := range topN(result.Sensitivity, ftaRecommendedNodes) {
			recs = append(recs, fmt.Sprintf("    %d. [%s] impact=%.2e", i+1, s.NodeName, s.ImpactScore))
		}
		recs = append(recs, "  • Prioritize controls on these events")
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type ftaModel struct {
	baseModel
	tree repositories.FTARepository
}

// NewFTAModel creates the fault tree analysis model.
func NewFTAModel(tree repositories.FTARepository, logger *zap.Logger) AnalyticalModel {
	return &ftaModel{
		baseModel: newBaseModel(
			FTAModelID,
			"Fault Tree Analysis (FTA)",
			"Propagates basic event probabilities through AND/OR gates to the top event and maps it to a risk level.",
			CategoryQuantitativeAnalysis,
			[]ParamSpec{
				{
					Name:        "default_severity",
					Label:       "Default severity (S)",
					Type:        ParamInt,
					Default:     defaultSeverity,
					Min:         bound(1),
					Max:         bound(5),
					Description: "Severity used when the top event declares none",
				},
				{
					Name:        "sensitivity_delta",
					Label:       "Sensitivity perturbation",
					Type:        ParamFloat,
					Default:     defaultSensitivityDelta,
					Min:         bound(0.01),
					Max:         bound(0.5),
					Description: "Relative change applied to basic event probabilities (0.1 = +/-10%)",
				},
				{
					Name:        "top_n_sensitivity",
					Label:       "Sensitivity Top-N",
					Type:        ParamInt,
					Default:     defaultTopN,
					Min:         bound(1),
					Max:         bound(maxTopN),
					Description: "Number of basic events to report",
				},
			},
			logger,
		),
		tree: tree,
	}
}

var _ AnalyticalModel = (*ftaModel)(nil)

func (m *ftaModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *ftaModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	nodes, err := m.tree.GetNodesByMission(ctx, rc.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fault tree nodes: %w", err)
	}
	edges, err := m.tree.GetEdgesByMission(ctx, rc.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load fault tree edges: %w", err)
	}

	result := AnalyzeFaultTree(nodes, edges, FTAOptions{
		DefaultSeverity:  rc.Params.Int("default_severity", defaultSeverity),
		SensitivityDelta: rc.Params.Float("sensitivity_delta", defaultSensitivityDelta),
		SensitivityTopN:  rc.Params.Int("top_n_sensitivity", defaultTopN),
	})
	return result, FTARecommendations(result), nil
}
