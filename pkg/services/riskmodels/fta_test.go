package riskmodels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

func basicNode(id int64, name string, p float64) *models.FTANode {
	return &models.FTANode{ID: id, Name: name, NodeType: models.FTANodeBasic, Probability: models.Float64(p)}
}

func edge(parent, child int64) *models.FTAEdge {
	return &models.FTAEdge{ParentID: parent, ChildID: child}
}

func twoInputTree(gate models.FTAGateType, p1, p2 float64) ([]*models.FTANode, []*models.FTAEdge) {
	nodes := []*models.FTANode{
		{ID: 1, Name: "Loss of vehicle", NodeType: models.FTANodeTop, GateType: gate},
		basicNode(2, "Pump failure", p1),
		basicNode(3, "Valve failure", p2),
	}
	return nodes, []*models.FTAEdge{edge(1, 2), edge(1, 3)}
}

func TestFaultTree_Gates(t *testing.T) {
	tests := []struct {
		name string
		gate models.FTAGateType
		want float64
	}{
		{"AND multiplies", models.FTAGateAnd, 0.25},
		{"OR combines complements", models.FTAGateOr, 0.75},
		{"unset gate evaluates as OR", "", 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, edges := twoInputTree(tt.gate, 0.5, 0.5)
			probs := NewFaultTree(nodes, edges).Evaluate(1, nil)
			assert.InDelta(t, tt.want, probs[1], 1e-12)
		})
	}
}

func TestFaultTree_DegenerateNodes(t *testing.T) {
	nodes := []*models.FTANode{
		{ID: 1, Name: "Top", NodeType: models.FTANodeTop, GateType: models.FTAGateOr},
		{ID: 2, Name: "Empty gate", NodeType: models.FTANodeIntermediate, GateType: models.FTAGateAnd},
		basicNode(3, "Lonely basic", 0.2),
		{ID: 4, Name: "Unset basic", NodeType: models.FTANodeBasic},
	}
	tree := NewFaultTree(nodes, nil)

	assert.Equal(t, 0.0, tree.Evaluate(2, nil)[2], "gate without children")
	assert.Equal(t, 0.2, tree.Evaluate(3, nil)[3], "basic node as root")
	assert.Equal(t, models.DefaultBasicEventProbability, tree.Evaluate(4, nil)[4])
	assert.Equal(t, 0.0, tree.Evaluate(99, nil)[99], "unknown node")
}

func TestFaultTree_CycleTerminates(t *testing.T) {
	nodes := []*models.FTANode{
		{ID: 1, Name: "Top", NodeType: models.FTANodeTop, GateType: models.FTAGateOr},
		{ID: 2, Name: "Loop", NodeType: models.FTANodeIntermediate, GateType: models.FTAGateOr},
		basicNode(3, "Basic", 0.1),
	}
	edges := []*models.FTAEdge{edge(1, 2), edge(2, 1), edge(2, 3)}

	probs := NewFaultTree(nodes, edges).Evaluate(1, nil)

	assert.InDelta(t, 0.1, probs[1], 1e-12)
}

func TestAnalyzeFaultTree_Scoring(t *testing.T) {
	nodes, edges := twoInputTree(models.FTAGateOr, 0.5, 0.5)

	result := AnalyzeFaultTree(nodes, edges, FTAOptions{DefaultSeverity: 3, SensitivityDelta: 0.1, SensitivityTopN: 10})

	assert.Equal(t, "Loss of vehicle", result.TopEventName)
	assert.InDelta(t, 0.75, result.TopEventProbability, 1e-12)
	assert.Equal(t, 5, result.LikelihoodLevel)
	assert.Equal(t, 3, result.SeverityLevel)
	assert.Equal(t, 15, result.RiskScore)
	assert.Equal(t, models.RiskLevelHigh, result.RiskLevel)
	assert.Empty(t, result.CutSets)
	assert.NotNil(t, result.CutSets)

	require.Len(t, result.NodeResults, 3)
	assert.InDelta(t, 1.0, result.NodeResults[0].Contribution, 1e-12)
	assert.InDelta(t, 0.5/0.75, result.NodeResults[1].Contribution, 1e-12)
}

func TestAnalyzeFaultTree_TopSeverityOverridesDefault(t *testing.T) {
	nodes, edges := twoInputTree(models.FTAGateAnd, 1e-3, 1e-3)
	sev := 5
	nodes[0].Severity = &sev

	result := AnalyzeFaultTree(nodes, edges, FTAOptions{DefaultSeverity: 3, SensitivityDelta: 0.1, SensitivityTopN: 10})

	assert.InDelta(t, 1e-6, result.TopEventProbability, 1e-18)
	assert.Equal(t, 1, result.LikelihoodLevel)
	assert.Equal(t, 5, result.SeverityLevel)
	assert.Equal(t, models.RiskLevelMedium, result.RiskLevel)
}

func TestAnalyzeFaultTree_EmptyResults(t *testing.T) {
	opts := FTAOptions{DefaultSeverity: 3, SensitivityDelta: 0.1, SensitivityTopN: 10}

	noData := AnalyzeFaultTree(nil, nil, opts)
	assert.Equal(t, FTANoDataName, noData.TopEventName)
	assert.Equal(t, 1, noData.RiskScore)
	assert.Equal(t, models.RiskLevelLow, noData.RiskLevel)

	noTop := AnalyzeFaultTree([]*models.FTANode{basicNode(1, "Orphan", 0.3)}, nil, opts)
	assert.Equal(t, FTANoTopEventName, noTop.TopEventName)
	assert.Equal(t, 1, noTop.LikelihoodLevel)
	assert.Equal(t, 1, noTop.SeverityLevel)
}

func TestAnalyzeFaultTree_SensitivityLeavesRecordsUntouched(t *testing.T) {
	nodes, edges := twoInputTree(models.FTAGateOr, 0.2, 0.4)

	result := AnalyzeFaultTree(nodes, edges, FTAOptions{DefaultSeverity: 3, SensitivityDelta: 0.1, SensitivityTopN: 10})

	require.Len(t, result.Sensitivity, 2)
	for _, s := range result.Sensitivity {
		assert.Less(t, s.MinusProb, result.TopEventProbability)
		assert.Greater(t, s.PlusProb, result.TopEventProbability)
		assert.Greater(t, s.ImpactScore, 0.0)
	}

	// The 0.4 event moves the top event more: d/dp2 = 1-p1 and its delta is larger.
	assert.Equal(t, "Valve failure", result.Sensitivity[0].NodeName)

	assert.Equal(t, 0.2, *nodes[1].Probability)
	assert.Equal(t, 0.4, *nodes[2].Probability)
}

func TestFaultTreeSensitivity_ClampsToUnitInterval(t *testing.T) {
	nodes, edges := twoInputTree(models.FTAGateAnd, 1.0, 0.5)

	result := AnalyzeFaultTree(nodes, edges, FTAOptions{DefaultSeverity: 3, SensitivityDelta: 0.5, SensitivityTopN: 10})

	for _, s := range result.Sensitivity {
		assert.LessOrEqual(t, s.PlusProb, 1.0)
		assert.GreaterOrEqual(t, s.MinusProb, 0.0)
	}
}

func TestFTAModel_Run(t *testing.T) {
	nodes, edges := twoInputTree(models.FTAGateOr, 0.5, 0.5)
	model := NewFTAModel(&mockFTARepository{nodes: nodes, edges: edges}, zap.NewNop())

	res := model.Run(context.Background(), RunContext{
		MissionID: testMissionID,
		Params:    Params{"default_severity": 2},
	})

	require.True(t, res.Success, res.ErrorMessage)
	data := res.Data.(*FTAResult)
	assert.Equal(t, 10, data.RiskScore)
	assert.Equal(t, models.RiskLevelHigh, data.RiskLevel)
	assert.Contains(t, res.Recommendations[0], "Loss of vehicle")
}
