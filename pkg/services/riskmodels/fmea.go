package riskmodels

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// FMEAModelID is the registry key of the FMEA model.
const FMEAModelID = "fmea"

// Occurrence or detection ratings at or above this get targeted advice.
const fmeaActionableRating = 7

// FMEAItemResult is one scored failure mode.
type FMEAItemResult struct {
	ID          int64            `json:"id"`
	System      string           `json:"system"`
	FailureMode string           `json:"failure_mode"`
	Effect      string           `json:"effect,omitempty"`
	Cause       string           `json:"cause,omitempty"`
	Control     string           `json:"control,omitempty"`
	Severity    int              `json:"S"`
	Occurrence  int              `json:"O"`
	Detection   int              `json:"D"`
	RPN         int              `json:"RPN"`
	Level       models.RiskLevel `json:"level"`
}

// FMEAResult is the payload of an FMEA run.
type FMEAResult struct {
	Items       []FMEAItemResult         `json:"items"`
	TopN        []FMEAItemResult         `json:"top_n"`
	TotalRPN    int                      `json:"total_rpn"`
	AvgRPN      float64                  `json:"avg_rpn"`
	LevelCounts map[models.RiskLevel]int `json:"level_counts"`
}

// EvaluateFMEA scores items with RPN = S x O x D. Top-N ranks by RPN
// descending, keeping input order on ties.
func EvaluateFMEA(items []*models.FMEAItem, n int) *FMEAResult {
	result := &FMEAResult{
		Items:       make([]FMEAItemResult, 0, len(items)),
		LevelCounts: models.NewLevelCounts(),
	}

	for _, it := range items {
		rpn := it.RPN()
		ir := FMEAItemResult{
			ID:          it.ID,
			System:      it.System,
			FailureMode: it.FailureMode,
			Effect:      it.Effect,
			Cause:       it.Cause,
			Control:     it.Control,
			Severity:    it.Severity,
			Occurrence:  it.Occurrence,
			Detection:   it.Detection,
			RPN:         rpn,
			Level:       RPNLevel(rpn),
		}
		result.Items = append(result.Items, ir)
		result.LevelCounts[ir.Level]++
		result.TotalRPN += rpn
	}

	if len(result.Items) > 0 {
		result.AvgRPN = round(float64(result.TotalRPN)/float64(len(result.Items)), 2)
	}

	ranked := slices.Clone(result.Items)
	slices.SortStableFunc(ranked, func(a, b FMEAItemResult) int {
		return cmp.Compare(b.RPN, a.RPN)
	})
	result.TopN = topN(ranked, n)
	return result
}

// FMEARecommendations turns an FMEA result into remediation advice.
func FMEARecommendations(result *FMEAResult) []string {
	var extreme, high []FMEAItemResult
	for _, it := range result.Items {
		switch it.Level {
		case models.RiskLevelExtreme:
			extreme = append(extreme, it)
		case models.RiskLevelHigh:
			high = append(high, it)
		}
	}

	example := func(it FMEAItemResult) string {
		return fmt.Sprintf("    - [%s] (%s) RPN=%d (S=%d, O=%d, D=%d)",
			it.FailureMode, it.System, it.RPN, it.Severity, it.Occurrence, it.Detection)
	}

	recs := []string{}
	if len(extreme) > 0 {
		recs = append(recs,
			fmt.Sprintf("%d extreme RPN item(s) (RPN>600) need urgent treatment:", len(extreme)),
			"  • Evaluate whether a design change is required",
			"  • Add redundant detection to lower D",
			"  • Tighten process control to lower O",
		)
		for _, it := range topN(extreme, maxExamples) {
			recs = append(recs, example(it))
		}
	}
	if len(high) > 0 {
		recs = append(recs,
			fmt.Sprintf("%d high RPN item(s) (RPN 301-600) should be improved:", len(high)),
			"  • Assess adding inspection steps",
			"  • Consider preventive maintenance",
			"  • Strengthen operator training",
		)
		for _, it := range topN(high, maxExamples) {
			recs = append(recs, example(it))
		}
	}

	var highO, highD []FMEAItemResult
	for _, it := range result.TopN {
		if it.Occurrence >= fmeaActionableRating {
			highO = append(highO, it)
		}
		if it.Detection >= fmeaActionableRating {
			highD = append(highD, it)
		}
	}
	if len(highO) > 0 {
		recs = append(recs, "These items occur often (high O); reduce them through process improvement:")
		for _, it := range topN(highO, 2) {
			recs = append(recs, fmt.Sprintf("    - %s: O=%d", it.FailureMode, it.Occurrence))
		}
	}
	if len(highD) > 0 {
		recs = append(recs, "These items are hard to detect (high D); add detection means:")
		for _, it := range topN(highD, 2) {
			recs = append(recs, fmt.Sprintf("    - %s: D=%d", it.FailureMode, it.Detection))
		}
	}

	if len(extreme) == 0 && len(high) == 0 {
		recs = append(recs,
			"FMEA status is good: no extreme or high RPN items.",
			"  • Review and update the FMEA periodically",
		)
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type fmeaModel struct {
	baseModel
	items repositories.FMEARepository
}

// NewFMEAModel creates the failure mode and effects analysis model.
func NewFMEAModel(items repositories.FMEARepository, logger *zap.Logger) AnalyticalModel {
	return &fmeaModel{
		baseModel: newBaseModel(
			FMEAModelID,
			"FMEA",
			"Ranks failure modes by risk priority number RPN = S x O x D.",
			CategoryRiskAssessment,
			[]ParamSpec{topNSpec("Top-N items", "Number of highest-RPN items to report")},
			logger,
		),
		items: items,
	}
}

var _ AnalyticalModel = (*fmeaModel)(nil)

func (m *fmeaModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *fmeaModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	items, err := m.items.GetByMission(ctx, rc.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load FMEA items: %w", err)
	}

	result := EvaluateFMEA(items, rc.Params.Int("top_n", defaultTopN))
	if len(items) == 0 {
		return result, []string{}, nil
	}
	return result, FMEARecommendations(result), nil
}
