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

// RiskMatrixModelID is the registry key of the risk matrix model.
const RiskMatrixModelID = "risk_matrix"

const (
	defaultTopN = 10
	maxTopN     = 50
	// maxExamples bounds the entries quoted per recommendation section.
	maxExamples = 3
)

// RiskEventResult is one scored risk event.
type RiskEventResult struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	Likelihood  int              `json:"likelihood"`
	Severity    int              `json:"severity"`
	RiskScore   int              `json:"risk_score"`
	Level       models.RiskLevel `json:"level"`
	HazardType  string           `json:"hazard_type,omitempty"`
	Description string           `json:"desc,omitempty"`
}

// RiskMatrixResult is the payload of a risk matrix run.
type RiskMatrixResult struct {
	Events []RiskEventResult `json:"events"`
	TopN   []RiskEventResult `json:"top_n"`
	// MatrixData[L-1][S-1] counts the events in each cell.
	MatrixData [matrixMax][matrixMax]int `json:"matrix_data"`
	// MatrixEvents maps "L_S" to the ids of the events in that cell.
	MatrixEvents map[string][]int64       `json:"matrix_events"`
	TotalRisk    int                      `json:"total_risk"`
	AvgRisk      float64                  `json:"avg_risk"`
	LevelCounts  map[models.RiskLevel]int `json:"level_counts"`
}

// EvaluateRiskMatrix scores events with R = L x S and builds the matrix
// aggregates. Top-N ranks by R descending, keeping input order on ties.
func EvaluateRiskMatrix(events []*models.RiskEvent, n int) *RiskMatrixResult {
	result := &RiskMatrixResult{
		Events:       make([]RiskEventResult, 0, len(events)),
		MatrixEvents: make(map[string][]int64),
		LevelCounts:  models.NewLevelCounts(),
	}

	for _, e := range events {
		r := e.RiskScore()
		er := RiskEventResult{
			ID:          e.ID,
			Name:        e.Name,
			Likelihood:  e.Likelihood,
			Severity:    e.Severity,
			RiskScore:   r,
			Level:       MatrixLevel(r),
			HazardType:  e.HazardType,
			Description: e.Description,
		}
		result.Events = append(result.Events, er)

		l := clampInt(e.Likelihood, matrixMin, matrixMax)
		s := clampInt(e.Severity, matrixMin, matrixMax)
		result.MatrixData[l-1][s-1]++
		key := fmt.Sprintf("%d_%d", l, s)
		result.MatrixEvents[key] = append(result.MatrixEvents[key], e.ID)

		result.LevelCounts[er.Level]++
		result.TotalRisk += r
	}

	if len(result.Events) > 0 {
		result.AvgRisk = round(float64(result.TotalRisk)/float64(len(result.Events)), 2)
	}

	ranked := slices.Clone(result.Events)
	slices.SortStableFunc(ranked, func(a, b RiskEventResult) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	})
	result.TopN = topN(ranked, n)
	return result
}

// RiskMatrixRecommendations turns a risk matrix result into remediation advice.
func RiskMatrixRecommendations(result *RiskMatrixResult) []string {
	var extreme, high []RiskEventResult
	for _, e := range result.Events {
		switch e.Level {
		case models.RiskLevelExtreme:
			extreme = append(extreme, e)
		case models.RiskLevelHigh:
			high = append(high, e)
		}
	}

	recs := []string{}
	if len(extreme) > 0 {
		recs = append(recs,
			fmt.Sprintf("%d extreme risk event(s) found; take the following actions immediately:", len(extreme)),
			"  • Activate abort procedures or emergency plans",
			"  • Add redundancy and backup systems",
			"  • Strengthen operation reviews and safety checks",
			"  • Enforce hazard-area control and make sure personnel are evacuated",
		)
		for _, e := range topN(extreme, maxExamples) {
			recs = append(recs, fmt.Sprintf("    - [%s] (L=%d, S=%d, R=%d)", e.Name, e.Likelihood, e.Severity, e.RiskScore))
		}
	}
	if len(high) > 0 {
		recs = append(recs,
			fmt.Sprintf("%d high risk event(s) found; recommended actions:", len(high)),
			"  • Increase test and verification runs",
			"  • Require a second operator review",
			"  • Set up real-time monitoring and early warning",
		)
		for _, e := range topN(high, maxExamples) {
			recs = append(recs, fmt.Sprintf("    - [%s] (L=%d, S=%d, R=%d)", e.Name, e.Likelihood, e.Severity, e.RiskScore))
		}
	}
	if len(extreme) == 0 && len(high) == 0 {
		recs = append(recs,
			"No extreme or high risk events; the risk posture is good.",
			"  • Keep the current safety measures in place",
			"  • Review the risk assessment periodically",
		)
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type riskMatrixModel struct {
	baseModel
	events repositories.RiskEventRepository
}

// NewRiskMatrixModel creates the likelihood x severity scoring model.
func NewRiskMatrixModel(events repositories.RiskEventRepository, logger *zap.Logger) AnalyticalModel {
	return &riskMatrixModel{
		baseModel: newBaseModel(
			RiskMatrixModelID,
			"Risk Matrix",
			"Scores each risk event as R = L x S on a 5x5 likelihood/severity matrix.",
			CategoryRiskAssessment,
			[]ParamSpec{topNSpec("Top-N events", "Number of highest-risk events to report")},
			logger,
		),
		events: events,
	}
}

var _ AnalyticalModel = (*riskMatrixModel)(nil)

func (m *riskMatrixModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *riskMatrixModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	events, err := m.events.GetByMission(ctx, rc.MissionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load risk events: %w", err)
	}

	result := EvaluateRiskMatrix(events, rc.Params.Int("top_n", defaultTopN))
	if len(events) == 0 {
		return result, []string{}, nil
	}
	return result, RiskMatrixRecommendations(result), nil
}

func topNSpec(label, description string) ParamSpec {
	return ParamSpec{
		Name:        "top_n",
		Label:       label,
		Type:        ParamInt,
		Default:     defaultTopN,
		Min:         bound(1),
		Max:         bound(maxTopN),
		Description: description,
	}
}
