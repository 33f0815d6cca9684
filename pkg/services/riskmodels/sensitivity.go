package riskmodels

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// SensitivityModelID is the registry key of the one-at-a-time sensitivity model.
const SensitivityModelID = "sensitivity"

// Analysis targets of the sensitivity model.
const (
	AnalysisRiskMatrix = "risk_matrix"
	AnalysisFMEA       = "fmea"
)

const factorNameRunes = 15

// SensitivityFactor is the effect of perturbing one rating by +/-1.
type SensitivityFactor struct {
	FactorName  string  `json:"factor_name"`
	BaseValue   float64 `json:"base_value"`
	MinusValue  float64 `json:"minus_value"`
	PlusValue   float64 `json:"plus_value"`
	ImpactScore float64 `json:"impact_score"`
	EntityID    int64   `json:"event_id"`
	ParamType   string  `json:"param_type"`
}

// SensitivityResult is the payload of a sensitivity run.
type SensitivityResult struct {
	ModelType       string              `json:"model_type"`
	GlobalIndicator string              `json:"global_indicator"`
	BaseGlobalValue float64             `json:"base_global_value"`
	Factors         []SensitivityFactor `json:"factors"`
	TopN            []SensitivityFactor `json:"top_n"`
}

// oatFactor perturbs one term of a sum. term(v) is the entity's contribution
// when the rating is v; the other terms are held fixed.
func oatFactor(name, param string, id int64, baseTotal, nominal, lo, hi int, term func(int) int) SensitivityFactor {
	baseTerm := term(nominal)
	minus := baseTotal - baseTerm + term(max(lo, nominal-1))
	plus := baseTotal - baseTerm + term(min(hi, nominal+1))
	impact := math.Max(math.Abs(float64(minus-baseTotal)), math.Abs(float64(plus-baseTotal)))
	return SensitivityFactor{
		FactorName:  name,
		BaseValue:   float64(baseTotal),
		MinusValue:  float64(minus),
		PlusValue:   float64(plus),
		ImpactScore: impact,
		EntityID:    id,
		ParamType:   param,
	}
}

// RiskMatrixSensitivity perturbs L and S of every event within [1,5] and
// measures the change in total risk.
func RiskMatrixSensitivity(events []*models.RiskEvent, n int) *SensitivityResult {
	base := 0
	for _, e := range events {
		base += e.RiskScore()
	}

	factors := make([]SensitivityFactor, 0, 2*len(events))
	for _, e := range events {
		factors = append(factors,
			oatFactor(e.Name+"_L", "L", e.ID, base, e.Likelihood, matrixMin, matrixMax,
				func(l int) int { return l * e.Severity }),
			oatFactor(e.Name+"_S", "S", e.ID, base, e.Severity, matrixMin, matrixMax,
				func(s int) int { return e.Likelihood * s }),
		)
	}

	return newSensitivityResult(AnalysisRiskMatrix, "Total Risk", base, factors, n)
}

// FMEASensitivity perturbs O and D of every item within [1,10] and measures
// the change in total RPN. Severity is a property of the effect, not
// something remediation can move, so it is left out.
func FMEASensitivity(items []*models.FMEAItem, n int) *SensitivityResult {
	base := 0
	for _, it := range items {
		base += it.RPN()
	}

	factors := make([]SensitivityFactor, 0, 2*len(items))
	for _, it := range items {
		prefix := truncateRunes(it.FailureMode, factorNameRunes)
		factors = append(factors,
			oatFactor(prefix+"_O", "O", it.ID, base, it.Occurrence, fmeaMin, fmeaMax,
				func(o int) int { return it.Severity * o * it.Detection }),
			oatFactor(prefix+"_D", "D", it.ID, base, it.Detection, fmeaMin, fmeaMax,
				func(d int) int { return it.Severity * it.Occurrence * d }),
		)
	}

	return newSensitivityResult(AnalysisFMEA, "Total RPN", base, factors, n)
}

func newSensitivityResult(modelType, indicator string, base int, factors []SensitivityFactor, n int) *SensitivityResult {
	ranked := slices.Clone(factors)
	slices.SortStableFunc(ranked, func(a, b SensitivityFactor) int {
		return cmp.Compare(b.ImpactScore, a.ImpactScore)
	})
	return &SensitivityResult{
		ModelType:       modelType,
		GlobalIndicator: indicator,
		BaseGlobalValue: float64(base),
		Factors:         factors,
		TopN:            topN(ranked, n),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SensitivityRecommendations names the most influential factors.
func SensitivityRecommendations(result *SensitivityResult) []string {
	recs := []string{}
	if len(result.TopN) == 0 || result.TopN[0].ImpactScore == 0 {
		return recs
	}
	recs = append(recs, fmt.Sprintf("%s is most sensitive to the following parameters; prioritize them for mitigation:",
		result.GlobalIndicator))
	for _, f := range topN(result.TopN, maxExamples) {
		recs = append(recs, fmt.Sprintf("    - %s: impact %.0f (range %.0f to %.0f)",
			f.FactorName, f.ImpactScore, f.MinusValue, f.PlusValue))
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type sensitivityModel struct {
	baseModel
	events repositories.RiskEventRepository
	items  repositories.FMEARepository
}

// NewSensitivityModel creates the one-at-a-time sensitivity model.
func NewSensitivityModel(events repositories.RiskEventRepository, items repositories.FMEARepository, logger *zap.Logger) AnalyticalModel {
	return &sensitivityModel{
		baseModel: newBaseModel(
			SensitivityModelID,
			"Sensitivity Analysis (OAT)",
			"Perturbs each rating by +/-1 while holding the rest fixed and ranks parameters by their effect on the total.",
			CategoryUncertaintyAnalysis,
			[]ParamSpec{
				topNSpec("Top-N factors", "Number of most sensitive factors to report"),
				{
					Name:        "analysis_type",
					Label:       "Analysis type",
					Type:        ParamEnum,
					Default:     AnalysisRiskMatrix,
					EnumValues:  []string{AnalysisRiskMatrix, AnalysisFMEA},
					Description: "Which deterministic model to perturb",
				},
			},
			logger,
		),
		events: events,
		items:  items,
	}
}

var _ AnalyticalModel = (*sensitivityModel)(nil)

func (m *sensitivityModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *sensitivityModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	n := rc.Params.Int("top_n", defaultTopN)

	var result *SensitivityResult
	switch analysis := rc.Params.String("analysis_type", AnalysisRiskMatrix); analysis {
	case AnalysisRiskMatrix:
		events, err := m.events.GetByMission(ctx, rc.MissionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load risk events: %w", err)
		}
		result = RiskMatrixSensitivity(events, n)
	case AnalysisFMEA:
		items, err := m.items.GetByMission(ctx, rc.MissionID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load FMEA items: %w", err)
		}
		result = FMEASensitivity(items, n)
	default:
		return nil, nil, fmt.Errorf("unsupported analysis type %q", analysis)
	}

	return result, SensitivityRecommendations(result), nil
}
