package riskmodels

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/distribution"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// AHPModelID is the registry key of the improved AHP model.
const AHPModelID = "ahp_improved"

// RiskDirection selects how an indicator's deviation maps onto risk.
type RiskDirection string

const (
	// HigherWorse scores sigmoid(z): values above the reference are risky.
	HigherWorse RiskDirection = "higher_worse"
	// LowerWorse scores sigmoid(-z): values below the reference are risky.
	LowerWorse RiskDirection = "lower_worse"
	// DirectionAuto scores sigmoid(|z|): any deviation is risky.
	DirectionAuto RiskDirection = "auto"
)

const (
	// minSigma is the threshold below which sigma is replaced by distribution.SigmaFloor.
	minSigma = 1e-10
	// ahpRecommendedIndicators bounds the contributors quoted in recommendations.
	ahpRecommendedIndicators = 5
)

// AHPIndicatorResult is the per-indicator breakdown of a composite score.
type AHPIndicatorResult struct {
	IndicatorID      int64   `json:"indicator_id"`
	IndicatorName    string  `json:"indicator_name"`
	RawValue         float64 `json:"raw_value"`
	NormalizedValue  float64 `json:"normalized_value"`
	OriginalWeight   float64 `json:"original_weight"`
	CorrectionFactor float64 `json:"correction_factor"`
	CorrectedWeight  float64 `json:"corrected_weight"`
	Contribution     float64 `json:"contribution"`
	ZScore           float64 `json:"z_score"`
	Mu               float64 `json:"mu"`
	Sigma            float64 `json:"sigma"`
}

// AHPResult is the payload of an improved AHP run.
type AHPResult struct {
	MissionID        int64                `json:"mission_id"`
	InputSource      InputSource          `json:"input_source"`
	TotalScore       float64              `json:"total_score"`
	RiskLevel        models.RiskLevel     `json:"risk_level"`
	WeightSumCheck   float64              `json:"weight_sum_check"`
	IndicatorResults []AHPIndicatorResult `json:"indicator_results"`
	TopContributors  []AHPIndicatorResult `json:"top_contributors"`
}

// ahpTerm holds the unrounded quantities of one indicator.
type ahpTerm struct {
	sigma        float64
	z            float64
	correction   float64
	weight       float64
	risk         float64
	contribution float64
}

// weighIndicators applies the density weight correction: each weight is
// scaled by the normal density of the observed value under the indicator's
// reference distribution and renormalized, falling back to 1/n when every
// density vanishes.
func weighIndicators(inputs []IndicatorInput, dir RiskDirection) ([]ahpTerm, float64) {
	terms := make([]ahpTerm, len(inputs))
	var correctionSum float64
	for i, in := range inputs {
		sigma := in.Sigma
		if sigma < minSigma {
			sigma = distribution.SigmaFloor
		}
		z := (in.Value - in.Mu) / sigma
		c := distuv.Normal{Mu: in.Mu, Sigma: sigma}.Prob(in.Value)
		terms[i] = ahpTerm{sigma: sigma, z: z, correction: c}
		correctionSum += in.Weight * c
	}

	var score float64
	for i, in := range inputs {
		t := &terms[i]
		if correctionSum > 0 {
			t.weight = in.Weight * t.correction / correctionSum
		} else {
			t.weight = 1 / float64(len(inputs))
		}
		t.risk = directedRisk(t.z, dir)
		t.contribution = t.weight * t.risk
		score += t.contribution
	}
	return terms, score
}

func directedRisk(z float64, dir RiskDirection) float64 {
	switch dir {
	case LowerWorse:
		return sigmoid(-z)
	case DirectionAuto:
		return sigmoid(math.Abs(z))
	default:
		return sigmoid(z)
	}
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// CompositeScore returns the density-corrected composite score of inputs.
func CompositeScore(inputs []IndicatorInput, dir RiskDirection) float64 {
	if len(inputs) == 0 {
		return 0
	}
	_, score := weighIndicators(inputs, dir)
	return score
}

// EvaluateAHP scores inputs and builds the per-indicator breakdown.
// Top contributors rank by contribution descending, keeping input order on ties.
func EvaluateAHP(missionID int64, inputs []IndicatorInput, dir RiskDirection, n int) *AHPResult {
	result := &AHPResult{
		MissionID:        missionID,
		InputSource:      InputSourceNone,
		RiskLevel:        models.RiskLevelLow,
		IndicatorResults: []AHPIndicatorResult{},
		TopContributors:  []AHPIndicatorResult{},
	}
	if len(inputs) == 0 {
		return result
	}

	terms, score := weighIndicators(inputs, dir)
	var weightSum float64
	for i, in := range inputs {
		t := terms[i]
		ir := AHPIndicatorResult{
			IndicatorID:      in.IndicatorID,
			IndicatorName:    in.Name,
			RawValue:         in.Value,
			NormalizedValue:  round(t.risk, 4),
			OriginalWeight:   round(in.Weight, 4),
			CorrectionFactor: round(t.correction, 6),
			CorrectedWeight:  round(t.weight, 4),
			Contribution:     round(t.contribution, 4),
			ZScore:           round(t.z, 4),
			Mu:               round(in.Mu, 4),
			Sigma:            round(t.sigma, 4),
		}
		weightSum += ir.CorrectedWeight
		result.IndicatorResults = append(result.IndicatorResults, ir)
	}

	result.TotalScore = round(score, 4)
	result.RiskLevel = ScoreLevel(score)
	result.WeightSumCheck = round(weightSum, 4)

	ranked := slices.Clone(result.IndicatorResults)
	slices.SortStableFunc(ranked, func(a, b AHPIndicatorResult) int {
		return cmp.Compare(b.Contribution, a.Contribution)
	})
	result.TopContributors = topN(ranked, n)
	return result
}

// AHPRecommendations summarizes the composite score and its top contributors.
func AHPRecommendations(result *AHPResult) []string {
	escalate := result.RiskLevel.IsHighOrAbove()

	var recs []string
	if escalate {
		recs = append(recs, fmt.Sprintf(
			"Improved AHP evaluation rates the mission %s with a composite score of %.2f; focus on these indicators:",
			result.RiskLevel, result.TotalScore))
	} else {
		recs = append(recs, fmt.Sprintf(
			"Improved AHP evaluation rates the mission %s with a composite score of %.2f; acceptable for now, but keep watching:",
			result.RiskLevel, result.TotalScore))
	}

	for i, c := range topN(result.TopContributors, ahpRecommendedIndicators) {
		recs = append(recs, fmt.Sprintf("    %d. [%s] weight=%.2f, contribution=%.2f",
			i+1, c.IndicatorName, c.CorrectedWeight, c.Contribution))
	}

	if escalate {
		recs = append(recs,
			"Recommended actions:",
			"  • Prioritize management, process and monitoring improvements for the top contributors",
			"  • Reduce the risk value or uncertainty of the key indicators",
			"  • Add preventive controls",
		)
	}
	return recs
}

// ============================================================================
// Model
// ============================================================================

type ahpModel struct {
	baseModel
	loader indicatorLoader
}

// NewAHPModel creates the improved AHP composite scoring model.
func NewAHPModel(indicators repositories.IndicatorRepository, datasets LatestDatasetSource, logger *zap.Logger) AnalyticalModel {
	return &ahpModel{
		baseModel: newBaseModel(
			AHPModelID,
			"Improved AHP",
			"Combines weighted indicators into a 0-1 composite score, correcting weights by the normal density of each indicator's deviation.",
			CategoryComprehensiveEvaluation,
			[]ParamSpec{
				{
					Name:        "use_dataset",
					Label:       "Use risk dataset",
					Type:        ParamBool,
					Default:     true,
					Description: "Read inputs from the latest risk dataset, falling back to live indicator values",
				},
				{
					Name:        "default_sigma_ratio",
					Label:       "Default sigma ratio",
					Type:        ParamFloat,
					Default:     distribution.DefaultSigmaRatio,
					Min:         bound(0.01),
					Max:         bound(1),
					Description: "Sigma as a fraction of |x| for live indicators without distribution parameters",
				},
				topNSpec("Top-N indicators", "Number of top contributing indicators to report"),
				{
					Name:        "risk_direction",
					Label:       "Risk direction",
					Type:        ParamEnum,
					Default:     string(HigherWorse),
					EnumValues:  []string{string(HigherWorse), string(LowerWorse), string(DirectionAuto)},
					Description: "Whether high values, low values, or any deviation indicate risk",
				},
			},
			logger,
		),
		loader: indicatorLoader{indicators: indicators, datasets: datasets},
	}
}

var _ AnalyticalModel = (*ahpModel)(nil)

func (m *ahpModel) Run(ctx context.Context, rc RunContext) *ModelResult {
	return m.execute(ctx, rc, m.compute)
}

func (m *ahpModel) compute(ctx context.Context, rc RunContext) (any, []string, error) {
	inputs, source, err := m.loader.load(ctx, rc.MissionID,
		rc.Params.Bool("use_dataset", true),
		rc.Params.Float("default_sigma_ratio", distribution.DefaultSigmaRatio))
	if err != nil {
		return nil, nil, err
	}

	dir := RiskDirection(rc.Params.String("risk_direction", string(HigherWorse)))
	result := EvaluateAHP(rc.MissionID, inputs, dir, rc.Params.Int("top_n", defaultTopN))
	result.InputSource = source
	return result, AHPRecommendations(result), nil
}
