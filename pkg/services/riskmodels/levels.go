package riskmodels

import (
	"math"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// Rating domains.
const (
	matrixMin = 1
	matrixMax = 5
	fmeaMin   = 1
	fmeaMax   = 10
)

// High-risk thresholds shared by the deterministic and Monte Carlo models.
const (
	matrixHighThreshold = 10
	fmeaHighThreshold   = 300
	ahpHighThreshold    = 0.5
	ahpExtremeThreshold = 0.75
)

// MatrixLevel buckets a risk score R = L x S: <=4 Low, <=9 Medium, <=16 High.
func MatrixLevel(r int) models.RiskLevel {
	switch {
	case r <= 4:
		return models.RiskLevelLow
	case r <= 9:
		return models.RiskLevelMedium
	case r <= 16:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelExtreme
	}
}

// RPNLevel buckets a risk priority number: <=100 Low, <=300 Medium, <=600 High.
func RPNLevel(rpn int) models.RiskLevel {
	switch {
	case rpn <= 100:
		return models.RiskLevelLow
	case rpn <= 300:
		return models.RiskLevelMedium
	case rpn <= 600:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelExtreme
	}
}

// ScoreLevel buckets a composite 0-1 score: <0.25 Low, <0.5 Medium, <0.75 High.
func ScoreLevel(score float64) models.RiskLevel {
	switch {
	case score < 0.25:
		return models.RiskLevelLow
	case score < ahpHighThreshold:
		return models.RiskLevelMedium
	case score < ahpExtremeThreshold:
		return models.RiskLevelHigh
	default:
		return models.RiskLevelExtreme
	}
}

// LikelihoodFromProbability maps a top-event probability onto the 1-5
// likelihood scale, one decade per step from 1e-5 upward.
func LikelihoodFromProbability(p float64) int {
	switch {
	case p < 1e-5:
		return 1
	case p < 1e-4:
		return 2
	case p < 1e-3:
		return 3
	case p < 1e-2:
		return 4
	default:
		return 5
	}
}

func round(x float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func topN[T any](items []T, n int) []T {
	if n < 0 {
		n = 0
	}
	if n > len(items) {
		n = len(items)
	}
	return items[:n]
}
