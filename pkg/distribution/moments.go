// Package distribution characterizes indicators by statistical family: it
// derives reference moments (mu, sigma) and draws samples for Monte Carlo runs.
package distribution

import (
	"math"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

const (
	// SigmaFloor is the smallest standard deviation handed to callers.
	SigmaFloor = 1e-6

	// DefaultSigmaRatio sizes sigma relative to |x| when nothing else is known.
	DefaultSigmaRatio = 0.1

	defaultLogSigma  = 0.5
	probSumTolerance = 1e-6
)

// DefaultSigma returns max(SigmaFloor, |x| * ratio).
func DefaultSigma(x, ratio float64) float64 {
	return math.Max(SigmaFloor, math.Abs(x)*ratio)
}

// MuSigma derives the linear-space mean and standard deviation of an indicator
// observed at x, using the declared parameters of its family. Missing parameters
// default around x; unknown families are treated as categorical.
func MuSigma(t models.DistributionType, p models.DistParams, x float64) (mu, sigma float64) {
	switch t {
	case models.DistributionNormal:
		return valueOr(p.Mu, x), valueOr(p.Sigma, DefaultSigma(x, DefaultSigmaRatio))

	case models.DistributionLogNormal:
		logMu := valueOr(p.Mu, math.Log(math.Max(SigmaFloor, x)))
		logSigma := valueOr(p.Sigma, defaultLogSigma)
		mu = math.Exp(logMu + logSigma*logSigma/2)
		sigma = mu * math.Sqrt(math.Exp(logSigma*logSigma)-1)
		return mu, sigma

	case models.DistributionUniform:
		low, high := valueOr(p.Low, x-1), valueOr(p.High, x+1)
		return (low + high) / 2, math.Abs(high-low) / math.Sqrt(12)

	case models.DistributionTriangular:
		low, mode, high := valueOr(p.Low, x-1), valueOr(p.Mode, x), valueOr(p.High, x+1)
		mu = (low + mode + high) / 3
		variance := (low*low + mode*mode + high*high - low*mode - low*high - mode*high) / 18
		return mu, math.Sqrt(math.Max(0, variance))

	case models.DistributionDiscrete:
		values, probs := DiscreteSupport(p, x)
		for i, v := range values {
			mu += v * probs[i]
		}
		var variance float64
		for i, v := range values {
			variance += probs[i] * (v - mu) * (v - mu)
		}
		return mu, math.Sqrt(math.Max(0, variance))

	default:
		return x, DefaultSigma(x, DefaultSigmaRatio)
	}
}

// DiscreteSupport returns the values and probabilities of a discrete
// indicator. Probabilities that do not line up with the values, are negative,
// or do not sum to 1 are treated as absent and replaced by a uniform weighting.
func DiscreteSupport(p models.DistParams, x float64) ([]float64, []float64) {
	values := p.Values
	if len(values) == 0 {
		values = []float64{x}
	}

	if validProbs(p.Probs, len(values)) {
		return values, p.Probs
	}

	uniform := make([]float64, len(values))
	for i := range uniform {
		uniform[i] = 1.0 / float64(len(values))
	}
	return values, uniform
}

func validProbs(probs []float64, n int) bool {
	if len(probs) != n {
		return false
	}
	var sum float64
	for _, p := range probs {
		if p < 0 {
			return false
		}
		sum += p
	}
	return math.Abs(sum-1) <= probSumTolerance
}

func valueOr(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
