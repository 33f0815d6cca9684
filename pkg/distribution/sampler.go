package distribution

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// Resampling weights for the discrete +/-1 perturbation of integer ratings.
const (
	nominalWeight  = 0.6
	neighborWeight = 0.2
)

// Sampler draws values from indicator distributions. A Sampler is not safe for
// concurrent use; give each goroutine its own source.
type Sampler struct {
	src rand.Source
	rng *rand.Rand
}

// NewSampler creates a Sampler reading from src.
func NewSampler(src rand.Source) *Sampler {
	return &Sampler{src: src, rng: rand.New(src)}
}

// NewSeededSampler creates a Sampler on a PCG stream identified by (seed, stream).
func NewSeededSampler(seed, stream uint64) *Sampler {
	return NewSampler(rand.NewPCG(seed, stream))
}

// Perturb resamples an integer rating around its nominal value: the nominal
// value with weight 0.6 and each neighbor inside [min, max] with weight 0.2,
// renormalized when a neighbor falls outside the domain.
func (s *Sampler) Perturb(nominal, min, max int) int {
	candidates := [3]int{nominal}
	weights := [3]float64{nominalWeight}
	n := 1
	if nominal-1 >= min {
		candidates[n], weights[n] = nominal-1, neighborWeight
		n++
	}
	if nominal+1 <= max {
		candidates[n], weights[n] = nominal+1, neighborWeight
		n++
	}

	total := floats.Sum(weights[:n])
	r := s.rng.Float64() * total
	for i := 0; i < n; i++ {
		if r < weights[i] {
			return candidates[i]
		}
		r -= weights[i]
	}
	return candidates[n-1]
}

// Sample draws one value for an indicator observed at x. Parameters missing
// from p default around x: normal uses (x, 10%), lognormal (ln x, 0.5),
// uniform and triangular span [0.8x, 1.2x], discrete collapses to x.
// Degenerate parameter sets return their location without drawing.
func (s *Sampler) Sample(t models.DistributionType, p models.DistParams, x float64) float64 {
	switch t {
	case models.DistributionNormal:
		return s.normal(valueOr(p.Mu, x), valueOr(p.Sigma, DefaultSigma(x, DefaultSigmaRatio)))

	case models.DistributionLogNormal:
		mu := valueOr(p.Mu, math.Log(math.Max(SigmaFloor, x)))
		sigma := valueOr(p.Sigma, defaultLogSigma)
		if sigma <= 0 {
			return math.Exp(mu)
		}
		return distuv.LogNormal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()

	case models.DistributionUniform:
		low, high := ordered(valueOr(p.Low, x*0.8), valueOr(p.High, x*1.2))
		if low == high {
			return low
		}
		return distuv.Uniform{Min: low, Max: high, Src: s.src}.Rand()

	case models.DistributionTriangular:
		low, high := ordered(valueOr(p.Low, x*0.8), valueOr(p.High, x*1.2))
		if low == high {
			return low
		}
		mode := math.Min(math.Max(valueOr(p.Mode, x), low), high)
		return distuv.NewTriangle(low, high, mode, s.src).Rand()

	case models.DistributionDiscrete:
		values, probs := discreteWeights(p, x)
		if len(values) == 1 {
			return values[0]
		}
		idx := int(distuv.NewCategorical(probs, s.src).Rand())
		return values[idx]

	default:
		return s.normal(x, DefaultSigma(x, DefaultSigmaRatio))
	}
}

func (s *Sampler) normal(mu, sigma float64) float64 {
	if sigma <= 0 {
		return mu
	}
	return distuv.Normal{Mu: mu, Sigma: sigma, Src: s.src}.Rand()
}

// discreteWeights accepts any non-negative weights aligned with the values,
// normalizing them; the categorical draw only needs proportional weights.
func discreteWeights(p models.DistParams, x float64) ([]float64, []float64) {
	values := p.Values
	if len(values) == 0 {
		return []float64{x}, []float64{1}
	}
	if len(p.Probs) == len(values) {
		ok := true
		for _, w := range p.Probs {
			if w < 0 {
				ok = false
				break
			}
		}
		if ok && floats.Sum(p.Probs) > 0 {
			return values, p.Probs
		}
	}
	uniform := make([]float64, len(values))
	for i := range uniform {
		uniform[i] = 1
	}
	return values, uniform
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}
