package riskmodels

import (
	"context"
	"errors"
	"fmt"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/distribution"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// LatestDatasetSource returns the most recent dataset of a mission.
// It reports apperrors.ErrNotFound when the mission has none.
type LatestDatasetSource interface {
	GetLatestDataset(ctx context.Context, missionID int64) (*models.RiskDataset, error)
}

// InputSource identifies where composite-score inputs were read from.
type InputSource string

const (
	InputSourceDataset InputSource = "dataset"
	InputSourceLive    InputSource = "live"
	InputSourceNone    InputSource = "none"
)

// IndicatorInput is one indicator as consumed by the composite score models.
type IndicatorInput struct {
	IndicatorID      int64
	Name             string
	Value            float64
	Weight           float64
	Mu               float64
	Sigma            float64
	DistributionType models.DistributionType
	DistParams       models.DistParams
}

// indicatorLoader resolves composite-score inputs, preferring the latest
// dataset and falling back to live indicator values.
type indicatorLoader struct {
	indicators repositories.IndicatorRepository
	datasets   LatestDatasetSource
}

func (l *indicatorLoader) load(ctx context.Context, missionID int64, useDataset bool, sigmaRatio float64) ([]IndicatorInput, InputSource, error) {
	if useDataset && l.datasets != nil {
		ds, err := l.datasets.GetLatestDataset(ctx, missionID)
		switch {
		case err == nil && ds != nil:
			if inputs := InputsFromDataset(&ds.Payload); len(inputs) > 0 {
				return inputs, InputSourceDataset, nil
			}
		case err != nil && !errors.Is(err, apperrors.ErrNotFound):
			return nil, InputSourceNone, fmt.Errorf("failed to load latest dataset: %w", err)
		}
	}

	if l.indicators == nil {
		return nil, InputSourceNone, nil
	}
	indicators, err := l.indicators.GetAll(ctx)
	if err != nil {
		return nil, InputSourceNone, fmt.Errorf("failed to load indicators: %w", err)
	}
	values, err := l.indicators.GetValuesByMission(ctx, missionID)
	if err != nil {
		return nil, InputSourceNone, fmt.Errorf("failed to load indicator values: %w", err)
	}

	inputs := InputsFromValues(indicators, values, sigmaRatio)
	if len(inputs) == 0 {
		return nil, InputSourceNone, nil
	}
	return inputs, InputSourceLive, nil
}

// InputsFromDataset flattens a dataset into inputs: plain indicators first,
// then fused indicators, which are treated as normal around their moments.
// Weights are normalized to sum to 1.
func InputsFromDataset(p *models.RiskDatasetPayload) []IndicatorInput {
	inputs := make([]IndicatorInput, 0, len(p.Indicators)+len(p.FusedIndicators))
	for _, ind := range p.Indicators {
		inputs = append(inputs, IndicatorInput{
			IndicatorID:      ind.IndicatorID,
			Name:             ind.Name,
			Value:            ind.Value,
			Weight:           ind.Weight,
			Mu:               ind.Mu,
			Sigma:            ind.Sigma,
			DistributionType: models.NormalizeDistributionType(ind.DistributionType),
			DistParams:       ind.DistParams,
		})
	}
	for _, f := range p.FusedIndicators {
		inputs = append(inputs, IndicatorInput{
			IndicatorID:      f.IndicatorID,
			Name:             f.Name,
			Value:            f.Value,
			Weight:           f.Weight,
			Mu:               f.Mu,
			Sigma:            f.Sigma,
			DistributionType: models.DistributionNormal,
		})
	}
	normalizeWeights(inputs)
	return inputs
}

// InputsFromValues joins indicators with their latest numeric value for a
// mission. Indicators without a value, or whose value is not numeric, are
// skipped. Moments come from the declared family parameters when present,
// otherwise (x, max(1e-6, |x|*sigmaRatio)).
func InputsFromValues(indicators []*models.Indicator, values []*models.IndicatorValue, sigmaRatio float64) []IndicatorInput {
	latest := make(map[int64]*models.IndicatorValue, len(values))
	for _, v := range values {
		latest[v.IndicatorID] = v
	}

	inputs := make([]IndicatorInput, 0, len(indicators))
	for _, ind := range indicators {
		v, ok := latest[ind.ID]
		if !ok {
			continue
		}
		x, ok := v.Float()
		if !ok {
			continue
		}

		family := models.NormalizeDistributionType(ind.DistributionType)
		mu, sigma := x, distribution.DefaultSigma(x, sigmaRatio)
		if !ind.DistParams.IsEmpty() {
			mu, sigma = distribution.MuSigma(family, ind.DistParams, x)
		}

		inputs = append(inputs, IndicatorInput{
			IndicatorID:      ind.ID,
			Name:             ind.Name,
			Value:            x,
			Weight:           ind.Weight,
			Mu:               mu,
			Sigma:            sigma,
			DistributionType: family,
			DistParams:       ind.DistParams,
		})
	}
	normalizeWeights(inputs)
	return inputs
}

// normalizeWeights rescales weights to sum to 1, or sets them uniformly
// when the sum is not positive.
func normalizeWeights(inputs []IndicatorInput) {
	var total float64
	for _, in := range inputs {
		total += in.Weight
	}
	for i := range inputs {
		if total > 0 {
			inputs[i].Weight /= total
		} else {
			inputs[i].Weight = 1 / float64(len(inputs))
		}
	}
}
