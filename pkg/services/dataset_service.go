package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/distribution"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/retry"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

// ErrNoFusionInputs is reported when none of a rule's inputs has a numeric value.
var ErrNoFusionInputs = errors.New("no numeric inputs available")

// FusionOutcome is the result of applying one fusion rule. Exactly one of
// Fused and Error is set.
type FusionOutcome struct {
	Fused *models.FusedIndicator
	Error error
}

// ApplyFusionRule combines the latest numeric values of a rule's inputs.
// Inputs without a value, or with a non-numeric one, are skipped. Unknown
// methods combine by mean; weighted_sum falls back to uniform weights when the
// rule's weights do not line up with the usable inputs.
func ApplyFusionRule(
	rule *models.FusionRule,
	indicators map[int64]*models.Indicator,
	latest map[int64]*models.IndicatorValue,
) FusionOutcome {
	inputs := make([]models.FusionInput, 0, len(rule.InputIndicatorIDs))
	for _, id := range rule.InputIndicatorIDs {
		v, ok := latest[id]
		if !ok {
			continue
		}
		x, ok := v.Float()
		if !ok {
			continue
		}
		name := ""
		if ind, ok := indicators[id]; ok {
			name = ind.Name
		}
		inputs = append(inputs, models.FusionInput{IndicatorID: id, Name: name, Value: x})
	}
	if len(inputs) == 0 {
		return FusionOutcome{Error: fmt.Errorf("fusion rule %q: %w", rule.Name, ErrNoFusionInputs)}
	}

	values := make([]float64, len(inputs))
	for i, in := range inputs {
		values[i] = in.Value
	}

	var fused float64
	switch rule.Method {
	case models.FusionWeightedSum:
		weights := rule.Weights
		if len(weights) != len(values) {
			weights = make([]float64, len(values))
			for i := range weights {
				weights[i] = 1 / float64(len(values))
			}
		}
		for i, v := range values {
			fused += weights[i] * v
		}
	case models.FusionMax:
		fused = slices.Max(values)
	case models.FusionMin:
		fused = slices.Min(values)
	default:
		for _, v := range values {
			fused += v
		}
		fused /= float64(len(values))
	}

	method := rule.Method
	if !models.IsValidFusionMethod(method) {
		method = models.FusionMean
	}
	name := rule.OutputIndicatorName
	if name == "" {
		name = rule.Name
	}

	return FusionOutcome{Fused: &models.FusedIndicator{
		IndicatorID:      -rule.ID,
		Name:             name,
		Value:            fused,
		Unit:             rule.OutputUnit,
		Method:           method,
		Inputs:           inputs,
		DistributionType: models.DistributionNormal,
		Mu:               fused,
		Sigma:            distribution.DefaultSigma(fused, distribution.DefaultSigmaRatio),
	}}
}

// DatasetService builds and serves risk datasets.
type DatasetService interface {
	// GenerateDataset characterizes every indicator that has a value for the
	// mission, applies the mission's fusion rules, and stores the result as a
	// new dataset. An empty note defaults to "generated at <time>".
	GenerateDataset(ctx context.Context, missionID int64, note string) (*models.RiskDataset, error)

	// GetLatestDataset returns the mission's newest dataset, from cache when
	// possible. Returns apperrors.ErrNotFound when none exists.
	GetLatestDataset(ctx context.Context, missionID int64) (*models.RiskDataset, error)

	// GetDatasetSummary returns the counts of a stored dataset without its body.
	GetDatasetSummary(ctx context.Context, datasetID int64) (*models.DatasetSummary, error)

	// ClassifyIndicators groups all indicators by distribution family.
	ClassifyIndicators(ctx context.Context) (map[models.DistributionType][]*models.Indicator, error)

	// DistributionStats counts all indicators per distribution family.
	DistributionStats(ctx context.Context) (map[models.DistributionType]int, error)
}

type datasetService struct {
	missions    repositories.MissionRepository
	indicators  repositories.IndicatorRepository
	fusionRules repositories.FusionRuleRepository
	datasets    repositories.RiskDatasetRepository
	cache       repositories.DatasetCache
	retryCfg    *retry.Config
	now         func() time.Time
	logger      *zap.Logger
}

// NewDatasetService creates a new dataset service. A nil cache disables caching.
func NewDatasetService(
	missions repositories.MissionRepository,
	indicators repositories.IndicatorRepository,
	fusionRules repositories.FusionRuleRepository,
	datasets repositories.RiskDatasetRepository,
	cache repositories.DatasetCache,
	logger *zap.Logger,
) DatasetService {
	if cache == nil {
		cache = repositories.NewDatasetCache(nil, 0, logger)
	}
	return &datasetService{
		missions:    missions,
		indicators:  indicators,
		fusionRules: fusionRules,
		datasets:    datasets,
		cache:       cache,
		retryCfg:    retry.DefaultConfig(),
		now:         time.Now,
		logger:      logger.Named("dataset"),
	}
}

var (
	_ DatasetService                 = (*datasetService)(nil)
	_ riskmodels.LatestDatasetSource = (*datasetService)(nil)
)

func (s *datasetService) GenerateDataset(ctx context.Context, missionID int64, note string) (*models.RiskDataset, error) {
	if _, err := s.missions.GetByID(ctx, missionID); err != nil {
		return nil, fmt.Errorf("failed to load mission %d: %w", missionID, err)
	}

	indicators, err := s.indicators.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicators: %w", err)
	}
	values, err := s.indicators.GetValuesByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicator values: %w", err)
	}
	rules, err := s.fusionRules.GetByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load fusion rules: %w", err)
	}

	createdAt := s.now().UTC()
	payload := s.buildPayload(missionID, createdAt, indicators, values, rules)
	if note == "" {
		note = "generated at " + createdAt.Format(time.RFC3339)
	}

	ds := &models.RiskDataset{
		MissionID: missionID,
		CreatedAt: createdAt,
		Note:      note,
		Payload:   payload,
	}
	err = retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		return s.datasets.Create(ctx, ds)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	if err := s.cache.Set(ctx, ds); err != nil {
		s.logger.Warn("Failed to refresh dataset cache",
			zap.Int64("mission_id", missionID),
			zap.Error(err))
		// A stale entry would hide the dataset just stored.
		if err := s.cache.Invalidate(ctx, missionID); err != nil {
			s.logger.Warn("Failed to invalidate dataset cache",
				zap.Int64("mission_id", missionID),
				zap.Error(err))
		}
	}

	s.logger.Info("Generated risk dataset",
		zap.Int64("mission_id", missionID),
		zap.Int64("dataset_id", ds.ID),
		zap.Int("indicators", payload.TotalIndicators),
		zap.Int("fused", payload.TotalFused))

	return ds, nil
}

// buildPayload assembles the dataset body from already-loaded records.
func (s *datasetService) buildPayload(
	missionID int64,
	createdAt time.Time,
	indicators []*models.Indicator,
	values []*models.IndicatorValue,
	rules []*models.FusionRule,
) models.RiskDatasetPayload {
	latest := make(map[int64]*models.IndicatorValue, len(values))
	for _, v := range values {
		latest[v.IndicatorID] = v
	}
	byID := make(map[int64]*models.Indicator, len(indicators))
	for _, ind := range indicators {
		byID[ind.ID] = ind
	}

	var totalWeight float64
	for _, ind := range indicators {
		if _, ok := latest[ind.ID]; ok {
			totalWeight += ind.Weight
		}
	}

	stats := make(map[models.DistributionType]int)
	dsIndicators := make([]models.DatasetIndicator, 0, len(latest))
	for _, ind := range indicators {
		v, ok := latest[ind.ID]
		if !ok {
			continue
		}
		x, numeric := v.Float()
		if !numeric {
			s.logger.Debug("Non-numeric indicator value recorded as 0",
				zap.Int64("indicator_id", ind.ID),
				zap.String("value", v.Value))
		}

		family := models.NormalizeDistributionType(ind.DistributionType)
		mu, sigma := distribution.MuSigma(family, ind.DistParams, x)
		weight := 1.0
		if totalWeight > 0 {
			weight = ind.Weight / totalWeight
		}

		dsIndicators = append(dsIndicators, models.DatasetIndicator{
			IndicatorID:      ind.ID,
			Name:             ind.Name,
			Value:            x,
			Unit:             ind.Unit,
			Source:           v.Source,
			DistributionType: family,
			DistParams:       ind.DistParams,
			Mu:               mu,
			Sigma:            sigma,
			Weight:           weight,
		})
		stats[family]++
	}

	fusedWeight := 1 / float64(len(rules)+1)
	fused := make([]models.FusedIndicator, 0, len(rules))
	for _, rule := range rules {
		outcome := ApplyFusionRule(rule, byID, latest)
		if outcome.Error != nil {
			s.logger.Warn("Skipping fusion rule",
				zap.Int64("rule_id", rule.ID),
				zap.Error(outcome.Error))
			continue
		}
		outcome.Fused.Weight = fusedWeight
		fused = append(fused, *outcome.Fused)
	}

	return models.RiskDatasetPayload{
		MissionID:         missionID,
		CreatedAt:         createdAt,
		Indicators:        dsIndicators,
		FusedIndicators:   fused,
		DistributionStats: stats,
		TotalIndicators:   len(dsIndicators),
		TotalFused:        len(fused),
	}
}

func (s *datasetService) GetLatestDataset(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	cached, err := s.cache.Get(ctx, missionID)
	if err != nil {
		s.logger.Warn("Dataset cache unavailable, reading from store",
			zap.Int64("mission_id", missionID),
			zap.Error(err))
	}
	if cached != nil {
		return cached, nil
	}

	ds, err := s.datasets.GetLatestByMission(ctx, missionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest dataset: %w", err)
	}

	if err := s.cache.Set(ctx, ds); err != nil {
		s.logger.Warn("Failed to cache dataset",
			zap.Int64("mission_id", missionID),
			zap.Error(err))
	}
	return ds, nil
}

func (s *datasetService) GetDatasetSummary(ctx context.Context, datasetID int64) (*models.DatasetSummary, error) {
	ds, err := s.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to get dataset %d: %w", datasetID, err)
	}

	stats := ds.Payload.DistributionStats
	if stats == nil {
		stats = map[models.DistributionType]int{}
	}
	return &models.DatasetSummary{
		ID:                ds.ID,
		MissionID:         ds.MissionID,
		CreatedAt:         ds.CreatedAt,
		Note:              ds.Note,
		TotalIndicators:   ds.Payload.TotalIndicators,
		TotalFused:        ds.Payload.TotalFused,
		DistributionStats: stats,
	}, nil
}

func (s *datasetService) ClassifyIndicators(ctx context.Context) (map[models.DistributionType][]*models.Indicator, error) {
	indicators, err := s.indicators.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicators: %w", err)
	}
	return distribution.Classify(indicators), nil
}

func (s *datasetService) DistributionStats(ctx context.Context) (map[models.DistributionType]int, error) {
	indicators, err := s.indicators.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load indicators: %w", err)
	}
	return distribution.Stats(indicators), nil
}
