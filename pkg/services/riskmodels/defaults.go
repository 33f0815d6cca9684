package riskmodels

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/repositories"
)

// Dependencies are the record sources the built-in models read from.
type Dependencies struct {
	Events     repositories.RiskEventRepository
	FMEA       repositories.FMEARepository
	FTA        repositories.FTARepository
	Indicators repositories.IndicatorRepository
	Datasets   LatestDatasetSource
	MonteCarlo MonteCarloConfig
}

// NewDefaultRegistry builds a registry holding every built-in model, in
// catalog order.
func NewDefaultRegistry(deps Dependencies, logger *zap.Logger) *Registry {
	logger = logger.Named("riskmodels")

	r := NewRegistry()
	r.MustRegister(NewRiskMatrixModel(deps.Events, logger))
	r.MustRegister(NewFMEAModel(deps.FMEA, logger))
	r.MustRegister(NewSensitivityModel(deps.Events, deps.FMEA, logger))
	r.MustRegister(NewFTAModel(deps.FTA, logger))
	r.MustRegister(NewAHPModel(deps.Indicators, deps.Datasets, logger))
	r.MustRegister(NewMonteCarloModel(deps.Events, deps.FMEA, deps.Indicators, deps.Datasets, deps.MonteCarlo, logger))
	return r
}
