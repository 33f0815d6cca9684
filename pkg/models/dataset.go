package models

import "time"

// RiskDataset is an immutable snapshot of a mission's characterized indicators.
// Regenerating a dataset inserts a new row; existing rows are never updated.
type RiskDataset struct {
	ID        int64              `json:"id"`
	MissionID int64              `json:"mission_id"`
	CreatedAt time.Time          `json:"created_at"`
	Note      string             `json:"note,omitempty"`
	Payload   RiskDatasetPayload `json:"payload"`
}

// RiskDatasetPayload is the typed body of a dataset. It is serialized to JSON
// only when written to or read from the store.
type RiskDatasetPayload struct {
	MissionID         int64                    `json:"mission_id"`
	CreatedAt         time.Time                `json:"created_at"`
	Indicators        []DatasetIndicator       `json:"indicators"`
	FusedIndicators   []FusedIndicator         `json:"fused_indicators"`
	DistributionStats map[DistributionType]int `json:"distribution_stats"`
	TotalIndicators   int                      `json:"total_indicators"`
	TotalFused        int                      `json:"total_fused"`
}

// DatasetIndicator is an indicator with its observed value and derived moments.
type DatasetIndicator struct {
	IndicatorID      int64            `json:"indicator_id"`
	Name             string           `json:"name"`
	Value            float64          `json:"value"`
	Unit             string           `json:"unit,omitempty"`
	Source           string           `json:"source,omitempty"`
	DistributionType DistributionType `json:"distribution_type"`
	DistParams       DistParams       `json:"dist_params"`
	Mu               float64          `json:"mu"`
	Sigma            float64          `json:"sigma"`
	Weight           float64          `json:"weight"`
}

// FusionInput records one input value consumed by a fusion rule.
type FusionInput struct {
	IndicatorID int64   `json:"id"`
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
}

// FusedIndicator is a composite indicator produced by a fusion rule.
// Its IndicatorID is the negated rule id.
type FusedIndicator struct {
	IndicatorID      int64            `json:"indicator_id"`
	Name             string           `json:"name"`
	Value            float64          `json:"value"`
	Unit             string           `json:"unit,omitempty"`
	Method           FusionMethod     `json:"method"`
	Inputs           []FusionInput    `json:"inputs"`
	DistributionType DistributionType `json:"distribution_type"`
	Mu               float64          `json:"mu"`
	Sigma            float64          `json:"sigma"`
	Weight           float64          `json:"weight"`
}

// DatasetSummary is the lightweight view of a stored dataset.
type DatasetSummary struct {
	ID                int64                    `json:"id"`
	MissionID         int64                    `json:"mission_id"`
	CreatedAt         time.Time                `json:"created_at"`
	Note              string                   `json:"note,omitempty"`
	TotalIndicators   int                      `json:"total_indicators"`
	TotalFused        int                      `json:"total_fused"`
	DistributionStats map[DistributionType]int `json:"distribution_stats"`
}
