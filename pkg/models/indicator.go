package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// ============================================================================
// Distribution Types
// ============================================================================

// DistributionType names the statistical family an indicator is drawn from.
type DistributionType string

const (
	DistributionNormal      DistributionType = "normal"
	DistributionLogNormal   DistributionType = "lognormal"
	DistributionUniform     DistributionType = "uniform"
	DistributionTriangular  DistributionType = "triangular"
	DistributionDiscrete    DistributionType = "discrete"
	DistributionCategorical DistributionType = "categorical"
)

// ValidDistributionTypes contains all supported families.
var ValidDistributionTypes = []DistributionType{
	DistributionNormal,
	DistributionLogNormal,
	DistributionUniform,
	DistributionTriangular,
	DistributionDiscrete,
	DistributionCategorical,
}

// IsValidDistributionType checks if the given family is supported.
func IsValidDistributionType(t DistributionType) bool {
	for _, v := range ValidDistributionTypes {
		if v == t {
			return true
		}
	}
	return false
}

// NormalizeDistributionType maps empty or unknown families to normal.
func NormalizeDistributionType(t DistributionType) DistributionType {
	t = DistributionType(strings.ToLower(strings.TrimSpace(string(t))))
	if !IsValidDistributionType(t) {
		return DistributionNormal
	}
	return t
}

// DistParams holds the family-specific parameters of an indicator.
// Nil fields are absent and fall back to defaults derived from the observed value.
type DistParams struct {
	Mu     *float64  `json:"mu,omitempty"`
	Sigma  *float64  `json:"sigma,omitempty"`
	Low    *float64  `json:"low,omitempty"`
	Mode   *float64  `json:"mode,omitempty"`
	High   *float64  `json:"high,omitempty"`
	Values []float64 `json:"values,omitempty"`
	Probs  []float64 `json:"probs,omitempty"`
}

// IsEmpty reports whether no parameter was declared.
func (p DistParams) IsEmpty() bool {
	return p.Mu == nil && p.Sigma == nil && p.Low == nil && p.Mode == nil &&
		p.High == nil && len(p.Values) == 0 && len(p.Probs) == 0
}

// Float64 returns a pointer to v, for building DistParams literals.
func Float64(v float64) *float64 {
	return &v
}

// ============================================================================
// Indicators
// ============================================================================

// DefaultIndicatorWeight is applied to indicators created without a weight.
const DefaultIndicatorWeight = 1.0

// Indicator is a measurable risk factor. Indicators are shared across missions;
// their observed values are mission-scoped IndicatorValue rows.
type Indicator struct {
	ID               int64            `json:"id"`
	CategoryID       *int64           `json:"category_id,omitempty"`
	Name             string           `json:"name"`
	Unit             string           `json:"unit,omitempty"`
	ValueType        string           `json:"value_type,omitempty"`
	DistributionType DistributionType `json:"distribution_type"`
	DistParams       DistParams       `json:"dist_params"`
	Weight           float64          `json:"weight"`
}

// IndicatorValue is the observed value of an indicator for one mission.
type IndicatorValue struct {
	ID          int64     `json:"id"`
	MissionID   int64     `json:"mission_id"`
	IndicatorID int64     `json:"indicator_id"`
	Value       string    `json:"value"`
	Source      string    `json:"source,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Float parses the value as a finite number. NaN and infinities are not numeric.
func (v *IndicatorValue) Float() (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
