package models

// FusionMethod is how a fusion rule combines its inputs.
type FusionMethod string

const (
	FusionMean        FusionMethod = "mean"
	FusionWeightedSum FusionMethod = "weighted_sum"
	FusionMax         FusionMethod = "max"
	FusionMin         FusionMethod = "min"
)

// ValidFusionMethods contains all supported fusion methods.
var ValidFusionMethods = []FusionMethod{
	FusionMean,
	FusionWeightedSum,
	FusionMax,
	FusionMin,
}

// IsValidFusionMethod checks if the given method is supported.
func IsValidFusionMethod(m FusionMethod) bool {
	for _, v := range ValidFusionMethods {
		if v == m {
			return true
		}
	}
	return false
}

// FusionRule synthesizes a composite indicator from two or more inputs.
type FusionRule struct {
	ID                  int64        `json:"id"`
	MissionID           int64        `json:"mission_id"`
	Name                string       `json:"name"`
	InputIndicatorIDs   []int64      `json:"input_indicator_ids"`
	Method              FusionMethod `json:"method"`
	WeightSource        string       `json:"weight_source,omitempty"`
	Weights             []float64    `json:"weights,omitempty"`
	OutputIndicatorName string       `json:"output_indicator_name"`
	OutputUnit          string       `json:"output_unit,omitempty"`
	Description         string       `json:"description,omitempty"`
}
