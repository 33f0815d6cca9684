package models

// RiskLevel is the four-step qualitative scale shared by every model.
type RiskLevel string

const (
	RiskLevelLow     RiskLevel = "Low"
	RiskLevelMedium  RiskLevel = "Medium"
	RiskLevelHigh    RiskLevel = "High"
	RiskLevelExtreme RiskLevel = "Extreme"
)

// ValidRiskLevels lists the levels from least to most severe.
var ValidRiskLevels = []RiskLevel{
	RiskLevelLow,
	RiskLevelMedium,
	RiskLevelHigh,
	RiskLevelExtreme,
}

// IsValidRiskLevel checks if the given level is valid.
func IsValidRiskLevel(l RiskLevel) bool {
	for _, v := range ValidRiskLevels {
		if v == l {
			return true
		}
	}
	return false
}

// IsHighOrAbove reports whether the level calls for escalated recommendations.
func (l RiskLevel) IsHighOrAbove() bool {
	return l == RiskLevelHigh || l == RiskLevelExtreme
}

// NewLevelCounts returns a counter with every level present at zero.
func NewLevelCounts() map[RiskLevel]int {
	counts := make(map[RiskLevel]int, len(ValidRiskLevels))
	for _, l := range ValidRiskLevels {
		counts[l] = 0
	}
	return counts
}
