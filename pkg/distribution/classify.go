package distribution

import "github.com/ekaya-inc/ekaya-risk-engine/pkg/models"

// Classify groups indicators by distribution family. Every supported family is
// present in the result, and unknown families are filed under normal.
func Classify(indicators []*models.Indicator) map[models.DistributionType][]*models.Indicator {
	groups := make(map[models.DistributionType][]*models.Indicator, len(models.ValidDistributionTypes))
	for _, t := range models.ValidDistributionTypes {
		groups[t] = []*models.Indicator{}
	}
	for _, ind := range indicators {
		t := models.NormalizeDistributionType(ind.DistributionType)
		groups[t] = append(groups[t], ind)
	}
	return groups
}

// Stats counts indicators per family.
func Stats(indicators []*models.Indicator) map[models.DistributionType]int {
	stats := make(map[models.DistributionType]int, len(models.ValidDistributionTypes))
	for t, group := range Classify(indicators) {
		stats[t] = len(group)
	}
	return stats
}
