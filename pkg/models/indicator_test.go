package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeDistributionType(t *testing.T) {
	assert.Equal(t, DistributionLogNormal, NormalizeDistributionType("lognormal"))
	assert.Equal(t, DistributionTriangular, NormalizeDistributionType(" Triangular "))
	assert.Equal(t, DistributionNormal, NormalizeDistributionType(""))
	assert.Equal(t, DistributionNormal, NormalizeDistributionType("weibull"))
}

func TestIndicatorValue_Float(t *testing.T) {
	tests := []struct {
		value  string
		want   float64
		wantOK bool
	}{
		{" 42.5 ", 42.5, true},
		{"-3", -3, true},
		{"1e3", 1000, true},
		{"moderate", 0, false},
		{"", 0, false},
		{"NaN", 0, false},
		{"nan", 0, false},
		{"inf", 0, false},
		{"-Inf", 0, false},
		{"Infinity", 0, false},
		{"1e400", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			f, ok := (&IndicatorValue{Value: tt.value}).Float()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestDistParams_IsEmpty(t *testing.T) {
	assert.True(t, DistParams{}.IsEmpty())
	assert.False(t, DistParams{Sigma: Float64(0.2)}.IsEmpty())
	assert.False(t, DistParams{Values: []float64{1}}.IsEmpty())
}

func TestFTANode_BaseProbability(t *testing.T) {
	n := &FTANode{NodeType: FTANodeBasic}
	assert.Equal(t, DefaultBasicEventProbability, n.BaseProbability())

	n.Probability = Float64(0)
	assert.Equal(t, 0.0, n.BaseProbability())
}

func TestRiskLevel_IsHighOrAbove(t *testing.T) {
	assert.False(t, RiskLevelLow.IsHighOrAbove())
	assert.False(t, RiskLevelMedium.IsHighOrAbove())
	assert.True(t, RiskLevelHigh.IsHighOrAbove())
	assert.True(t, RiskLevelExtreme.IsHighOrAbove())

	counts := NewLevelCounts()
	assert.Len(t, counts, 4)
	assert.Equal(t, 0, counts[RiskLevelExtreme])
}
