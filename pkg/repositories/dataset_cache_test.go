package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

func TestDatasetCacheKey(t *testing.T) {
	assert.Equal(t, "risk:dataset:latest:12", DatasetCacheKey(12))
}

func TestNewDatasetCache_NilClientAlwaysMisses(t *testing.T) {
	cache := NewDatasetCache(nil, time.Minute, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, &models.RiskDataset{ID: 1, MissionID: 3}))

	got, err := cache.Get(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, cache.Invalidate(ctx, 3))
}
