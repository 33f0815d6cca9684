package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
)

// DatasetCache holds the latest dataset per mission. A cache miss is not an
// error: Get returns (nil, nil) and callers fall back to the store.
type DatasetCache interface {
	Get(ctx context.Context, missionID int64) (*models.RiskDataset, error)
	Set(ctx context.Context, ds *models.RiskDataset) error
	Invalidate(ctx context.Context, missionID int64) error
}

type redisDatasetCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewDatasetCache creates a Redis-backed DatasetCache.
// A nil client yields a cache that always misses.
func NewDatasetCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) DatasetCache {
	if client == nil {
		return noopDatasetCache{}
	}
	return &redisDatasetCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("dataset-cache"),
	}
}

var (
	_ DatasetCache = (*redisDatasetCache)(nil)
	_ DatasetCache = noopDatasetCache{}
)

// DatasetCacheKey returns the Redis key of a mission's latest dataset.
func DatasetCacheKey(missionID int64) string {
	return fmt.Sprintf("risk:dataset:latest:%d", missionID)
}

func (c *redisDatasetCache) Get(ctx context.Context, missionID int64) (*models.RiskDataset, error) {
	raw, err := c.client.Get(ctx, DatasetCacheKey(missionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached dataset: %w", err)
	}

	var ds models.RiskDataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		// Stale or foreign entry; drop it and report a miss.
		c.logger.Warn("Discarding undecodable cached dataset",
			zap.Int64("mission_id", missionID),
			zap.Error(err))
		_ = c.client.Del(ctx, DatasetCacheKey(missionID)).Err()
		return nil, nil
	}
	return &ds, nil
}

func (c *redisDatasetCache) Set(ctx context.Context, ds *models.RiskDataset) error {
	raw, err := json.Marshal(ds)
	if err != nil {
		return fmt.Errorf("failed to encode dataset for cache: %w", err)
	}
	if err := c.client.Set(ctx, DatasetCacheKey(ds.MissionID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache dataset: %w", err)
	}
	return nil
}

func (c *redisDatasetCache) Invalidate(ctx context.Context, missionID int64) error {
	if err := c.client.Del(ctx, DatasetCacheKey(missionID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached dataset: %w", err)
	}
	return nil
}

type noopDatasetCache struct{}

func (noopDatasetCache) Get(context.Context, int64) (*models.RiskDataset, error) { return nil, nil }
func (noopDatasetCache) Set(context.Context, *models.RiskDataset) error          { return nil }
func (noopDatasetCache) Invalidate(context.Context, int64) error                 { return nil }
