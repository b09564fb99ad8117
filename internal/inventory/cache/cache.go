// Package cache holds short-TTL availability snapshots in Redis. The cache
// is never consulted for write decisions and is invalidated synchronously
// on every successful mutation.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"train-ticketing/internal/models"
)

const cachePrefix = "inventory:"

type SnapshotCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{Client: client, TTL: ttl}
}

func cacheKey(trainID, date string) string {
	return cachePrefix + trainID + ":" + date
}

// Get returns the cached snapshot if present and fresh. Any cache failure
// reports a miss; the caller falls through to the ledger.
func (c *SnapshotCache) Get(trainID, date string) (*models.AvailabilitySnapshot, bool) {
	val, err := c.Client.Get(context.Background(), cacheKey(trainID, date)).Result()
	if err != nil {
		return nil, false
	}

	var snap models.AvailabilitySnapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return nil, false
	}
	return &snap, true
}

func (c *SnapshotCache) Set(snap *models.AvailabilitySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.Client.Set(context.Background(), cacheKey(snap.TrainID, snap.DepartureDate), data, c.TTL).Err()
}

func (c *SnapshotCache) Invalidate(trainID, date string) error {
	return c.Client.Del(context.Background(), cacheKey(trainID, date)).Err()
}
