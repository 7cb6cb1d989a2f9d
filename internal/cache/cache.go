// Package cache caches the most recent DistributionState per run in Redis,
// so an HTTP caller can poll a long-running simulation's progress without
// waiting for it to finish.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/evacsim/evacuation-core/internal/result"
)

// DefaultTTL is how long a snapshot survives without being refreshed.
const DefaultTTL = 10 * time.Minute

// Cache wraps a Redis client dedicated to run snapshots.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// Open parses redisURL, opens a client and verifies connectivity.
func Open(redisURL string) (*Cache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("cache: connect: %w", err)
	}

	return &Cache{client: client, ttl: DefaultTTL}, nil
}

// Close releases the underlying connection.
func (c *Cache) Close() error {
	return c.client.Close()
}

func snapshotKey(runID uuid.UUID) string {
	return "evac:run:" + runID.String() + ":latest"
}

// PutSnapshot stores state as the latest known snapshot for runID.
func (c *Cache) PutSnapshot(ctx context.Context, runID uuid.UUID, state result.DistributionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("cache: marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, snapshotKey(runID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put snapshot %s: %w", runID, err)
	}
	return nil
}

// GetLatestSnapshot returns the most recently cached snapshot for runID, if
// any is still live.
func (c *Cache) GetLatestSnapshot(ctx context.Context, runID uuid.UUID) (result.DistributionState, bool, error) {
	raw, err := c.client.Get(ctx, snapshotKey(runID)).Result()
	if err == redis.Nil {
		return result.DistributionState{}, false, nil
	}
	if err != nil {
		return result.DistributionState{}, false, fmt.Errorf("cache: get snapshot %s: %w", runID, err)
	}

	var state result.DistributionState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return result.DistributionState{}, false, fmt.Errorf("cache: unmarshal snapshot %s: %w", runID, err)
	}
	return state, true, nil
}
