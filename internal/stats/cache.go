package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

// dashboardCache keeps rendered dashboards for a short TTL. A nil cache or a
// zero TTL disables caching.
type dashboardCache struct {
	store redis.Store
	ttl   time.Duration
}

func newDashboardCache(store redis.Store, ttl time.Duration) *dashboardCache {
	if store == nil || ttl <= 0 {
		return nil
	}
	return &dashboardCache{store: store, ttl: ttl}
}

func (c *dashboardCache) key(parts ...string) string {
	return c.store.StatsKey(parts...)
}

func (c *dashboardCache) get(ctx context.Context, key string) (*Dashboard, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	raw, err := c.store.Get(ctx, key)
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get stats cache: %w", err)
	}
	var out Dashboard
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, false, fmt.Errorf("decode stats cache: %w", err)
	}
	return &out, true, nil
}

func (c *dashboardCache) put(ctx context.Context, key string, dashboard *Dashboard) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(dashboard)
	if err != nil {
		return fmt.Errorf("encode stats cache: %w", err)
	}
	if err := c.store.Set(ctx, key, string(payload), c.ttl); err != nil {
		return fmt.Errorf("set stats cache: %w", err)
	}
	return nil
}
