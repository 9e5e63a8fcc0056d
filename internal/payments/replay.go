package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

// ReplayGuard caches callback results by signature so exact redeliveries are
// answered without touching the database. The database record stays the
// source of truth; the guard is an optimization.
type ReplayGuard struct {
	store redis.Store
	ttl   time.Duration
}

// NewReplayGuard builds a guard over store. A nil store yields a nil guard,
// whose methods are no-ops.
func NewReplayGuard(store redis.Store, ttl time.Duration) (*ReplayGuard, error) {
	if store == nil {
		return nil, nil
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &ReplayGuard{store: store, ttl: ttl}, nil
}

// Seen returns the cached result for signature, if any.
func (g *ReplayGuard) Seen(ctx context.Context, signature string) (*CallbackResult, bool, error) {
	if g == nil || signature == "" {
		return nil, false, nil
	}
	raw, err := g.store.Get(ctx, g.store.CallbackKey(signature))
	if errors.Is(err, redis.ErrNil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get callback replay key: %w", err)
	}
	var result CallbackResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, false, fmt.Errorf("decode cached callback result: %w", err)
	}
	return &result, true, nil
}

// Remember caches result under signature unless an entry already exists.
func (g *ReplayGuard) Remember(ctx context.Context, signature string, result CallbackResult) error {
	if g == nil || signature == "" {
		return nil
	}
	result.Duplicate = false
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode callback result: %w", err)
	}
	if _, err := g.store.SetNX(ctx, g.store.CallbackKey(signature), string(payload), g.ttl); err != nil {
		return fmt.Errorf("set callback replay key: %w", err)
	}
	return nil
}
