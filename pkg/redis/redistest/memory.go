// Package redistest provides an in-process Store for tests.
package redistest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

// MemoryStore implements redis.Store on a map. TTLs are recorded but never expire.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
	TTLs   map[string]time.Duration
	// Err, when set, is returned by every operation.
	Err error
}

var _ redis.Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values: map[string]string{},
		TTLs:   map[string]time.Duration{},
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	value, ok := m.values[key]
	if !ok {
		return "", redis.ErrNil
	}
	return value, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.values[key] = toString(value)
	m.TTLs[key] = ttl
	return nil
}

func (m *MemoryStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if _, exists := m.values[key]; exists {
		return false, nil
	}
	m.values[key] = toString(value)
	m.TTLs[key] = ttl
	return true, nil
}

func (m *MemoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	for _, key := range keys {
		delete(m.values, key)
		delete(m.TTLs, key)
	}
	return nil
}

func (m *MemoryStore) CallbackKey(signature string) string {
	return "test:payment_callback:" + strings.ToLower(signature)
}

func (m *MemoryStore) StatsKey(parts ...string) string {
	return "test:stats:" + strings.Join(parts, ":")
}

func (m *MemoryStore) IdempotencyKey(scope, key string) string {
	return "test:idempotency:" + scope + ":" + key
}

// Len reports how many keys are stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// ErrUnavailable is a convenience error for simulating an outage.
var ErrUnavailable = errors.New("redis unavailable")

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
