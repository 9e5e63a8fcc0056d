package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/phoneshop-backend/pkg/redis"
)

const defaultLockTTL = 10 * time.Minute

// Lock coordinates exclusive cron runs across worker replicas.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock implements Lock with SETNX plus a TTL so a crashed owner cannot
// hold the lock forever.
type RedisLock struct {
	client lockStore
	key    string
	ttl    time.Duration
	owner  string
}

func NewRedisLock(client lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		l.owner = owner
	}
	return ok, nil
}

// Release deletes the key only while this instance still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.owner == "" {
		return nil
	}
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, pkgredis.ErrNil) {
			l.owner = ""
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != l.owner {
		l.owner = ""
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	l.owner = ""
	return nil
}

// LocalLock serializes runs inside one process. The worker falls back to it
// when redis is not configured, which is only safe with a single replica.
type LocalLock struct {
	held chan struct{}
}

func NewLocalLock() *LocalLock {
	return &LocalLock{held: make(chan struct{}, 1)}
}

func (l *LocalLock) Acquire(context.Context) (bool, error) {
	select {
	case l.held <- struct{}{}:
		return true, nil
	default:
		return false, nil
	}
}

func (l *LocalLock) Release(context.Context) error {
	select {
	case <-l.held:
	default:
	}
	return nil
}
