package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/phoneshop-backend/pkg/redis/redistest"
)

func TestRedisLockIsExclusiveUntilReleased(t *testing.T) {
	store := redistest.NewMemoryStore()
	ctx := context.Background()
	first, err := NewRedisLock(store, "ps:lock:cron-worker", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "ps:lock:cron-worker", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, time.Minute, store.TTLs["ps:lock:cron-worker"])

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	// a non-owner release must not drop the holder's key
	require.NoError(t, second.Release(ctx))
	require.Equal(t, 1, store.Len())

	require.NoError(t, first.Release(ctx))
	require.Equal(t, 0, store.Len())

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	store := redistest.NewMemoryStore()
	store.Err = redistest.ErrUnavailable
	lock, err := NewRedisLock(store, "ps:lock:cron-worker", 0)
	require.NoError(t, err)

	_, err = lock.Acquire(context.Background())
	require.ErrorIs(t, err, redistest.ErrUnavailable)
}

func TestNewRedisLockValidatesArguments(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Minute)
	require.Error(t, err)
	_, err = NewRedisLock(redistest.NewMemoryStore(), "", time.Minute)
	require.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)
	ok, _ = lock.Acquire(ctx)
	require.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	ok, _ = lock.Acquire(ctx)
	require.True(t, ok)
}
