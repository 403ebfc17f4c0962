package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Service {
	t.Helper()
	bc, err := NewBadgerCache()
	require.NoError(t, err)
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	t.Cleanup(func() {
		_ = bc.Close()
		_ = mc.Close()
	})
	return map[string]Service{"badger": bc, "memory": mc}
}

func TestService_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	for name, svc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := svc.GetBytes(ctx, "missing")
			assert.ErrorIs(t, err, ErrCacheMiss)

			require.NoError(t, svc.SetBytes(ctx, "k", []byte("v1"), time.Minute))
			got, err := svc.GetBytes(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v1"), got)

			require.NoError(t, svc.Delete(ctx, "k"))
			_, err = svc.GetBytes(ctx, "k")
			assert.ErrorIs(t, err, ErrCacheMiss)
		})
	}
}

func TestService_TryLock(t *testing.T) {
	ctx := context.Background()
	for name, svc := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ok, err := svc.TryLock(ctx, "lock", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = svc.TryLock(ctx, "lock", time.Minute)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, svc.Unlock(ctx, "lock"))
			ok, err = svc.TryLock(ctx, "lock", time.Minute)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

func TestMemoryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()

	require.NoError(t, mc.SetBytes(ctx, "a", []byte("1"), 0))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.SetBytes(ctx, "b", []byte("2"), 0))
	time.Sleep(2 * time.Millisecond)
	_, err := mc.GetBytes(ctx, "a")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, mc.SetBytes(ctx, "c", []byte("3"), 0))

	_, err = mc.GetBytes(ctx, "b")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = mc.GetBytes(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	require.NoError(t, mc.SetBytes(ctx, "k", []byte("v"), 5*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	_, err := mc.GetBytes(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "ckpt:BTCUSDT:1h:basis", GenerateKeyWithParams("ckpt", "BTCUSDT", "1h", "basis"))
}
