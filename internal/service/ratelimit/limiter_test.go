package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_BurstPerKey(t *testing.T) {
	l := New(1, 2)
	assert.True(t, l.Allow("fapi.binance.com"))
	assert.True(t, l.Allow("fapi.binance.com"))
	assert.False(t, l.Allow("fapi.binance.com"))
	assert.True(t, l.Allow("other.host"))
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	l := New(0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "h"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "h"))
}
