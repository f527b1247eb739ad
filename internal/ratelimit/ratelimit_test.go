package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventmanager/internal/clock"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestSlidingWindow(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(epoch)
	l := NewSlidingWindow(3, 10*time.Second, 10, c)

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 3, d.Limit)
	assert.Equal(t, 10*time.Second, d.ResetAfter)

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "keys are independent")

	c.Advance(10 * time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestSlidingWindow_PartialExpiry(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(epoch)
	l := NewSlidingWindow(2, 10*time.Second, 10, c)

	_, _ = l.Allow(ctx, "k")
	c.Advance(5 * time.Second)
	_, _ = l.Allow(ctx, "k")

	d, _ := l.Allow(ctx, "k")
	require.False(t, d.Allowed)
	assert.Equal(t, 5*time.Second, d.ResetAfter)

	c.Advance(5 * time.Second)
	d, _ = l.Allow(ctx, "k")
	assert.True(t, d.Allowed, "first request aged out")
}

func TestTokenBucket(t *testing.T) {
	ctx := context.Background()
	c := clock.NewFixed(epoch)
	l := NewTokenBucket(1, 2, c)

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "k")
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}

	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Second, d.ResetAfter)

	c.Advance(time.Second)
	d, err = l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSlidingLog(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	c := clock.NewFixed(epoch)
	l := NewRedisSlidingLog(client, "events", 2, time.Minute, c)

	d, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
	assert.Equal(t, time.Minute, d.ResetAfter)

	c.Advance(time.Second)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)

	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 59*time.Second, d.ResetAfter)

	members, err := mr.ZMembers("events:ratelimit:1.2.3.4")
	require.NoError(t, err)
	assert.Len(t, members, 2, "denied request is not logged")

	c.Advance(time.Minute)
	d, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisSlidingLog_ConnectionError(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err := NewRedisSlidingLog(client, "events", 2, time.Minute, nil).Allow(context.Background(), "k")
	require.Error(t, err)
}
