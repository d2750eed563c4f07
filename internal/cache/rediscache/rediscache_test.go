package rediscache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestRedisCache_GetSetDelete(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Set(ctx, "device:u1", []byte("tok"), time.Minute))

	b, ok, err := c.Get(ctx, "device:u1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("tok"), b)

	require.NoError(t, c.Delete(ctx, "device:u1"))
	_, ok, err = c.Get(ctx, "device:u1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCache_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	c := New(mr.Addr())

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeduper_Claim(t *testing.T) {
	mr := miniredis.RunT(t)
	d := NewDeduper(mr.Addr())

	ctx := context.Background()
	first, err := d.Claim(ctx, "bid_accepted:b1", time.Hour)
	require.NoError(t, err)
	require.True(t, first)

	again, err := d.Claim(ctx, "bid_accepted:b1", time.Hour)
	require.NoError(t, err)
	require.False(t, again)

	other, err := d.Claim(ctx, "bid_accepted:b2", time.Hour)
	require.NoError(t, err)
	require.True(t, other)

	require.NoError(t, d.Release(ctx, "bid_accepted:b1"))
	retry, err := d.Claim(ctx, "bid_accepted:b1", time.Hour)
	require.NoError(t, err)
	require.True(t, retry)
}

func TestDeduper_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	d := NewDeduper(mr.Addr())

	ctx := context.Background()
	ok, err := d.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = d.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}
