package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := New(context.Background(), mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	mr.Close()
	_, err = New(context.Background(), mr.Addr())
	assert.Error(t, err)
}

func TestLockIsExclusive(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	lock, err := Acquire(ctx, client, "invoice:submit:d1", "a", time.Minute)
	require.NoError(t, err)

	_, err = Acquire(ctx, client, "invoice:submit:d1", "b", time.Minute)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, lock.Release(ctx))
	assert.False(t, mr.Exists("invoice:submit:d1"))

	_, err = Acquire(ctx, client, "invoice:submit:d1", "b", time.Minute)
	assert.NoError(t, err)
}

func TestReleaseLeavesForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	lock, err := Acquire(ctx, client, "k", "mine", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)
	_, err = Acquire(ctx, client, "k", "theirs", time.Minute)
	require.NoError(t, err)

	require.NoError(t, lock.Release(ctx))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "theirs", got)
}
