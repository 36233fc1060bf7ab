package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stayreserve/internal/domain"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_MutualExclusion(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, ApartmentKey(1))
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			_ = release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.Held(), "slots are dropped once nobody waits")
}

func TestMemoryLocker_BoundedWaitReturnsBusy(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, ApartmentKey(1))
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(ctx, ApartmentKey(1))
	assert.ErrorIs(t, err, domain.ErrBusy)
}

func TestMemoryLocker_ContextCancelReturnsBusy(t *testing.T) {
	l := NewMemoryLocker(0)

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrBusy)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	r1, err := l.Acquire(ctx, ApartmentKey(1))
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, ApartmentKey(2))
	require.NoError(t, err)

	require.NoError(t, r1())
	require.NoError(t, r2())
}

func TestMemoryLocker_ReleaseTwiceIsSafe(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, release())
	require.NoError(t, release())

	again, err := l.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, again())
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	ctx := context.Background()
	l := NewRedisLocker(client, RedisOptions{
		Prefix: "stayreserve:test:" + t.Name() + ":",
		TTL:    5 * time.Second,
		Wait:   50 * time.Millisecond,
	})

	release, err := l.Acquire(ctx, ApartmentKey(42))
	require.NoError(t, err)

	_, err = l.Acquire(ctx, ApartmentKey(42))
	assert.ErrorIs(t, err, domain.ErrBusy)

	require.NoError(t, release())

	again, err := l.Acquire(ctx, ApartmentKey(42))
	require.NoError(t, err)
	require.NoError(t, again())
}
