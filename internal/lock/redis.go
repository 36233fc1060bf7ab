package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stayreserve/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only if it still carries our token, so an
// expired holder never frees a lock that someone else has since taken.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker shares keyed exclusivity between processes through SET NX PX.
type RedisLocker struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

type RedisOptions struct {
	Prefix string
	// TTL bounds how long a crashed holder can block the key.
	TTL   time.Duration
	Wait  time.Duration
	Retry time.Duration
}

func NewRedisLocker(client redis.UniversalClient, opts RedisOptions) *RedisLocker {
	if opts.Prefix == "" {
		opts.Prefix = "stayreserve:lock:"
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Retry <= 0 {
		opts.Retry = 25 * time.Millisecond
	}
	return &RedisLocker{
		client: client,
		prefix: opts.Prefix,
		ttl:    opts.TTL,
		wait:   opts.Wait,
		retry:  opts.Retry,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (Release, error) {
	k := l.prefix + key
	token := uuid.NewString()

	var deadline time.Time
	if l.wait > 0 {
		deadline = time.Now().Add(l.wait)
	}

	for {
		ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(k, token), nil
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s held longer than %s", domain.ErrBusy, key, l.wait)
		}

		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrBusy, key, ctx.Err())
		case <-t.C:
		}
	}
}

func (l *RedisLocker) releaser(k, token string) Release {
	var once sync.Once
	var err error
	return func() error {
		once.Do(func() {
			// the request context may already be done; release on a short fresh one
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			err = releaseScript.Run(ctx, l.client, []string{k}, token).Err()
		})
		return err
	}
}
