package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when a lock is already held by someone else.
var ErrLocked = errors.New("platform/cache: lock held")

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Lock is a single-holder redis lock guarded by a random token.
type Lock struct {
	client *redis.Client
	key    string
	token  string
}

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire sets key to token for ttl when no one holds it, or returns ErrLocked.
func Acquire(ctx context.Context, client *redis.Client, key, token string, ttl time.Duration) (*Lock, error) {
	ok, err := client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("platform/cache: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &Lock{client: client, key: key, token: token}, nil
}

// Release drops the lock if it is still ours.
func (l *Lock) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("platform/cache: release %s: %w", l.key, err)
	}
	return nil
}
