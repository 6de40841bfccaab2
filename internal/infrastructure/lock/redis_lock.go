package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/repository"
	"aerorelay-service/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisClient connects to the redis:// URL and pings it
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisLease is a single-holder lease with a TTL, used to keep poller runs
// from overlapping across instances
type RedisLease struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
	token  string
	logger logger.Logger
}

// NewRedisLease creates a lease on key. The TTL should exceed the longest run.
func NewRedisLease(client redis.Cmdable, key string, ttl time.Duration, logger logger.Logger) repository.PollLock {
	return &RedisLease{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
		logger: logger,
	}
}

// TryAcquire sets the key if absent
func (l *RedisLease) TryAcquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease %s: %w", l.key, err)
	}
	if !ok {
		l.logger.Debug("Lease held elsewhere", "key", l.key)
	}
	return ok, nil
}

// Release drops the lease if this instance still owns it
func (l *RedisLease) Release(ctx context.Context) error {
	err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lease %s: %w", l.key, err)
	}
	return nil
}
