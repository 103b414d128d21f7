package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Config is the redis configuration
type Config struct {
	Addr     string
	Password string
	Db       int
	TTL      time.Duration // Upper bound on how long a crashed holder keeps a key
}

var retryInterval = 20 * time.Millisecond

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone
var unlockScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker implements the Locker interface for redis, so that every API
// replica sharing the redis serializes on the same keys
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisLocker creates an instance of RedisLocker
func NewRedisLocker(config Config) *RedisLocker {
	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.Db,
	})
	return &RedisLocker{rdb: rdb, ttl: config.TTL}
}

// Ping checks that redis is reachable
func (r *RedisLocker) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the redis client
func (r *RedisLocker) Close() error {
	return r.rdb.Close()
}

// makeKey makes a redis key from a lock key
func (r *RedisLocker) makeKey(key string) string {
	return "lock-" + key
}

// Lock polls SET NX until the key is ours. The key expires after the TTL
// in case the holder dies without unlocking.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := r.makeKey(key)
	token := uuid.NewString()

	for {
		ok, err := r.rdb.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	unlock := func() {
		// The request context may already be cancelled; release regardless
		if err := unlockScript.Run(context.Background(), r.rdb, []string{redisKey}, token).Err(); err != nil {
			slog.Error("Unable to release lock", "key", key, "error", err)
		}
	}
	return unlock, nil
}
