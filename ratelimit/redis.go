package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/moyoez/scangate/types"
)

// KEYS[1] = window hash for the identifier
// ARGV[1] = limit, ARGV[2] = window in ms, ARGV[3] = now in unix ms
// Returns {allowed, count, resetAtMs}.
var hitScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])

	local count = tonumber(redis.call("HGET", key, "count"))
	local reset = tonumber(redis.call("HGET", key, "reset"))

	if count == nil or reset == nil or now >= reset then
		count = 0
		reset = now + window
		redis.call("HSET", key, "count", 0, "reset", reset)
		redis.call("PEXPIRE", key, window)
	end

	if count >= limit then
		return {0, count, reset}
	end

	count = redis.call("HINCRBY", key, "count", 1)
	return {1, count, reset}
`)

// RedisStore shares windows between instances. Keys carry a PEXPIRE equal to
// the window, so Redis reclaims them and Sweep has nothing to do.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// NewRedisClient connects to addr and verifies the connection with a ping.
func NewRedisClient(ctx context.Context, cfg types.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func (s *RedisStore) Hit(ctx context.Context, identifier string, limit int, window time.Duration, now time.Time) (types.RateLimitEntry, bool, error) {
	key := s.prefix + identifier
	res, err := hitScript.Run(ctx, s.client, []string{key}, limit, window.Milliseconds(), now.UnixMilli()).Int64Slice()
	if err != nil {
		return types.RateLimitEntry{}, false, fmt.Errorf("redis script error: %w", err)
	}
	if len(res) != 3 {
		return types.RateLimitEntry{}, false, fmt.Errorf("unexpected redis script reply: %v", res)
	}
	entry := types.RateLimitEntry{
		Identifier: identifier,
		Count:      int(res[1]),
		ResetAt:    time.UnixMilli(res[2]),
	}
	return entry, res[0] == 1, nil
}

func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
