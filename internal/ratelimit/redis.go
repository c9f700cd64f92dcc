package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// bucketScript refills and consumes atomically on the Redis side so that
// concurrent replicas cannot double-spend a token.
var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill_ms = tonumber(ARGV[2])
local now_ms = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  ts = now_ms
end

local restored = math.floor((now_ms - ts) / refill_ms)
if restored > 0 then
  tokens = math.min(capacity, tokens + restored)
  ts = ts + restored * refill_ms
end

local allowed = 0
local retry_ms = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
else
  retry_ms = refill_ms - (now_ms - ts)
  if retry_ms < 0 then retry_ms = 0 end
end

redis.call('HMSET', key, 'tokens', tokens, 'ts', ts)
redis.call('PEXPIRE', key, refill_ms * (capacity + 1))
return {allowed, retry_ms}
`)

// RedisBucket is the token bucket backed by Redis, for deployments running
// more than one instance of the service.
type RedisBucket struct {
	client   *redis.Client
	capacity int
	refill   time.Duration
	prefix   string
}

func NewRedisBucket(client *redis.Client, capacity int, refill time.Duration) *RedisBucket {
	if capacity < 1 {
		capacity = 1
	}
	return &RedisBucket{
		client:   client,
		capacity: capacity,
		refill:   refill,
		prefix:   "tripwise:burst:",
	}
}

func (b *RedisBucket) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	result, err := bucketScript.Run(ctx, b.client,
		[]string{b.prefix + key},
		b.capacity,
		b.refill.Milliseconds(),
		time.Now().UnixMilli(),
	).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("burst limiter: %w", err)
	}
	if len(result) != 2 {
		return false, 0, fmt.Errorf("burst limiter: unexpected script reply %v", result)
	}

	allowed := result[0] == 1
	retryAfter := time.Duration(result[1]) * time.Millisecond
	return allowed, retryAfter, nil
}
