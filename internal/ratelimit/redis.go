package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend shares buckets across instances. The whole
// read-refill-decrement step runs inside one Lua script, so the
// atomicity guarantee matches the in-memory backend's.
type RedisBackend struct {
	client *redis.Client
	prefix string
	script *redis.Script
}

// NewRedisBackend wraps a connected client. Keys are namespaced
// under the given prefix ("rl" when empty).
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		script: redis.NewScript(consumeScript),
	}
}

// consumeScript implements the point bucket: refill on window
// elapse, decrement on consume, optional extended block once the
// bucket cannot cover the cost. Returns {allowed, remaining,
// retry_after_ms}.
const consumeScript = `
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local points = tonumber(ARGV[2])
local duration_ms = tonumber(ARGV[3])
local block_ms = tonumber(ARGV[4])
local cost = tonumber(ARGV[5])
local ttl_seconds = tonumber(ARGV[6])

local state = redis.call('HMGET', key, 'remaining', 'reset_at_ms', 'blocked_until_ms')
local remaining = tonumber(state[1])
local reset_at = tonumber(state[2])
local blocked_until = tonumber(state[3])

if blocked_until ~= nil and now_ms < blocked_until then
    return { 0, remaining or 0, blocked_until - now_ms }
end

if remaining == nil or reset_at == nil or now_ms >= reset_at then
    remaining = points
    reset_at = now_ms + duration_ms
    blocked_until = 0
end

local allowed = 0
local retry_after_ms = 0
if remaining >= cost then
    allowed = 1
    remaining = remaining - cost
else
    retry_after_ms = reset_at - now_ms
    if block_ms > 0 then
        blocked_until = now_ms + block_ms
        retry_after_ms = block_ms
    end
end

redis.call('HMSET', key, 'remaining', remaining, 'reset_at_ms', reset_at, 'blocked_until_ms', blocked_until or 0)
redis.call('EXPIRE', key, ttl_seconds)

return { allowed, remaining, retry_after_ms }
`

// Consume implements Backend via the Lua script.
func (r *RedisBackend) Consume(ctx context.Context, key string, opts Options, cost int) (int, time.Duration, bool, error) {
	// Keep state alive long enough to cover both the window and any
	// block period.
	ttl := opts.Duration + opts.BlockDuration + time.Minute

	vals, err := r.script.Run(ctx, r.client, []string{r.prefix + ":" + key},
		time.Now().UnixMilli(),
		opts.Points,
		opts.Duration.Milliseconds(),
		opts.BlockDuration.Milliseconds(),
		cost,
		int64(ttl/time.Second),
	).Result()
	if err != nil {
		return 0, 0, false, err
	}

	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 3 {
		return 0, 0, false, errUnexpectedReply
	}
	allowed := asInt64(arr[0]) == 1
	remaining := int(asInt64(arr[1]))
	retryAfter := time.Duration(asInt64(arr[2])) * time.Millisecond
	return remaining, retryAfter, allowed, nil
}

// Reset deletes a single bucket key.
func (r *RedisBackend) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+":"+key).Err()
}

// ResetAll scans and deletes every key under the prefix.
func (r *RedisBackend) ResetAll(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

var errUnexpectedReply = errors.New("ratelimit: unexpected script reply")

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

var _ Backend = (*RedisBackend)(nil)
