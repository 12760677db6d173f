package bucket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medgate/internal/ratelimit/models"
)

// DefaultRedisTimeout bounds each counter round trip.
const DefaultRedisTimeout = 250 * time.Millisecond

// incrementScript applies the fixed-window transition atomically on the
// server. Times are Unix milliseconds supplied by the caller so every instance
// decides with the same clock as its in-process fallback.
//
// KEYS[1] counter hash; ARGV: now, capacity, window, block_for.
// Returns {allowed, consumed, window_start, block_until}.
var incrementScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local block_for = tonumber(ARGV[4])

local v = redis.call('HMGET', KEYS[1], 'start', 'count', 'block')
local start = tonumber(v[1]) or 0
local count = tonumber(v[2]) or 0
local block = tonumber(v[3]) or 0

if block > 0 then
  if now < block then
    return {0, count, start, block}
  end
  block = 0
  start = 0
end

if start == 0 or now >= start + window then
  start = now
  count = 0
end

local allowed = 1
if count >= capacity then
  allowed = 0
  if block_for > 0 then
    block = now + block_for
  else
    block = start + window
  end
else
  count = count + 1
end

redis.call('HSET', KEYS[1], 'start', start, 'count', count, 'block', block, 'cap', capacity)

local expire_at = start + window
if block > expire_at then
  expire_at = block
end
local ttl = expire_at - now
if ttl < 1 then
  ttl = 1
end
redis.call('PEXPIRE', KEYS[1], ttl)

return {allowed, count, start, block}
`)

// RedisBucketStore implements ports.CounterStore on Redis so several
// instances share one quota per key.
type RedisBucketStore struct {
	client  redis.UniversalClient
	timeout time.Duration
}

// RedisOption configures the Redis store.
type RedisOption func(*RedisBucketStore)

// WithCallTimeout overrides the per-call budget. Non-positive values are ignored.
func WithCallTimeout(d time.Duration) RedisOption {
	return func(s *RedisBucketStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewRedis constructs a Redis-backed counter store.
func NewRedis(client redis.UniversalClient, opts ...RedisOption) *RedisBucketStore {
	s := &RedisBucketStore{client: client, timeout: DefaultRedisTimeout}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment runs the counter script for key.
func (s *RedisBucketStore) Increment(ctx context.Context, key string, now time.Time, policy models.Policy) (*models.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := incrementScript.Run(ctx, s.client, []string{key},
		now.UnixMilli(), policy.Capacity, policy.Window.Milliseconds(), policy.BlockFor.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("increment counter: %w", err)
	}
	if len(raw) != 4 {
		return nil, fmt.Errorf("increment counter: unexpected reply length %d", len(raw))
	}

	w := windowFromMillis(key, raw[1], raw[2], raw[3], policy.Capacity)
	result := models.Inspect(w, now, policy)
	result.Allowed = raw[0] == 1
	return &result, nil
}

// Reset clears the counter for a key.
func (s *RedisBucketStore) Reset(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("reset counter: %w", err)
	}
	return nil
}

// Peek reads the stored window without consuming.
func (s *RedisBucketStore) Peek(ctx context.Context, key string) (*models.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var fields struct {
		Start    int64 `redis:"start"`
		Count    int64 `redis:"count"`
		Block    int64 `redis:"block"`
		Capacity int64 `redis:"cap"`
	}
	cmd := s.client.HGetAll(ctx, key)
	values, err := cmd.Result()
	if err != nil {
		return nil, fmt.Errorf("peek counter: %w", err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	if err := cmd.Scan(&fields); err != nil {
		return nil, fmt.Errorf("peek counter: %w", err)
	}
	return windowFromMillis(key, fields.Count, fields.Start, fields.Block, int(fields.Capacity)), nil
}

func windowFromMillis(key string, count, start, block int64, capacity int) *models.Window {
	w := &models.Window{
		Key:      key,
		Consumed: int(count),
		Capacity: capacity,
	}
	if start > 0 {
		w.Start = time.UnixMilli(start)
	}
	if block > 0 {
		until := time.UnixMilli(block)
		w.BlockUntil = &until
	}
	return w
}
