package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tufnapp/tufngate/core"
)

const (
	redisKeyPrefix = "tufngate:window:"
	// redisSeqKey feeds member suffixes; it sits outside the window prefix
	// so Keys and Sweep never see it.
	redisSeqKey = "tufngate:seq"
)

// checkWindowScript prunes, counts and conditionally appends in one step.
//
//	KEYS[1] window, KEYS[2] sequence
//	ARGV    cutoff_us, now_us, limit, now_ns, ttl_ms
//
// Returns {allowed, count, oldest_us}.
var checkWindowScript = redis.NewScript(`
local key = KEYS[1]
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', ARGV[1])
local count = redis.call('ZCARD', key)
if count >= limit then
  local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
  local first = 0
  if oldest[2] then first = tonumber(oldest[2]) end
  return {0, count, first}
end
local seq = redis.call('INCR', KEYS[2])
redis.call('ZADD', key, ARGV[2], ARGV[4] .. ':' .. seq)
redis.call('PEXPIRE', key, ARGV[5])
return {1, count + 1, 0}
`)

// RedisStore keeps each rate window in a Redis sorted set so several
// server instances share one view. Scores are unix microseconds (exact in
// a float64); members are "<unix nanos>:<suffix>" so equal instants stay
// distinct entries. CheckWindow runs the whole check inside Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // How long an idle window survives in Redis
}

var (
	_ Store         = (*RedisStore)(nil)
	_ WindowChecker = (*RedisStore)(nil)
)

// RedisConfig for creating a Redis store
type RedisConfig struct {
	Addr     string        // Redis address (e.g., "localhost:6379")
	Password string        // Redis password (empty for no auth)
	DB       int           // Redis database number
	TTL      time.Duration // TTL for idle windows (default: 10 minutes)
}

// NewRedisStore creates a new Redis-backed store
func NewRedisStore(config RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	ttl := config.TTL
	if ttl == 0 {
		ttl = 10 * time.Minute
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
	}
}

// Get reads the window for a given key
func (s *RedisStore) Get(ctx context.Context, key string) (*core.WindowState, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	entries, err := s.client.ZRangeWithScores(ctx, redisKeyPrefix+key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange %s: %w", key, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	state := &core.WindowState{Key: key, Timestamps: make([]time.Time, 0, len(entries))}
	for _, entry := range entries {
		member, _ := entry.Member.(string)
		ts, err := parseMember(member)
		if err != nil {
			return nil, fmt.Errorf("redis window %s: %w", key, err)
		}
		state.Timestamps = append(state.Timestamps, ts)
	}
	return state, nil
}

func formatMember(ts time.Time, suffix int) string {
	return strconv.FormatInt(ts.UnixNano(), 10) + ":" + strconv.Itoa(suffix)
}

func parseMember(member string) (time.Time, error) {
	raw, _, _ := strings.Cut(member, ":")
	nanos, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad member %q: %w", member, err)
	}
	return time.Unix(0, nanos).UTC(), nil
}

// CheckWindow prunes entries at or before now-window, then appends now
// when fewer than limit remain. Concurrent callers on any instance see a
// consistent count.
func (s *RedisStore) CheckWindow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (core.CheckResult, error) {
	if key == "" {
		return core.CheckResult{}, ErrEmptyKey
	}
	ttl := s.ttl
	if ttl < window {
		ttl = window
	}

	res, err := checkWindowScript.Run(ctx, s.client,
		[]string{redisKeyPrefix + key, redisSeqKey},
		now.Add(-window).UnixMicro(), now.UnixMicro(), limit, now.UnixNano(), ttl.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return core.CheckResult{}, fmt.Errorf("redis check %s: %w", key, err)
	}
	if len(res) != 3 {
		return core.CheckResult{}, fmt.Errorf("redis check %s: unexpected reply %v", key, res)
	}

	result := core.CheckResult{Allowed: res[0] == 1, Limit: limit}
	if result.Allowed {
		result.Remaining = limit - int(res[1])
		return result, nil
	}
	if res[2] > 0 {
		result.RetryAfter = time.UnixMicro(res[2]).Add(window).Sub(now)
	}
	return result, nil
}

// Set replaces the window for a given key
func (s *RedisStore) Set(ctx context.Context, key string, state *core.WindowState) error {
	if key == "" {
		return ErrEmptyKey
	}
	redisKey := redisKeyPrefix + key

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisKey)
	if state != nil && len(state.Timestamps) > 0 {
		members := make([]redis.Z, 0, len(state.Timestamps))
		for i, ts := range state.Timestamps {
			members = append(members, redis.Z{
				Score:  float64(ts.UnixMicro()),
				Member: formatMember(ts, i),
			})
		}
		pipe.ZAdd(ctx, redisKey, members...)
		pipe.PExpire(ctx, redisKey, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the window for a given key
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// Clear removes all tufngate windows from Redis
func (s *RedisStore) Clear(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Keys lists every tracked key without the Redis prefix
func (s *RedisStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), redisKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	return keys, nil
}

// Sweep trims every window to entries after cutoff and deletes empty ones
func (s *RedisStore) Sweep(ctx context.Context, cutoff time.Time) (int, error) {
	maxScore := strconv.FormatInt(cutoff.UnixMicro(), 10)
	removed := 0

	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		redisKey := iter.Val()
		if err := s.client.ZRemRangeByScore(ctx, redisKey, "-inf", maxScore).Err(); err != nil {
			return removed, fmt.Errorf("redis trim %s: %w", redisKey, err)
		}
		size, err := s.client.ZCard(ctx, redisKey).Result()
		if err != nil {
			return removed, fmt.Errorf("redis zcard %s: %w", redisKey, err)
		}
		if size == 0 {
			// ZREMRANGEBYSCORE already deletes an emptied set; DEL is a no-op then
			s.client.Del(ctx, redisKey)
			removed++
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan: %w", err)
	}
	return removed, nil
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
