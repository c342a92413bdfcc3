package store

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

//go:embed admit.lua
var admitScript string

//go:embed cas.lua
var casScript string

// RedisConfig contains configuration for the Redis backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates the connection, if set.
	Password string

	// DB selects the Redis logical database.
	DB int

	// OpTimeout bounds every store round trip. Default: 3 seconds.
	OpTimeout time.Duration
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		OpTimeout: 3 * time.Second,
	}
}

// RedisBackend implements Backend against a shared Redis instance.
//
// The check-and-increment and guarded-write primitives run as server-side
// Lua scripts, so their read/compare/write cycles are indivisible even with
// many engine instances sharing the same store. Window logs are sorted sets
// scored by Unix millisecond timestamps, mutated through a single
// transactional pipeline.
type RedisBackend struct {
	client *redis.Client
	admit  *redis.Script
	cas    *redis.Script
	op     time.Duration
	logger *slog.Logger
}

// NewRedisBackend creates a Redis backend and verifies connectivity.
func NewRedisBackend(cfg *RedisConfig) (*RedisBackend, error) {
	if cfg == nil {
		cfg = DefaultRedisConfig()
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 3 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	b := &RedisBackend{
		client: client,
		admit:  redis.NewScript(admitScript),
		cas:    redis.NewScript(casScript),
		op:     opTimeout,
		logger: slog.Default().With("component", "store.redis"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &OpError{Op: "ping", Err: err}
	}

	b.logger.Info("redis backend connected", "addr", cfg.Addr, "db", cfg.DB)
	return b, nil
}

// Get implements Backend.
func (b *RedisBackend) Get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	val, err := b.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, &OpError{Op: "get", Key: key, Err: err}
	}
	return val, true, nil
}

// Set implements Backend.
func (b *RedisBackend) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return &OpError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Delete implements Backend.
func (b *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := b.bound(ctx)
	defer cancel()

	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return &OpError{Op: "delete", Err: err}
	}
	return nil
}

// IncrWithLimit implements Backend using the embedded Lua script.
func (b *RedisBackend) IncrWithLimit(ctx context.Context, key string, limit int64, ttl time.Duration) (IncrResult, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	ttlSeconds := int64(ttl / time.Second)
	if ttl > 0 && ttlSeconds == 0 {
		ttlSeconds = 1
	}

	result, err := b.admit.Run(ctx, b.client, []string{key}, limit, ttlSeconds).Result()
	if err != nil {
		return IncrResult{}, &OpError{Op: "incr_with_limit", Key: key, Err: err}
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return IncrResult{}, &OpError{Op: "incr_with_limit", Key: key, Err: fmt.Errorf("unexpected script reply %T", result)}
	}

	allowed, _ := values[0].(int64)
	used := toInt64(values[1])

	return IncrResult{Allowed: allowed == 1, Used: used}, nil
}

// CompareAndSet implements Backend using the embedded Lua script.
func (b *RedisBackend) CompareAndSet(ctx context.Context, key, expected, value string, ttl time.Duration) (bool, string, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	ttlSeconds := int64(ttl / time.Second)
	if ttl > 0 && ttlSeconds == 0 {
		ttlSeconds = 1
	}

	result, err := b.cas.Run(ctx, b.client, []string{key}, expected, value, ttlSeconds).Result()
	if err != nil {
		return false, "", &OpError{Op: "compare_and_set", Key: key, Err: err}
	}

	values, ok := result.([]interface{})
	if !ok || len(values) != 2 {
		return false, "", &OpError{Op: "compare_and_set", Key: key, Err: fmt.Errorf("unexpected script reply %T", result)}
	}

	swapped, _ := values[0].(int64)
	current, _ := values[1].(string)

	return swapped == 1, current, nil
}

// WindowAdd implements Backend with a transactional pipeline:
// ZADD, ZREMRANGEBYSCORE of expired entries, one ZCOUNT per cutoff, EXPIRE.
func (b *RedisBackend) WindowAdd(ctx context.Context, key string, ts time.Time, keep time.Duration, cutoffs ...time.Time) ([]int64, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	score := float64(ts.UnixMilli())
	oldest := ts.Add(-keep).UnixMilli()

	pipe := b.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: strconv.FormatInt(ts.UnixNano(), 10)})
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(oldest, 10))

	counts := make([]*redis.IntCmd, len(cutoffs))
	for i, cutoff := range cutoffs {
		counts[i] = pipe.ZCount(ctx, key, strconv.FormatInt(cutoff.UnixMilli(), 10), "+inf")
	}
	pipe.Expire(ctx, key, keep)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, &OpError{Op: "window_add", Key: key, Err: err}
	}

	out := make([]int64, len(cutoffs))
	for i, cmd := range counts {
		out[i] = cmd.Val()
	}
	return out, nil
}

// WindowCount implements Backend.
func (b *RedisBackend) WindowCount(ctx context.Context, key string, since time.Time) (int64, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	n, err := b.client.ZCount(ctx, key, strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
	if err != nil {
		return 0, &OpError{Op: "window_count", Key: key, Err: err}
	}
	return n, nil
}

// Keys implements Backend. Uses SCAN rather than KEYS to avoid blocking the
// server on large keyspaces.
func (b *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	var keys []string
	iter := b.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, &OpError{Op: "keys", Key: pattern, Err: err}
	}
	return keys, nil
}

// Ping implements Backend.
func (b *RedisBackend) Ping(ctx context.Context) error {
	ctx, cancel := b.bound(ctx)
	defer cancel()

	if err := b.client.Ping(ctx).Err(); err != nil {
		return &OpError{Op: "ping", Err: err}
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// bound derives a context with the per-operation timeout.
func (b *RedisBackend) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, b.op)
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}
