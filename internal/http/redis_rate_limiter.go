package httpx

import (
	"context"
	"time"

	"log/slog"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultRateLimitPrefix  = "dot:telemetry:ratelimit:"
	defaultRateLimitTimeout = 250 * time.Millisecond
)

// RedisRateLimiterConfig carries the connection and keyspace settings for the
// shared limiter. Zero values fall back to the package defaults.
type RedisRateLimiterConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	OpTimeout time.Duration
}

func (cfg *RedisRateLimiterConfig) normalize() {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = defaultRateLimitPrefix
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultRateLimitTimeout
	}
}

type redisRateLimiter struct {
	client    *redis.Client
	logger    *slog.Logger
	keyPrefix string
	opTimeout time.Duration
	now       func() time.Time
}

// NewRedisRateLimiter connects to Redis and returns a limiter whose counters
// are shared across every process using the same key prefix.
func NewRedisRateLimiter(cfg RedisRateLimiterConfig, logger *slog.Logger) (RateLimiter, error) {
	cfg.normalize()
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &redisRateLimiter{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
		opTimeout: cfg.OpTimeout,
		now:       time.Now,
	}, nil
}

// Allow counts the request in a fixed window. Redis failures fail open so a
// degraded limiter never blocks otherwise valid traffic.
func (rl *redisRateLimiter) Allow(key string, limit int, window time.Duration) rateDecision {
	if limit <= 0 {
		return rateDecision{allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), rl.opTimeout)
	defer cancel()

	bucket := rl.bucketKey(key)
	pipe := rl.client.TxPipeline()
	counter := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, window)
	ttl := pipe.TTL(ctx, bucket)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logRedisError("pipeline", err)
		return rateDecision{allowed: true}
	}

	remaining := ttl.Val()
	if remaining <= 0 {
		remaining = window
	}
	count := int(counter.Val())
	return rateDecision{
		allowed:   count <= limit,
		count:     count,
		windowEnd: rl.now().Add(remaining),
	}
}

func (rl *redisRateLimiter) bucketKey(key string) string {
	return rl.keyPrefix + key
}

func (rl *redisRateLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}

func (rl *redisRateLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Error("redis rate limiter error", "op", op, "error", err)
}
