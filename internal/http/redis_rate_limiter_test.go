package httpx

import (
	"testing"
	"time"
)

func TestRedisRateLimiterConfigDefaults(t *testing.T) {
	cfg := RedisRateLimiterConfig{Addr: "localhost:6379"}
	cfg.normalize()
	if cfg.KeyPrefix != defaultRateLimitPrefix {
		t.Fatalf("expected default key prefix, got %q", cfg.KeyPrefix)
	}
	if cfg.OpTimeout != defaultRateLimitTimeout {
		t.Fatalf("expected default op timeout, got %v", cfg.OpTimeout)
	}

	cfg = RedisRateLimiterConfig{KeyPrefix: "custom:", OpTimeout: time.Second}
	cfg.normalize()
	if cfg.KeyPrefix != "custom:" {
		t.Fatalf("custom key prefix overwritten: %q", cfg.KeyPrefix)
	}
	if cfg.OpTimeout != time.Second {
		t.Fatalf("custom op timeout overwritten: %v", cfg.OpTimeout)
	}
}

func TestRedisRateLimiterBucketKey(t *testing.T) {
	rl := &redisRateLimiter{keyPrefix: "dot:telemetry:ratelimit:"}
	if got := rl.bucketKey("ingest:10.0.0.1"); got != "dot:telemetry:ratelimit:ingest:10.0.0.1" {
		t.Fatalf("unexpected bucket key %q", got)
	}
}

func TestRedisRateLimiterZeroLimitAllows(t *testing.T) {
	// A non-positive limit short-circuits before any Redis call.
	rl := &redisRateLimiter{keyPrefix: "x:", opTimeout: time.Millisecond}
	decision := rl.Allow("ingest:10.0.0.1", 0, time.Minute)
	if !decision.allowed {
		t.Fatal("zero limit should allow the request")
	}
}
