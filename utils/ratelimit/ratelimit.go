package ratelimit

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether an action identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (bool, error)
	Remaining(ctx context.Context, key string, rule Rule) (int, error)
}

// Rule caps an action at Limit occurrences per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func PerMinute(n int) Rule {
	return Rule{Limit: n, Window: time.Minute}
}

// WindowLimiter counts actions in fixed windows stored in Redis so every
// API instance shares the same counters.
type WindowLimiter struct {
	redis    redis.Cmdable
	logger   *zap.Logger
	failOpen bool
	now      func() time.Time
}

// NewWindowLimiter returns a limiter. With failOpen set, a Redis outage lets
// requests through instead of rejecting them.
func NewWindowLimiter(client redis.Cmdable, logger *zap.Logger, failOpen bool) *WindowLimiter {
	return &WindowLimiter{
		redis:    client,
		logger:   logger,
		failOpen: failOpen,
		now:      time.Now,
	}
}

func (l *WindowLimiter) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	if rule.Limit <= 0 {
		return true, nil
	}
	bucket := l.bucketKey(key, rule.Window)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, bucket)
	pipe.ExpireNX(ctx, bucket, rule.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Error("rate limit check failed", zap.String("key", bucket), zap.Error(err))
		if l.failOpen {
			return true, nil
		}
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	if incr.Val() > int64(rule.Limit) {
		l.logger.Warn("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", incr.Val()),
			zap.Int("limit", rule.Limit),
		)
		return false, nil
	}
	return true, nil
}

func (l *WindowLimiter) Remaining(ctx context.Context, key string, rule Rule) (int, error) {
	count, err := l.redis.Get(ctx, l.bucketKey(key, rule.Window)).Int()
	if err == redis.Nil {
		return rule.Limit, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read rate limit counter: %w", err)
	}
	return max(rule.Limit-count, 0), nil
}

func (l *WindowLimiter) bucketKey(key string, window time.Duration) string {
	ms := window.Milliseconds()
	if ms <= 0 {
		ms = 1
	}
	return fmt.Sprintf("rally:ratelimit:%s:%d", key, l.now().UnixMilli()/ms)
}
