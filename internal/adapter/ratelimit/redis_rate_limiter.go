package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"quiz-forge/internal/cache"
	"quiz-forge/internal/config"
	"quiz-forge/internal/domain"
	"quiz-forge/internal/metrics"

	"go.uber.org/zap"
)

const serviceName = "ratelimit"

// window is one counted limit: a key suffix, a TTL, and a ceiling.
type window struct {
	suffix string
	ttl    time.Duration
	limit  int
}

// RedisRateLimiter implements domain.RateLimiter with keyed counters on
// the cache port. Each window is a counter that expires on its own; the
// first increment in a fresh window sets the TTL. An action is recorded
// and checked in one pass, so a denied call has already consumed a slot
// in any window it did not exceed.
type RedisRateLimiter struct {
	cache  domain.Cache
	cfg    config.RateLimitConfig
	logger *zap.Logger
}

// NewRedisRateLimiter creates a new instance of RedisRateLimiter.
func NewRedisRateLimiter(cacheClient domain.Cache, cfg config.RateLimitConfig, logger *zap.Logger) domain.RateLimiter {
	return &RedisRateLimiter{
		cache:  cacheClient,
		cfg:    cfg,
		logger: logger,
	}
}

// CheckAndRecordStart implements domain.RateLimiter. A user under
// cancellation cooldown is denied before any start window is counted.
func (r *RedisRateLimiter) CheckAndRecordStart(ctx context.Context, userID string) error {
	cooldownKey := r.key(userID, "cooldown")
	onCooldown, err := r.cache.Exists(ctx, cooldownKey)
	if err != nil {
		return fmt.Errorf("failed to check cancellation cooldown: %w", err)
	}
	if onCooldown {
		metrics.RateLimitDenials.WithLabelValues("start").Inc()
		return domain.NewRateLimitedError("too many recent cancellations, please wait before starting a new job")
	}

	windows := []window{
		{"start:minute", time.Minute, r.cfg.StartsPerMinute},
		{"start:hour", time.Hour, r.cfg.StartsPerHour},
		{"start:day", 24 * time.Hour, r.cfg.StartsPerDay},
	}
	if err := r.bumpWindows(ctx, userID, windows); err != nil {
		metrics.RateLimitDenials.WithLabelValues("start").Inc()
		return err
	}
	return nil
}

// CheckAndRecordCancel implements domain.RateLimiter. Crossing the
// cooldown threshold arms a cooldown key that blocks subsequent starts.
func (r *RedisRateLimiter) CheckAndRecordCancel(ctx context.Context, userID string) error {
	windows := []window{
		{"cancel:hour", time.Hour, r.cfg.CancelsPerHour},
		{"cancel:day", 24 * time.Hour, r.cfg.CancelsPerDay},
	}
	if err := r.bumpWindows(ctx, userID, windows); err != nil {
		metrics.RateLimitDenials.WithLabelValues("cancel").Inc()
		return err
	}

	recent, err := r.bump(ctx, r.key(userID, "cancel:recent"), r.cfg.CooldownWindow)
	if err != nil {
		return err
	}
	if recent >= int64(r.cfg.CooldownCancelCount) {
		cooldownKey := r.key(userID, "cooldown")
		if err := r.cache.Set(ctx, cooldownKey, strconv.FormatInt(recent, 10), r.cfg.CooldownDuration); err != nil {
			return fmt.Errorf("failed to arm cancellation cooldown: %w", err)
		}
		r.logger.Warn("User entered cancellation cooldown",
			zap.String("user_id", userID),
			zap.Int64("recent_cancels", recent),
			zap.Duration("cooldown", r.cfg.CooldownDuration))
	}
	return nil
}

// bumpWindows counts one action against every window and denies on the
// first exceeded limit. A limit of zero or less disables that window.
func (r *RedisRateLimiter) bumpWindows(ctx context.Context, userID string, windows []window) error {
	for _, w := range windows {
		if w.limit <= 0 {
			continue
		}
		count, err := r.bump(ctx, r.key(userID, w.suffix), w.ttl)
		if err != nil {
			return err
		}
		if count > int64(w.limit) {
			r.logger.Info("Rate limit exceeded",
				zap.String("user_id", userID),
				zap.String("window", w.suffix),
				zap.Int64("count", count),
				zap.Int("limit", w.limit))
			return domain.NewRateLimitedError(fmt.Sprintf("rate limit exceeded for %s window", w.suffix))
		}
	}
	return nil
}

// bump increments a counter key, attaching the TTL when the increment
// created the key.
func (r *RedisRateLimiter) bump(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := r.cache.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("failed to increment rate limit counter %s: %w", key, err)
	}
	if count == 1 {
		if err := r.cache.Expire(ctx, key, ttl); err != nil {
			return 0, fmt.Errorf("failed to set expiry on rate limit counter %s: %w", key, err)
		}
	}
	return count, nil
}

func (r *RedisRateLimiter) key(userID, suffix string) string {
	return cache.GenerateCacheKey(serviceName, suffix, userID)
}
