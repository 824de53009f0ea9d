package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/config"
	"github.com/spec-kit/ticket-intake/internal/counters"
)

// RateLimiter enforces fixed-window submission limits per source IP and per
// sender address. It is stricter than the abuse guard's friction delay and
// fails open when the counter store is unreachable.
type RateLimiter struct {
	store  counters.Store
	cfg    config.RateLimitConfig
	logger *zap.Logger
}

// NewRateLimiter constructs the limiter.
func NewRateLimiter(store counters.Store, cfg config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, cfg: cfg, logger: logger}
}

// Allow counts the submission and reports whether both windows still have
// room. An empty ip skips the per-IP window. Both counters are always
// incremented.
func (l *RateLimiter) Allow(ctx context.Context, ip, email string) bool {
	allowed := true
	if ip != "" && !l.within(ctx, "ratelimit:ip:"+ip, l.cfg.PerIPLimit) {
		allowed = false
	}
	if !l.within(ctx, "ratelimit:email:"+strings.ToLower(email), l.cfg.PerEmailLimit) {
		allowed = false
	}
	return allowed
}

func (l *RateLimiter) within(ctx context.Context, key string, limit int) bool {
	if limit <= 0 {
		return true
	}
	n, err := counters.IncrWindow(ctx, l.store, key, l.cfg.Window())
	if err != nil {
		l.logger.Warn("rate limit counter unavailable", zap.Error(err))
		return true
	}
	return n <= int64(limit)
}
