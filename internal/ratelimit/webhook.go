package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/colegio/internal/config"
	"go.uber.org/zap"
)

const keyWebhook = "colegio:webhook:rl:%s:%s"

// WebhookLimiter throttles inbound payment notifications per provider and
// source address. It fails open: a missing or unreachable redis never blocks
// a payment confirmation.
type WebhookLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	limit  Limit
}

func NewWebhookLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *WebhookLimiter {
	return &WebhookLimiter{
		bucket: bucket,
		log:    log.Named("ratelimit.webhook"),
		limit: Limit{
			Rate:  cfg.RateLimit.WebhookRate,
			Burst: cfg.RateLimit.WebhookBurst,
		},
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.bucket != nil && l.limit.valid()
}

func (l *WebhookLimiter) Allow(ctx context.Context, provider, clientIP string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}
	key := fmt.Sprintf(keyWebhook, strings.TrimSpace(provider), strings.TrimSpace(clientIP))
	decision, err := l.bucket.Take(ctx, key, l.limit)
	if err != nil {
		l.log.Warn("webhook rate limit unavailable", zap.String("provider", provider), zap.Error(err))
		return Decision{Allowed: true}
	}
	return decision
}
