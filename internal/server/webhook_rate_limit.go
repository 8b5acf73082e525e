package server

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/colegio/internal/observability/context"
	"github.com/smallbiznis/colegio/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/colegio/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/colegio/internal/payment/domain"
	"github.com/smallbiznis/colegio/internal/payment/security"
	"go.uber.org/zap"
)

const webhookResultRateLimited = "rate_limited"

// WebhookRateLimit throttles notifications per provider and source address.
// Without redis, or when redis errors, every request passes. It also tags the
// request context with the provider so every later log line and span carries it.
func (s *Server) WebhookRateLimit(provider string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(obscontext.WithProvider(c.Request.Context(), provider))
		if !s.webhookLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		clientIP := security.ClientIP(paymentdomain.Inbound{
			Header:     c.Request.Header,
			RemoteAddr: c.Request.RemoteAddr,
		})

		res := s.webhookLimiter.Allow(ctx, provider, clientIP)
		if res.Allowed {
			c.Next()
			return
		}

		denyWebhookRateLimit(c, provider, retryAfterSeconds(res.RetryAfter.Seconds()), s.obsMetrics)
	}
}

func denyWebhookRateLimit(c *gin.Context, provider string, retryAfter int, metrics *obsmetrics.Metrics) {
	ctx := c.Request.Context()
	logger.FromContext(ctx).Warn("webhook rate limit exceeded",
		zap.String("provider", provider),
		zap.String("endpoint", normalizeRateLimitEndpoint(c)),
	)
	recordRateLimited(ctx, provider, metrics)

	c.Header("Retry-After", strconv.Itoa(retryAfter))
	abortWebhook(c, ErrRateLimited)
}

func recordRateLimited(ctx context.Context, provider string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordWebhook(ctx, provider, webhookResultRateLimited)
}

func retryAfterSeconds(seconds float64) int {
	if seconds <= 1 {
		return 1
	}
	return int(math.Ceil(seconds))
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	if endpoint := c.FullPath(); endpoint != "" {
		return endpoint
	}
	if c.Request != nil && c.Request.URL.Path != "" {
		return c.Request.URL.Path
	}
	return "unknown"
}
