package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tryon/internal/observability/logger"
	"go.uber.org/zap"
)

const rateLimitReasonAPIKeyRate = "api-key-rate"

// WidgetRateLimit throttles public widget endpoints per api key. It must run
// after WidgetKeyRequired.
func (s *Server) WidgetRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.widgetLimiter == nil || !s.widgetLimiter.Enabled() {
			c.Next()
			return
		}

		apiKey := c.GetString(contextAPIKeyKey)
		if apiKey == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		endpoint := normalizeRateLimitEndpoint(c)
		ctx := c.Request.Context()
		res, err := s.widgetLimiter.Allow(ctx, endpoint, apiKey)
		if err != nil {
			logger.WithContext(ctx, s.log).Warn("widget rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}

		if res.Limit > 0 {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
		}
		if !res.Allowed {
			logger.WithContext(ctx, s.log).Warn("widget rate limit exceeded",
				zap.String("reason", rateLimitReasonAPIKeyRate),
				zap.String("endpoint", endpoint),
			)
			c.Header("Retry-After", retryAfterSeconds(res.RetryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonAPIKeyRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Next()
	}
}

func retryAfterSeconds(d time.Duration) string {
	seconds := int64(d / time.Second)
	if d%time.Second != 0 {
		seconds++
	}
	if seconds < 1 {
		seconds = 1
	}
	return strconv.FormatInt(seconds, 10)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
