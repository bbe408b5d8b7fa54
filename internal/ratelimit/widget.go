package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tryon/internal/config"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyWidgetAPIKey = "tryon:widget:%s:%s"

// WidgetLimiter throttles public widget endpoints per API key.
type WidgetLimiter struct {
	enabled  bool
	failOpen bool
	rate     float64
	burst    int64

	bucket  *TokenBucket
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

type WidgetLimiterParams struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Client  *redis.Client       `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func NewWidgetLimiter(p WidgetLimiterParams) (*WidgetLimiter, error) {
	limitCfg := p.Cfg.RateLimit
	limiter := &WidgetLimiter{
		failOpen: limitCfg.FailOpen,
		rate:     limitCfg.WidgetRate,
		burst:    limitCfg.WidgetBurst,
		log:      p.Log.Named("ratelimit.widget"),
		metrics:  p.Metrics,
	}
	if !limitCfg.Enabled {
		return limiter, nil
	}
	if p.Client == nil {
		return nil, errors.New("rate limit requires REDIS_ADDR")
	}
	if limitCfg.WidgetRate <= 0 || limitCfg.WidgetBurst <= 0 {
		return nil, errors.New("widget rate limit must be positive")
	}
	limiter.enabled = true
	limiter.bucket = NewTokenBucket(p.Client)
	return limiter, nil
}

func (l *WidgetLimiter) Enabled() bool {
	return l != nil && l.enabled
}

// Allow consumes one token for the endpoint and api key. Redis failures
// are allowed through when the limiter is configured to fail open.
func (l *WidgetLimiter) Allow(ctx context.Context, endpoint, apiKey string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}

	key := fmt.Sprintf(keyWidgetAPIKey, endpoint, strings.TrimSpace(apiKey))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		if l.failOpen {
			l.log.Warn("rate limiter unavailable, allowing request", zap.String("endpoint", endpoint), zap.Error(err))
			l.metrics.RecordRateLimitAllowed(ctx, endpoint)
			return &Result{Allowed: true, Limit: l.burst}, nil
		}
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "backend_error")
		return nil, err
	}

	if res.Allowed {
		l.metrics.RecordRateLimitAllowed(ctx, endpoint)
	} else {
		l.metrics.RecordRateLimitDenied(ctx, endpoint, "exhausted")
	}
	return res, nil
}
