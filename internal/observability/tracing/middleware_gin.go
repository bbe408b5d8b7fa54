package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/tryon/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. The span is renamed to the
// matched route and tagged with the account and actor resolved by auth
// middleware further down the chain.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("tryon/http")
	return func(c *gin.Context) {
		method := strings.ToUpper(c.Request.Method)
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ctx = withRequestBaggage(ctx, span)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", c.Writer.Status()),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		)...)
		span.SetAttributes(principalAttributes(c.Request.Context())...)

		if c.Writer.Status() < http.StatusInternalServerError {
			return
		}
		if lastErr := c.Errors.Last(); lastErr != nil {
			if safeErr := SafeError(lastErr.Err); safeErr != nil {
				span.RecordError(safeErr)
			}
		}
		span.SetStatus(codes.Error, "request error")
	}
}

func withRequestBaggage(ctx context.Context, span trace.Span) context.Context {
	requestID := obscontext.RequestIDFromContext(ctx)
	if requestID == "" {
		return ctx
	}
	span.SetAttributes(attribute.String("request_id", requestID))

	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

func principalAttributes(ctx context.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if accountID := obscontext.AccountIDFromContext(ctx); accountID != "" {
		attrs = append(attrs, attribute.String("account_id", accountID))
	}
	if actorType, _ := obscontext.ActorFromContext(ctx); actorType != "" {
		attrs = append(attrs, attribute.String("actor_type", actorType))
	}
	return attrs
}
