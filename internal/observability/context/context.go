package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type accountIDKey struct{}
type actorKey struct{}

type actor struct {
	kind string
	id   string
}

// WithRequestID stores the request id used for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDKey{}).(string)
	return value
}

// WithAccountID stores the authenticated account id for log correlation.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return ctx
	}
	return context.WithValue(ctx, accountIDKey{}, accountID)
}

func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(accountIDKey{}).(string)
	return value
}

// WithActor records how the caller authenticated (session, api_key, system).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		kind: strings.TrimSpace(actorType),
		id:   strings.TrimSpace(actorID),
	})
}

func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	value, ok := ctx.Value(actorKey{}).(actor)
	if !ok {
		return "", ""
	}
	return value.kind, value.id
}
