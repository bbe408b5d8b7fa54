package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSecrets(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/credits"),
		attribute.String("Authorization", "Bearer abc"),
		attribute.String("api_key", "k"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	long := errors.New(strings.Repeat("x", 300))
	if got := SafeError(long); len(got.Error()) != 256 {
		t.Fatalf("expected truncated message, got %d chars", len(got.Error()))
	}
}
