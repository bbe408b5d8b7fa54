package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/smallbiznis/tryon/internal/clock"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func newAdapter(t *testing.T) paymentdomain.PaymentAdapter {
	t.Helper()
	adapter, err := NewFactory(clock.NewFakeClock(now), time.Minute).NewAdapter(paymentdomain.AdapterConfig{
		Provider: ProviderName,
		Config:   map[string]any{"webhook_secret": "whsec_test"},
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter
}

func TestNewAdapterRequiresSecret(t *testing.T) {
	_, err := NewFactory(nil, 0).NewAdapter(paymentdomain.AdapterConfig{Config: map[string]any{"webhook_secret": " "}})
	if !errors.Is(err, paymentdomain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	payload := []byte(`{"id":"evt_123","type":"checkout.session.completed","data":{"object":{}}}`)
	adapter := newAdapter(t)

	tests := []struct {
		name   string
		header string
		valid  bool
	}{
		{"valid", buildStripeSignatureHeader("whsec_test", payload, now.Unix()), true},
		{"wrong secret", buildStripeSignatureHeader("wrong", payload, now.Unix()), false},
		{"stale timestamp", buildStripeSignatureHeader("whsec_test", payload, now.Add(-2*time.Minute).Unix()), false},
		{"future timestamp", buildStripeSignatureHeader("whsec_test", payload, now.Add(2*time.Minute).Unix()), false},
		{"missing v1", fmt.Sprintf("t=%d", now.Unix()), false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := http.Header{}
			headers.Set(SignatureHeader, tt.header)
			err := adapter.Verify(context.Background(), payload, headers)
			if tt.valid && err != nil {
				t.Fatalf("expected valid signature, got %v", err)
			}
			if !tt.valid && !errors.Is(err, paymentdomain.ErrInvalidSignature) {
				t.Fatalf("expected invalid signature, got %v", err)
			}
		})
	}
}

func TestSignatureHeaderValueRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_rt"}`)
	headers := http.Header{}
	headers.Set(SignatureHeader, SignatureHeaderValue("whsec_test", now, payload))
	if err := newAdapter(t).Verify(context.Background(), payload, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func checkoutEvent(eventType, paymentStatus string, metadata map[string]any) map[string]any {
	return map[string]any{
		"id":      "evt_cs",
		"type":    eventType,
		"created": now.Unix(),
		"data": map[string]any{
			"object": map[string]any{
				"id":             "cs_test_1",
				"payment_intent": "pi_1",
				"payment_status": paymentStatus,
				"amount_total":   1999,
				"currency":       "EUR",
				"metadata":       metadata,
			},
		},
	}
}

func TestParseCheckoutSession(t *testing.T) {
	tests := []struct {
		name       string
		event      any
		wantErr    error
		wantAmount string
		wantUser   string
	}{{
		name:       "metadata amount wins",
		event:      checkoutEvent("checkout.session.completed", "paid", map[string]any{"account_id": "1234", "credits": "100", "amount": "20.00"}),
		wantAmount: "20",
	}, {
		name:       "amount_total fallback",
		event:      checkoutEvent("checkout.session.completed", "paid", map[string]any{"account_id": "1234", "credits": 100}),
		wantAmount: "19.99",
	}, {
		name:       "username fallback",
		event:      checkoutEvent("checkout.session.async_payment_succeeded", "paid", map[string]any{"username": "alice", "credits": "5"}),
		wantAmount: "19.99",
		wantUser:   "alice",
	}, {
		name:    "unpaid is ignored",
		event:   checkoutEvent("checkout.session.completed", "unpaid", map[string]any{"account_id": "1234", "credits": "5"}),
		wantErr: paymentdomain.ErrEventIgnored,
	}, {
		name:    "other types are ignored",
		event:   checkoutEvent("invoice.paid", "paid", nil),
		wantErr: paymentdomain.ErrEventIgnored,
	}, {
		name:    "missing credits",
		event:   checkoutEvent("checkout.session.completed", "paid", map[string]any{"account_id": "1234"}),
		wantErr: paymentdomain.ErrInvalidPayload,
	}, {
		name:    "missing account",
		event:   checkoutEvent("checkout.session.completed", "paid", map[string]any{"credits": "5"}),
		wantErr: paymentdomain.ErrInvalidAccount,
	}}

	adapter := newAdapter(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := json.Marshal(tt.event)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
			event, err := adapter.Parse(context.Background(), payload)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse event: %v", err)
			}
			if event.PaymentRef != "cs_test_1" || event.ChargeRef != "pi_1" {
				t.Fatalf("unexpected refs %q %q", event.PaymentRef, event.ChargeRef)
			}
			if event.Amount.String() != tt.wantAmount {
				t.Fatalf("expected amount %s, got %s", tt.wantAmount, event.Amount)
			}
			if event.Currency != "eur" {
				t.Fatalf("expected currency eur, got %s", event.Currency)
			}
			if event.Username != tt.wantUser {
				t.Fatalf("expected username %q, got %q", tt.wantUser, event.Username)
			}
			if tt.wantUser == "" && event.AccountID.Int64() != 1234 {
				t.Fatalf("expected account 1234, got %d", event.AccountID)
			}
		})
	}
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	_, err := newAdapter(t).Parse(context.Background(), []byte("{"))
	if !errors.Is(err, paymentdomain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}
