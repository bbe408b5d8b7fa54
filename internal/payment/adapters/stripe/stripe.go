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
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tryon/internal/clock"
	paymentdomain "github.com/smallbiznis/tryon/internal/payment/domain"
)

const (
	ProviderName    = "stripe"
	SignatureHeader = "Stripe-Signature"

	// DefaultTolerance matches the window Stripe's own libraries enforce.
	DefaultTolerance = 5 * time.Minute
)

type Factory struct {
	clock     clock.Clock
	tolerance time.Duration
}

func NewFactory(clk clock.Clock, tolerance time.Duration) *Factory {
	if clk == nil {
		clk = clock.New()
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Factory{clock: clk, tolerance: tolerance}
}

func (f *Factory) Provider() string {
	return ProviderName
}

func (f *Factory) NewAdapter(cfg paymentdomain.AdapterConfig) (paymentdomain.PaymentAdapter, error) {
	secret, ok := readString(cfg.Config, "webhook_secret")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	return &Adapter{
		webhookSecret: secret,
		clock:         f.clock,
		tolerance:     f.tolerance,
	}, nil
}

type Adapter struct {
	webhookSecret string
	clock         clock.Clock
	tolerance     time.Duration
}

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get(SignatureHeader))
	if sigHeader == "" {
		return paymentdomain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseStripeSignature(sigHeader)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}
	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return paymentdomain.ErrInvalidSignature
	}

	expected := Sign(a.webhookSecret, timestamp, payload)
	matched := false
	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			matched = true
			break
		}
	}
	if !matched {
		return paymentdomain.ErrInvalidSignature
	}

	age := a.clock.Now().Sub(time.Unix(unix, 0))
	if age < 0 {
		age = -age
	}
	if age > a.tolerance {
		return paymentdomain.ErrInvalidSignature
	}
	return nil
}

// Sign computes the v1 signature for a payload at the given unix timestamp.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		return a.parseCheckoutSession(event, payload)
	default:
		return nil, paymentdomain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type stripeCheckoutSession struct {
	ID            string         `json:"id"`
	PaymentIntent any            `json:"payment_intent"`
	PaymentStatus string         `json:"payment_status"`
	AmountTotal   int64          `json:"amount_total"`
	Currency      string         `json:"currency"`
	Created       int64          `json:"created"`
	Metadata      map[string]any `json:"metadata"`
}

func (a *Adapter) parseCheckoutSession(event stripeEvent, payload []byte) (*paymentdomain.PaymentEvent, error) {
	var session stripeCheckoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, paymentdomain.ErrInvalidEvent
	}
	if !strings.EqualFold(strings.TrimSpace(session.PaymentStatus), "paid") {
		return nil, paymentdomain.ErrEventIgnored
	}

	accountID, username, err := parseAccount(session.Metadata)
	if err != nil {
		return nil, err
	}

	credits, err := strconv.ParseInt(readMetadataValue(session.Metadata, "credits"), 10, 64)
	if err != nil || credits <= 0 {
		return nil, paymentdomain.ErrInvalidPayload
	}

	amount := decimal.New(session.AmountTotal, -2)
	if raw := readMetadataValue(session.Metadata, "amount"); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil || parsed.IsNegative() {
			return nil, paymentdomain.ErrInvalidPayload
		}
		amount = parsed
	}

	currency := strings.ToLower(strings.TrimSpace(session.Currency))
	if currency == "" {
		currency = "usd"
	}

	return &paymentdomain.PaymentEvent{
		Provider:        ProviderName,
		ProviderEventID: event.ID,
		Type:            paymentdomain.EventTypeCheckoutCompleted,
		AccountID:       accountID,
		Username:        username,
		PaymentRef:      session.ID,
		ChargeRef:       paymentIntentID(session.PaymentIntent),
		Amount:          amount,
		Currency:        currency,
		Credits:         credits,
		OccurredAt:      timestamp(session.Created, event.Created),
		RawPayload:      payload,
	}, nil
}

func parseStripeSignature(header string) (string, []string, error) {
	var timestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		keyValue := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			timestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

// SignatureHeaderValue builds a header value; used by tooling and tests.
func SignatureHeaderValue(secret string, at time.Time, payload []byte) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	return fmt.Sprintf("t=%s,v1=%s", ts, Sign(secret, ts, payload))
}

func timestamp(primary int64, fallback int64) time.Time {
	value := primary
	if value == 0 {
		value = fallback
	}
	if value == 0 {
		return time.Now().UTC()
	}
	return time.Unix(value, 0).UTC()
}

func parseAccount(metadata map[string]any) (snowflake.ID, string, error) {
	if raw := readMetadataValue(metadata, "account_id"); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil || id == 0 {
			return 0, "", paymentdomain.ErrInvalidAccount
		}
		return id, "", nil
	}
	if username := readMetadataValue(metadata, "username"); username != "" {
		return 0, username, nil
	}
	return 0, "", paymentdomain.ErrInvalidAccount
}

func paymentIntentID(value any) string {
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case map[string]any:
		if id, ok := cast["id"].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

func readMetadataValue(metadata map[string]any, key string) string {
	if metadata == nil {
		return ""
	}
	value, ok := metadata[key]
	if !ok {
		return ""
	}
	switch cast := value.(type) {
	case string:
		return strings.TrimSpace(cast)
	case float64:
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case json.Number:
		return cast.String()
	case int64:
		return strconv.FormatInt(cast, 10)
	case int:
		return strconv.Itoa(cast)
	}
	return ""
}

func readString(config map[string]any, key string) (string, bool) {
	value, ok := config[key]
	if !ok {
		return "", false
	}
	cast, ok := value.(string)
	return cast, ok
}
