package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	creditDebits       metric.Int64Counter
	creditsConsumed    metric.Int64Counter
	debitRejections    metric.Int64Counter
	creditPurchases    metric.Int64Counter
	creditsPurchased   metric.Int64Counter
	paymentEvents      metric.Int64Counter
	ledgerDrift        metric.Int64Counter
	widgetEvents       metric.Int64Counter
	rateLimitAllowed   metric.Int64Counter
	rateLimitDenied    metric.Int64Counter
	reportBuildLatency metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "tryon"
	}
	meter := provider.Meter(name)

	m := &Metrics{}
	counters := []struct {
		target *metric.Int64Counter
		name   string
		desc   string
	}{
		{&m.creditDebits, "tryon_credit_debits_total", "Successful ledger debits."},
		{&m.creditsConsumed, "tryon_credits_consumed_total", "Credits removed by debits."},
		{&m.debitRejections, "tryon_credit_debit_rejections_total", "Debits rejected before mutation."},
		{&m.creditPurchases, "tryon_credit_purchases_total", "Credit purchases applied to the ledger."},
		{&m.creditsPurchased, "tryon_credits_purchased_total", "Credits added by purchases and grants."},
		{&m.paymentEvents, "tryon_payment_events_total", "Payment webhook deliveries by outcome."},
		{&m.ledgerDrift, "tryon_ledger_drift_total", "Accounts whose stored balance disagrees with the event log."},
		{&m.widgetEvents, "tryon_widget_events_total", "Widget analytics events ingested."},
		{&m.rateLimitAllowed, "tryon_rate_limit_allowed_total", "Requests admitted by the rate limiter."},
		{&m.rateLimitDenied, "tryon_rate_limit_denied_total", "Requests rejected by the rate limiter."},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, err
		}
		*c.target = counter
	}

	latency, err := meter.Float64Histogram("tryon_usage_report_duration_seconds",
		metric.WithDescription("Usage report generation latency."),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	m.reportBuildLatency = latency

	return m, nil
}

// RecordDebit increments debit counters.
func (m *Metrics) RecordDebit(ctx context.Context, action string, credits int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("action", strings.TrimSpace(action)))...)
	m.creditDebits.Add(ctx, 1, attrs)
	m.creditsConsumed.Add(ctx, credits, attrs)
}

// RecordDebitRejected counts debits refused before any mutation.
func (m *Metrics) RecordDebitRejected(ctx context.Context, action, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("action", strings.TrimSpace(action)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.debitRejections.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCreditPurchase increments purchase counters.
func (m *Metrics) RecordCreditPurchase(ctx context.Context, provider string, credits int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(FilterAttributes(attribute.String("provider", strings.TrimSpace(provider)))...)
	m.creditPurchases.Add(ctx, 1, attrs)
	m.creditsPurchased.Add(ctx, credits, attrs)
}

// RecordPaymentEvent increments payment event counts.
func (m *Metrics) RecordPaymentEvent(ctx context.Context, provider, eventType, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("provider", strings.TrimSpace(provider)),
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.paymentEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordLedgerDrift counts a reconciliation mismatch.
func (m *Metrics) RecordLedgerDrift(ctx context.Context, source string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("source_type", strings.TrimSpace(source)))
	m.ledgerDrift.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordWidgetEvent increments widget event counts.
func (m *Metrics) RecordWidgetEvent(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.widgetEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveReportDuration records how long a usage report took to build.
func (m *Metrics) ObserveReportDuration(ctx context.Context, period string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("period", strings.TrimSpace(period)))
	m.reportBuildLatency.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"action":      {},
	"endpoint":    {},
	"status_code": {},
	"provider":    {},
	"event_type":  {},
	"outcome":     {},
	"source_type": {},
	"reason":      {},
	"period":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
