package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/analytics/domain"
	"github.com/smallbiznis/tryon/internal/clock"
	obsmetrics "github.com/smallbiznis/tryon/internal/observability/metrics"
	productdomain "github.com/smallbiznis/tryon/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxEventNameLength = 64

// reservedKeys are promoted to columns and never copied into event_data.
var reservedKeys = map[string]struct{}{
	"apiKey":     {},
	"event":      {},
	"timestamp":  {},
	"productId":  {},
	"product_id": {},
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Products   productdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	products productdomain.Service
	metrics  *obsmetrics.Metrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("analytics.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		products: p.Products,
		metrics:  p.ObsMetrics,
	}
}

func (s *Service) Ingest(ctx context.Context, accountID snowflake.ID, payload map[string]any) (*domain.WidgetEvent, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	eventName := strings.TrimSpace(stringField(payload, "event"))
	if eventName == "" || len(eventName) > maxEventNameLength {
		return nil, domain.ErrInvalidEvent
	}

	now := s.clock.Now()
	occurredAt := now
	if raw := stringField(payload, "timestamp"); raw != "" {
		if parsed, ok := parseTimestamp(raw); ok {
			occurredAt = parsed
		}
	}

	productID := stringField(payload, "productId")
	if productID == "" {
		productID = stringField(payload, "product_id")
	}

	data := datatypes.JSONMap{}
	for key, value := range payload {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		data[key] = value
	}

	event := &domain.WidgetEvent{
		ID:         s.genID.Generate(),
		AccountID:  accountID,
		Event:      eventName,
		ProductID:  optional(productID),
		VisitorID:  optional(stringField(payload, "visitorId")),
		SessionID:  optional(stringField(payload, "sessionVisitorId")),
		EventData:  data,
		OccurredAt: occurredAt,
		CreatedAt:  now,
	}
	if err := s.repo.Insert(ctx, s.db, event); err != nil {
		return nil, err
	}

	s.metrics.RecordWidgetEvent(ctx, eventName)
	return event, nil
}

func (s *Service) Summary(ctx context.Context, req domain.SummaryRequest) (*domain.Summary, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	period, err := domain.ParsePeriod(req.Period)
	if err != nil {
		return nil, err
	}
	w, err := domain.ResolveWindows(period, req.Start, req.End, s.clock.Now())
	if err != nil {
		return nil, err
	}

	summary := &domain.Summary{
		Period: period,
		KPIs: domain.KPIs{
			Start:     domain.FormatDate(w.Start),
			End:       domain.FormatDate(w.End),
			PrevStart: domain.FormatDate(w.PrevStart),
			PrevEnd:   domain.FormatDate(w.PrevEnd),
		},
	}

	var top []domain.ProductCount
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.Counts(ctx, tx, req.AccountID, w.Start, w.EndExclusive())
		if err != nil {
			return fmt.Errorf("count current window: %w", err)
		}
		prev, err := s.repo.Counts(ctx, tx, req.AccountID, w.PrevStart, w.PrevEndExclusive())
		if err != nil {
			return fmt.Errorf("count previous window: %w", err)
		}
		summary.KPIs.Counts = current
		summary.KPIs.Prev = prev

		times, err := s.repo.EventTimes(ctx, tx, req.AccountID, domain.EventTryOnSuccess, domain.TrendStart(period, w), w.EndExclusive())
		if err != nil {
			return fmt.Errorf("load trend: %w", err)
		}
		summary.Trends.TryOns = domain.BuildTrend(period, w, times)

		top, err = s.repo.TopProducts(ctx, tx, req.AccountID, w.Start, w.EndExclusive(), domain.TopProductsLimit)
		if err != nil {
			return fmt.Errorf("load top products: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	summary.TopProducts, err = s.resolveTopProducts(ctx, req.AccountID, top)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *Service) resolveTopProducts(ctx context.Context, accountID snowflake.ID, rows []domain.ProductCount) ([]domain.TopProduct, error) {
	out := make([]domain.TopProduct, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
	}
	catalog := map[string]productdomain.Product{}
	if s.products != nil {
		found, err := s.products.FindByIDs(ctx, accountID, ids)
		if err != nil {
			return nil, err
		}
		catalog = found
	}

	for _, row := range rows {
		item := domain.TopProduct{ProductID: row.ProductID, Name: row.ProductID, Count: row.Count}
		if product, ok := catalog[row.ProductID]; ok {
			item.Name = product.Name
			if image := product.FirstImage(); image != "" {
				item.Image = &image
			}
		}
		out = append(out, item)
	}
	return out, nil
}

// stringField reads a string or number from a decoded JSON payload.
func stringField(payload map[string]any, key string) string {
	switch v := payload[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}

func parseTimestamp(raw string) (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
