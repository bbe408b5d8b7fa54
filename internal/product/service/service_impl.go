package service

import (
	"context"
	"net/url"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/product/domain"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/smallbiznis/tryon/pkg/db/option"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
	"github.com/smallbiznis/tryon/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxListPageSize = 100

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	productrepo repository.Repository[domain.Product]
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("product.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		productrepo: repository.ProvideStore[domain.Product](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, accountID snowflake.ID, req domain.UpsertRequest) (*domain.Product, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}

	now := s.clock.Now()
	p := &domain.Product{
		ID:        s.genID.Generate(),
		AccountID: accountID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := applyUpsert(p, req); err != nil {
		return nil, err
	}

	existing, err := s.productrepo.FindOne(ctx, &domain.Product{AccountID: accountID, SKU: p.SKU})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrSKUExists
	}

	if err := s.productrepo.Create(ctx, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUExists
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, accountID snowflake.ID, id string, req domain.UpsertRequest) (*domain.Product, error) {
	item, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if err := applyUpsert(item, req); err != nil {
		return nil, err
	}

	other, err := s.productrepo.FindOne(ctx, &domain.Product{AccountID: accountID, SKU: item.SKU})
	if err != nil {
		return nil, err
	}
	if other != nil && other.ID != item.ID {
		return nil, domain.ErrSKUExists
	}

	item.UpdatedAt = s.clock.Now()
	_, err = s.productrepo.Update(ctx, item.ID, map[string]any{
		"name":       item.Name,
		"sku":        item.SKU,
		"price":      item.Price,
		"page_url":   item.PageURL,
		"category":   item.Category,
		"images":     item.Images,
		"updated_at": item.UpdatedAt,
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrSKUExists
		}
		return nil, err
	}
	return item, nil
}

func (s *Service) Delete(ctx context.Context, accountID snowflake.ID, id string) error {
	item, err := s.Get(ctx, accountID, id)
	if err != nil {
		return err
	}
	affected, err := s.productrepo.Delete(ctx, &domain.Product{ID: item.ID, AccountID: accountID})
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) Get(ctx context.Context, accountID snowflake.ID, id string) (*domain.Product, error) {
	if accountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || productID == 0 {
		return nil, domain.ErrInvalidID
	}

	item, err := s.productrepo.FindOne(ctx, &domain.Product{ID: productID, AccountID: accountID})
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	if req.AccountID == 0 {
		return nil, domain.ErrInvalidAccount
	}
	page := req.Pagination.Normalize()
	if page.PageSize > maxListPageSize {
		page.PageSize = maxListPageSize
	}

	opts := []option.QueryOption{
		option.WithOrder("id", true),
		option.WithLimit(page.PageSize + 1),
	}
	if category := strings.TrimSpace(req.Category); category != "" {
		opts = append(opts, option.WithWhere("category = ?", category))
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		cursorID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		opts = append(opts, option.WithWhere("id < ?", cursorID))
	}

	items, err := s.productrepo.Find(ctx, &domain.Product{AccountID: req.AccountID}, opts...)
	if err != nil {
		return nil, err
	}

	items, info, err := pagination.Trim(items, page.PageSize, func(p *domain.Product) pagination.Cursor {
		return pagination.Cursor{ID: p.ID.String()}
	})
	if err != nil {
		return nil, err
	}
	return &domain.ListResponse{PageInfo: info, Products: items}, nil
}

func (s *Service) FindByIDs(ctx context.Context, accountID snowflake.ID, ids []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(ids))
	parsed := make([]snowflake.ID, 0, len(ids))
	for _, raw := range ids {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id == 0 {
			continue
		}
		parsed = append(parsed, id)
	}
	if accountID == 0 || len(parsed) == 0 {
		return out, nil
	}

	items, err := s.productrepo.Find(ctx, &domain.Product{AccountID: accountID}, option.WithWhere("id IN ?", parsed))
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID.String()] = *item
	}
	return out, nil
}

func applyUpsert(p *domain.Product, req domain.UpsertRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.ErrInvalidName
	}

	sku := strings.TrimSpace(req.SKU)
	if sku == "" {
		sku = slug.Make(name)
	}
	if sku == "" {
		return domain.ErrInvalidSKU
	}

	price := decimal.NullDecimal{}
	if req.Price != nil && strings.TrimSpace(*req.Price) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(*req.Price))
		if err != nil || parsed.IsNegative() {
			return domain.ErrInvalidPrice
		}
		price = decimal.NewNullDecimal(parsed.Round(2))
	}

	pageURL := trimmedPtr(req.PageURL)
	if pageURL != nil {
		u, err := url.Parse(*pageURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return domain.ErrInvalidURL
		}
	}

	images := make(pq.StringArray, 0, len(req.Images))
	for _, image := range req.Images {
		if image = strings.TrimSpace(image); image != "" {
			images = append(images, image)
		}
	}

	p.Name = name
	p.SKU = sku
	p.Price = price
	p.PageURL = pageURL
	p.Category = trimmedPtr(req.Category)
	p.Images = images
	return nil
}

func trimmedPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
