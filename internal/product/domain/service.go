package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, accountID snowflake.ID, req UpsertRequest) (*Product, error)
	Update(ctx context.Context, accountID snowflake.ID, id string, req UpsertRequest) (*Product, error)
	Delete(ctx context.Context, accountID snowflake.ID, id string) error
	Get(ctx context.Context, accountID snowflake.ID, id string) (*Product, error)
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	// FindByIDs returns the account's products keyed by id; unknown ids are skipped.
	FindByIDs(ctx context.Context, accountID snowflake.ID, ids []string) (map[string]Product, error)
}

type UpsertRequest struct {
	Name     string   `json:"name"`
	SKU      string   `json:"sku"`
	Price    *string  `json:"price"`
	PageURL  *string  `json:"page_url"`
	Category *string  `json:"category"`
	Images   []string `json:"images"`
}

type ListRequest struct {
	pagination.Pagination
	AccountID snowflake.ID
	Category  string
}

type ListResponse struct {
	pagination.PageInfo
	Products []*Product `json:"products"`
}

var (
	ErrInvalidAccount = errors.New("invalid_account")
	ErrInvalidID      = errors.New("invalid_id")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidSKU     = errors.New("invalid_sku")
	ErrInvalidPrice   = errors.New("invalid_price")
	ErrInvalidURL     = errors.New("invalid_page_url")
	ErrSKUExists      = errors.New("sku_exists")
	ErrNotFound       = errors.New("product_not_found")
)
