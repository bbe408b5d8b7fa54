package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Product is an item of an account's catalog that the widget can try on.
type Product struct {
	ID        snowflake.ID        `json:"id" gorm:"primaryKey"`
	AccountID snowflake.ID        `json:"-" gorm:"column:account_id;not null;uniqueIndex:ux_products_account_sku,priority:1"`
	Name      string              `json:"name" gorm:"type:text;not null"`
	SKU       string              `json:"sku" gorm:"column:sku;type:text;not null;uniqueIndex:ux_products_account_sku,priority:2"`
	Price     decimal.NullDecimal `json:"price" gorm:"type:numeric(12,2)"`
	PageURL   *string             `json:"page_url" gorm:"column:page_url;type:text"`
	Category  *string             `json:"category" gorm:"type:text;index"`
	Images    pq.StringArray      `json:"images" gorm:"type:text[]"`
	CreatedAt time.Time           `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time           `json:"updated_at" gorm:"not null"`
}

func (Product) TableName() string { return "products" }

// FirstImage returns the product's lead image or an empty string.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
