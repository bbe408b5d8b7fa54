package option

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type queryOptionFunc func(db *gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

// WithLimit caps the number of rows. Non-positive values are ignored.
func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

// WithOrder orders by a column. Only identifier characters are accepted.
func WithOrder(column string, desc bool) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column = strings.TrimSpace(column)
		if !isIdentifier(column) {
			return db
		}
		dir := "ASC"
		if desc {
			dir = "DESC"
		}
		return db.Order(fmt.Sprintf("%s %s", column, dir))
	})
}

// WithWhere appends an arbitrary condition.
func WithWhere(query string, args ...any) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	})
}

func isIdentifier(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
