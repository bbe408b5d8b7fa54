package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "gorm", err: gorm.ErrDuplicatedKey, want: true},
		{name: "pg", err: fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), want: true},
		{name: "pg other code", err: &pgconn.PgError{Code: "40001"}, want: false},
		{name: "sqlite", err: errors.New("UNIQUE constraint failed: credit_purchases.payment_ref"), want: true},
		{name: "mysql", err: errors.New("Error 1062: Duplicate entry"), want: true},
		{name: "other", err: errors.New("boom"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsDuplicateKeyErr(tc.err); got != tc.want {
				t.Fatalf("IsDuplicateKeyErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
