package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/internal/product/domain"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()
	conn, err := db.NewTest(&domain.Product{})
	require.NoError(t, err)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)
	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
	})
}

func strPtr(v string) *string { return &v }

func TestCreateDefaultsSKUAndRejectsDuplicates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, domain.UpsertRequest{
		Name:   "Linen Summer Shirt",
		Price:  strPtr("49.999"),
		Images: []string{" https://img.example.com/a.jpg ", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, "linen-summer-shirt", p.SKU)
	assert.Equal(t, "50", p.Price.Decimal.String())
	assert.Equal(t, "https://img.example.com/a.jpg", p.FirstImage())

	_, err = svc.Create(ctx, 1, domain.UpsertRequest{Name: "Another", SKU: "linen-summer-shirt"})
	assert.ErrorIs(t, err, domain.ErrSKUExists)

	// SKUs are unique per account only.
	_, err = svc.Create(ctx, 2, domain.UpsertRequest{Name: "Linen Summer Shirt"})
	assert.NoError(t, err)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, domain.UpsertRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(ctx, 1, domain.UpsertRequest{Name: "Hat", Price: strPtr("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = svc.Create(ctx, 1, domain.UpsertRequest{Name: "Hat", PageURL: strPtr("javascript:alert(1)")})
	assert.ErrorIs(t, err, domain.ErrInvalidURL)

	_, err = svc.Create(ctx, 0, domain.UpsertRequest{Name: "Hat"})
	assert.ErrorIs(t, err, domain.ErrInvalidAccount)
}

func TestUpdateGetDeleteScopedByAccount(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, domain.UpsertRequest{Name: "Hat", SKU: "HAT-1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, domain.UpsertRequest{Name: "Scarf", SKU: "SCARF-1"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, p.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Update(ctx, 1, p.ID.String(), domain.UpsertRequest{Name: "Hat", SKU: "SCARF-1"})
	assert.ErrorIs(t, err, domain.ErrSKUExists)

	updated, err := svc.Update(ctx, 1, p.ID.String(), domain.UpsertRequest{Name: "Wool Hat", SKU: "HAT-1", Category: strPtr("hats")})
	require.NoError(t, err)
	assert.Equal(t, "Wool Hat", updated.Name)

	got, err := svc.Get(ctx, 1, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Wool Hat", got.Name)
	require.NotNil(t, got.Category)
	assert.Equal(t, "hats", *got.Category)

	assert.ErrorIs(t, svc.Delete(ctx, 2, p.ID.String()), domain.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, 1, p.ID.String()))
	_, err = svc.Get(ctx, 1, p.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(ctx, 1, "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestListPaginatesNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var ids []string
	for _, name := range []string{"A", "B", "C"} {
		p, err := svc.Create(ctx, 1, domain.UpsertRequest{Name: name})
		require.NoError(t, err)
		ids = append(ids, p.ID.String())
	}

	first, err := svc.List(ctx, domain.ListRequest{AccountID: 1, Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Products, 2)
	assert.True(t, first.HasMore)
	assert.Equal(t, ids[2], first.Products[0].ID.String())

	second, err := svc.List(ctx, domain.ListRequest{
		AccountID:  1,
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.Products, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, ids[0], second.Products[0].ID.String())

	found, err := svc.FindByIDs(ctx, 1, []string{ids[0], "garbage", "12345"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, "A", found[ids[0]].Name)
}
