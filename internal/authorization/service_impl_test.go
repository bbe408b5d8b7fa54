package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tryon/internal/audit/repository"
	auditservice "github.com/smallbiznis/tryon/internal/audit/service"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn, err := db.NewTest(&auditdomain.AuditLog{})
	require.NoError(t, err)
	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)

	node, err := snowflake.NewNode(7)
	require.NoError(t, err)
	audit := auditservice.NewService(auditservice.Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer, AuditSvc: audit}), conn
}

func TestAdminMayGrantAndVerify(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	admin := Actor{AccountID: 10, Role: "admin"}

	require.NoError(t, svc.Authorize(ctx, admin, ObjectLedger, ActionLedgerVerify))
	require.NoError(t, svc.Authorize(ctx, admin, ObjectLedger, ActionLedgerGrant))

	var granted int64
	require.NoError(t, conn.Model(&auditdomain.AuditLog{}).Where("action = ?", "authorization.granted").Count(&granted).Error)
	assert.Equal(t, int64(1), granted)
}

func TestOwnerIsForbidden(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	err := svc.Authorize(ctx, Actor{AccountID: 11, Role: "owner"}, ObjectLedger, ActionLedgerGrant)
	assert.ErrorIs(t, err, ErrForbidden)

	var denied int64
	require.NoError(t, conn.Model(&auditdomain.AuditLog{}).Where("action = ?", "authorization.denied").Count(&denied).Error)
	assert.Equal(t, int64(1), denied)
}

func TestRoleChangeTakesEffect(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{AccountID: 12, Role: "admin"}, ObjectLedger, ActionLedgerVerify))
	err := svc.Authorize(ctx, Actor{AccountID: 12, Role: "owner"}, ObjectLedger, ActionLedgerVerify)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestSystemActorAndValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Authorize(ctx, Actor{System: true}, ObjectLedger, ActionLedgerVerify))
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{}, ObjectLedger, ActionLedgerVerify), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{System: true}, "", ActionLedgerVerify), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, Actor{System: true}, ObjectLedger, " "), ErrInvalidAction)
}
