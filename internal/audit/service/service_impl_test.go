package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	auditrepo "github.com/smallbiznis/tryon/internal/audit/repository"
	"github.com/smallbiznis/tryon/internal/clock"
	"github.com/smallbiznis/tryon/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB) {
	t.Helper()

	conn, err := db.NewTest(&auditdomain.AuditLog{})
	require.NoError(t, err)

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  auditrepo.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)),
	})
	return svc, conn
}

func TestRecordMasksNestedSecrets(t *testing.T) {
	svc, conn := newTestService(t)
	account := snowflake.ID(42)

	err := svc.Record(context.Background(), nil, auditdomain.Entry{
		AccountID:  &account,
		ActorType:  auditdomain.ActorTypeSystem,
		ActorID:    "system",
		Action:     "widget.api_key_rotated",
		TargetType: "widget",
		TargetID:   "7",
		Metadata: map[string]any{
			"old_api_key": "vto_live_abcdef1234",
			"widget":      map[string]any{"new_api_key": "vto_live_zzzz5678"},
			"credits":     5,
		},
	})
	require.NoError(t, err)

	var row auditdomain.AuditLog
	require.NoError(t, conn.First(&row).Error)
	assert.Equal(t, "vto_live_****1234", row.Metadata["old_api_key"])
	nested, ok := row.Metadata["widget"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "vto_live_****5678", nested["new_api_key"])
	assert.EqualValues(t, 5, row.Metadata["credits"])
}

func TestRecordRequiresAction(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Record(context.Background(), nil, auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}
