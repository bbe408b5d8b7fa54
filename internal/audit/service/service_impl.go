package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/tryon/internal/audit/domain"
	"github.com/smallbiznis/tryon/internal/audit/masking"
	"github.com/smallbiznis/tryon/internal/clock"
	obscontext "github.com/smallbiznis/tryon/internal/observability/context"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: p.Clock,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	actorType, actorID := s.resolveActor(ctx, entry)
	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	payload := masking.MaskMetadata(entry.Metadata)

	row := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		AccountID:  entry.AccountID,
		ActorType:  actorType,
		ActorID:    normalize(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   normalize(entry.TargetID),
		Metadata:   datatypes.JSONMap(payload),
		RequestID:  normalize(obscontext.RequestIDFromContext(ctx)),
		CreatedAt:  s.clock.Now(),
	}

	db := tx
	if db == nil {
		db = s.db
	}
	if err := s.repo.Insert(ctx, db, &row); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	if req.AccountID == 0 {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidAccount
	}
	page := req.Pagination.Normalize()

	var cursor *auditdomain.AuditCursor
	if page.PageToken != "" {
		decoded, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.AuditCursor{ID: id, CreatedAt: createdAt}
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		AccountID: req.AccountID,
		Action:    req.Action,
		Cursor:    cursor,
		Limit:     page.PageSize,
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	items, pageInfo, err := pagination.Trim(items, page.PageSize, func(item *auditdomain.AuditLog) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	logs := make([]auditdomain.AuditLog, 0, len(items))
	for _, item := range items {
		logs = append(logs, *item)
	}
	return auditdomain.ListAuditLogResponse{PageInfo: pageInfo, AuditLogs: logs}, nil
}

func (s *Service) resolveActor(ctx context.Context, entry auditdomain.Entry) (string, string) {
	actorType := strings.TrimSpace(string(entry.ActorType))
	actorID := strings.TrimSpace(entry.ActorID)
	if actorType == "" {
		ctxType, ctxID := obscontext.ActorFromContext(ctx)
		actorType = ctxType
		if actorID == "" {
			actorID = ctxID
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, actorID
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
