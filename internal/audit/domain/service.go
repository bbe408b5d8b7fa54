package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tryon/pkg/db/pagination"
	"gorm.io/gorm"
)

// Entry describes one audited action.
type Entry struct {
	AccountID  *snowflake.ID
	ActorType  ActorType
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	AccountID snowflake.ID
	Action    string
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"auditLogs"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

type Service interface {
	// Record writes the entry using tx when non-nil so it commits with the
	// caller's transaction.
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

var (
	ErrInvalidAccount   = errors.New("invalid_account")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidAction    = errors.New("invalid_action")
)
