package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type ActorType string

const (
	ActorTypeSystem  ActorType = "system"
	ActorTypeAccount ActorType = "account"
	ActorTypeAPIKey  ActorType = "api_key"
	ActorTypeWebhook ActorType = "webhook"
)

// AuditLog is an append-only record of a privileged or money-moving action.
type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	AccountID  *snowflake.ID     `gorm:"column:account_id;index:ix_audit_logs_account_time,priority:1" json:"accountId,omitempty"`
	ActorType  string            `gorm:"column:actor_type;type:text;not null" json:"actorType"`
	ActorID    *string           `gorm:"column:actor_id;type:text" json:"actorId,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;type:text;not null" json:"targetType"`
	TargetID   *string           `gorm:"column:target_id;type:text" json:"targetId,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	RequestID  *string           `gorm:"column:request_id;type:text" json:"requestId,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null;index:ix_audit_logs_account_time,priority:2" json:"createdAt"`
}

// TableName sets the database table name.
func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	AccountID snowflake.ID
	Action    string
	Cursor    *AuditCursor
	Limit     int
}
