// Package domain contains core types for accounts and sessions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Account is a tenant of the platform. Credits is the live ledger balance;
// it is only ever changed by the ledger through conditional updates.
type Account struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Email          string       `gorm:"type:text;not null;uniqueIndex" json:"email"`
	Username       string       `gorm:"type:text;not null;uniqueIndex" json:"username"`
	PasswordHash   string       `gorm:"column:password_hash;type:text;not null" json:"-"`
	Role           string       `gorm:"type:text;not null;default:'owner'" json:"role"`
	InitialCredits int64        `gorm:"column:initial_credits;not null;default:0" json:"initialCredits"`
	Credits        int64        `gorm:"column:credits;not null;default:0" json:"credits"`
	CreatedAt      time.Time    `gorm:"not null" json:"createdAt"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updatedAt"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// Session represents a persisted login session.
type Session struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	AccountID  snowflake.ID `gorm:"column:account_id;not null;index"`
	TokenHash  string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	UserAgent  string       `gorm:"column:user_agent;type:text"`
	IPAddress  string       `gorm:"column:ip_address;type:text"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt  *time.Time   `gorm:"column:revoked_at"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null"`
	LastSeenAt time.Time    `gorm:"column:last_seen_at;not null"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }
