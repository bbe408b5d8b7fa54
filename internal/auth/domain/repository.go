package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	Create(ctx context.Context, account *Account) error
	FindByID(ctx context.Context, id snowflake.ID) (*Account, error)
	FindByLogin(ctx context.Context, identifier string) (*Account, error)
	ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error)
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}
