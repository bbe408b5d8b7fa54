package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Account, error)
	GetAccount(ctx context.Context, id snowflake.ID) (*Account, error)
}

type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// LoginRequest accepts either the email or the username as Identifier.
type LoginRequest struct {
	Identifier string
	Password   string
	UserAgent  string
	IPAddress  string
}

type LoginResult struct {
	Account   *Account
	RawToken  string
	ExpiresAt time.Time
}
