package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

// Actor is the authenticated principal asking for a capability.
type Actor struct {
	AccountID snowflake.ID
	Role      string
	// System marks internal callers such as the admin CLI.
	System bool
}

type Service interface {
	Authorize(ctx context.Context, actor Actor, object string, action string) error
}

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrForbidden     = errors.New("forbidden")
)
