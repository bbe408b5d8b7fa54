package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type GenerateRequest struct {
	AccountID snowflake.ID
	Photo     string
	ProductID string
	RequestID string
}

type GenerateResult struct {
	ResultImage  string       `json:"resultImage"`
	CreditsLeft  int64        `json:"creditsLeft"`
	UsageEventID snowflake.ID `json:"-"`
}

// GenerationInput is what the image backend receives once credits are paid.
type GenerationInput struct {
	Photo     string
	ProductID string
}

// Generator produces the try-on image.
type Generator interface {
	Generate(ctx context.Context, in GenerationInput) (string, error)
}

type Service interface {
	// Generate debits the per-image price and then runs the generator.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
}

var (
	ErrInvalidPhoto   = errors.New("invalid_photo")
	ErrInvalidAccount = errors.New("invalid_account")
)
