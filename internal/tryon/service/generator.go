package service

import (
	"context"

	"github.com/smallbiznis/tryon/internal/tryon/domain"
)

// EchoGenerator returns the input photo unchanged. It stands in for the
// model backend, which is deployed separately.
type EchoGenerator struct{}

func NewEchoGenerator() domain.Generator {
	return EchoGenerator{}
}

func (EchoGenerator) Generate(_ context.Context, in domain.GenerationInput) (string, error) {
	return in.Photo, nil
}
