package auth

import (
	"context"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
)

// Refresh rotates a refresh token: the presented token is revoked and a
// fresh pair is issued. A token rotates at most once.
type Refresh struct {
	tokens ports.TokenService
}

func NewRefresh(tokens ports.TokenService) *Refresh {
	return &Refresh{tokens: tokens}
}

func (uc *Refresh) Execute(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	return uc.tokens.Rotate(ctx, refreshToken)
}
