package auth

import (
	"context"

	"github.com/carbonbits/farmdb/internal/application/ports"
)

// Logout revokes the presented refresh token. Revoking a token that is
// unknown or already revoked is not an error.
type Logout struct {
	tokens ports.TokenService
}

func NewLogout(tokens ports.TokenService) *Logout {
	return &Logout{tokens: tokens}
}

func (uc *Logout) Execute(ctx context.Context, refreshToken string) error {
	_, err := uc.tokens.Revoke(ctx, refreshToken)
	return err
}
