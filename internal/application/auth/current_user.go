package auth

import (
	"context"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
)

// CurrentUser resolves a bearer access token to an active user. The
// middleware runs it on every authenticated request, so a disabled account
// loses access as soon as its current access token is next presented.
type CurrentUser struct {
	tokens ports.TokenService
	users  ports.UserRepository
}

func NewCurrentUser(tokens ports.TokenService, users ports.UserRepository) *CurrentUser {
	return &CurrentUser{tokens: tokens, users: users}
}

func (uc *CurrentUser) Execute(ctx context.Context, accessToken string) (*domain.User, error) {
	claims, err := uc.tokens.VerifyAccess(accessToken)
	if err != nil {
		return nil, domerrors.ErrInvalidToken
	}
	user, err := uc.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		return nil, domerrors.ErrInvalidToken
	}
	return user, nil
}
