package auth

import (
	"context"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
)

type PasswordLoginInput struct {
	Email    string
	Password string
}

type PasswordLoginResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// PasswordLogin verifies an email/password pair and issues a token pair.
// Unknown emails and wrong passwords are indistinguishable to the caller.
type PasswordLogin struct {
	users     ports.UserRepository
	passwords ports.PasswordCredentialRepository
	hasher    ports.PasswordHasher
	tokens    ports.TokenService
}

func NewPasswordLogin(users ports.UserRepository, passwords ports.PasswordCredentialRepository, hasher ports.PasswordHasher, tokens ports.TokenService) *PasswordLogin {
	return &PasswordLogin{users: users, passwords: passwords, hasher: hasher, tokens: tokens}
}

func (uc *PasswordLogin) Execute(ctx context.Context, input PasswordLoginInput) (*PasswordLoginResult, error) {
	user, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domerrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, domerrors.ErrAccountDisabled
	}

	hash, err := uc.passwords.GetHash(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if hash == "" || !uc.hasher.Verify(input.Password, hash) {
		return nil, domerrors.ErrInvalidCredentials
	}

	// Upgrade the stored hash to current parameters while the plaintext is
	// in hand. Login succeeds even if the upgrade does not.
	if uc.hasher.NeedsRehash(hash) {
		if fresh, err := uc.hasher.Hash(input.Password); err == nil {
			_ = uc.passwords.Upsert(ctx, user.ID, fresh)
		}
	}

	pair, err := uc.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &PasswordLoginResult{User: user, Tokens: pair}, nil
}
