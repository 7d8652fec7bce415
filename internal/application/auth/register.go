// Package auth holds the application use cases for account registration,
// password login, and token lifecycle. Passkey ceremonies are orchestrated
// by the webauthn engine and wired directly at the HTTP layer.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
)

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type RegisterResult struct {
	User   *domain.User
	Tokens *domain.TokenPair
}

// Register creates an account with a password credential and signs the new
// user in immediately.
type Register struct {
	users     ports.UserRepository
	passwords ports.PasswordCredentialRepository
	hasher    ports.PasswordHasher
	tokens    ports.TokenService
}

func NewRegister(users ports.UserRepository, passwords ports.PasswordCredentialRepository, hasher ports.PasswordHasher, tokens ports.TokenService) *Register {
	return &Register{users: users, passwords: passwords, hasher: hasher, tokens: tokens}
}

func (uc *Register) Execute(ctx context.Context, input RegisterInput) (*RegisterResult, error) {
	existing, err := uc.users.GetByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domerrors.ErrEmailTaken
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:          uuid.NewString(),
		Email:       input.Email,
		DisplayName: input.DisplayName,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	hash, err := uc.hasher.Hash(input.Password)
	if err != nil {
		return nil, err
	}
	if err := uc.passwords.Upsert(ctx, user.ID, hash); err != nil {
		return nil, err
	}

	pair, err := uc.tokens.Issue(ctx, user)
	if err != nil {
		return nil, err
	}
	return &RegisterResult{User: user, Tokens: pair}, nil
}
