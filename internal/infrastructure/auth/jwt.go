// Package auth implements the token service: HS256-signed access/refresh
// JWTs with one-time refresh rotation backed by a persistent token store.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type tokenClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	TokenType string `json:"type"`
}

// TokenService implements ports.TokenService with a symmetric signing key.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	tokens     ports.RefreshTokenStore
	users      ports.UserRepository
}

func NewTokenService(secret []byte, accessTTL, refreshTTL time.Duration, tokens ports.RefreshTokenStore, users ports.UserRepository) *TokenService {
	return &TokenService{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		tokens:     tokens,
		users:      users,
	}
}

func (s *TokenService) ServiceSignature() string { return "token_svc" }

// Issue signs a new access/refresh pair and persists the digest of the
// encoded refresh token, so verification is a single indexed lookup.
func (s *TokenService) Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	now := time.Now()

	accessClaims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
		Email:     user.Email,
		TokenType: tokenTypeAccess,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshExpires := now.Add(s.refreshTTL)
	// The jti keeps otherwise-identical refresh claims from colliding on
	// the stored digest across reissues.
	refreshClaims := tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExpires),
			ID:        uuid.NewString(),
		},
		TokenType: tokenTypeRefresh,
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := s.tokens.Create(ctx, &domain.RefreshToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hashToken(refreshToken),
		ExpiresAt: refreshExpires.UTC(),
		CreatedAt: now.UTC(),
	}); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// VerifyAccess returns the claims of a valid access token. Signature
// failure, expiry, and type confusion all yield ErrInvalidToken.
func (s *TokenService) VerifyAccess(token string) (*domain.AccessClaims, error) {
	claims, err := s.parse(token)
	if err != nil || claims.TokenType != tokenTypeAccess {
		return nil, domerrors.ErrInvalidToken
	}
	return &domain.AccessClaims{UserID: claims.Subject, Email: claims.Email}, nil
}

// Rotate burns the presented refresh token and issues a fresh pair. The
// conditional revoke in the store decides the winner of concurrent
// rotations of the same token; losers fail closed without issuing.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.parse(refreshToken)
	if err != nil || claims.TokenType != tokenTypeRefresh {
		return nil, domerrors.ErrInvalidToken
	}

	row, err := s.tokens.GetByHash(ctx, hashToken(refreshToken))
	if err != nil {
		return nil, fmt.Errorf("look up refresh token: %w", err)
	}
	if row == nil || time.Now().After(row.ExpiresAt) {
		return nil, domerrors.ErrInvalidToken
	}

	revoked, err := s.tokens.Revoke(ctx, row.TokenHash)
	if err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !revoked {
		// Already burned: a replay or a lost rotation race.
		return nil, domerrors.ErrInvalidToken
	}

	user, err := s.users.GetByID(ctx, row.UserID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, domerrors.ErrInvalidToken
	}
	return s.Issue(ctx, user)
}

// Revoke marks the matching token revoked (logout). Idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) (bool, error) {
	return s.tokens.Revoke(ctx, hashToken(refreshToken))
}

// RevokeAll revokes every live refresh token for a user ("log out
// everywhere").
func (s *TokenService) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.tokens.RevokeAllForUser(ctx, userID)
}

func (s *TokenService) parse(token string) (*tokenClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return nil, domerrors.ErrInvalidToken
	}
	return claims, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

var _ ports.TokenService = (*TokenService)(nil)
