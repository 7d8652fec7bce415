package ports

import (
	"context"

	"github.com/carbonbits/farmdb/internal/domain"
)

// Service is implemented by every concrete service and identifies it in
// logs.
type Service interface {
	ServiceSignature() string
}

// PasswordHasher hashes and verifies passwords (Argon2id).
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
	// NeedsRehash reports whether the hash's embedded parameters no longer
	// match the current target cost. Callers re-hash inline on the next
	// successful verification.
	NeedsRehash(hash string) bool
}

// TokenService issues, verifies, and rotates signed access/refresh tokens.
type TokenService interface {
	// Issue signs a new access/refresh pair for the user and persists the
	// refresh token's digest.
	Issue(ctx context.Context, user *domain.User) (*domain.TokenPair, error)
	// VerifyAccess returns the claims of a valid access token or
	// errors.ErrInvalidToken. It never panics past this boundary.
	VerifyAccess(token string) (*domain.AccessClaims, error)
	// Rotate burns the presented refresh token and issues a fresh pair.
	// A refresh token rotates at most once, even under concurrent calls.
	Rotate(ctx context.Context, refreshToken string) (*domain.TokenPair, error)
	// Revoke marks the matching token revoked. Idempotent; reports whether
	// a row was affected.
	Revoke(ctx context.Context, refreshToken string) (bool, error)
	// RevokeAll revokes every live refresh token for a user.
	RevokeAll(ctx context.Context, userID string) (int64, error)
}
