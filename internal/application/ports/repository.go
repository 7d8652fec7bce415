package ports

import (
	"context"

	"github.com/carbonbits/farmdb/internal/domain"
)

// UserRepository defines persistence for users. Email lookups are
// case-insensitive; implementations lower-case before write and lookup.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, userID string) (*domain.User, error)
}

// PasswordCredentialRepository stores at most one password hash per user.
type PasswordCredentialRepository interface {
	// Upsert sets the password hash for a user, replacing any existing one.
	Upsert(ctx context.Context, userID, passwordHash string) error
	// GetHash returns the stored hash, or "" when the user has no password.
	GetHash(ctx context.Context, userID string) (string, error)
}

// PasskeyCredentialRepository stores WebAuthn credentials.
type PasskeyCredentialRepository interface {
	Create(ctx context.Context, cred *domain.PasskeyCredential) error
	// GetByCredentialID looks up by the authenticator-issued handle.
	// Returns nil when unknown.
	GetByCredentialID(ctx context.Context, credentialID []byte) (*domain.PasskeyCredential, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.PasskeyCredential, error)
	// UpdateSignCount persists the verifier's new counter and stamps
	// last_used_at.
	UpdateSignCount(ctx context.Context, id string, signCount uint32) error
	// Delete removes a passkey owned by userID. Reports whether a row was
	// deleted.
	Delete(ctx context.Context, userID, passkeyID string) (bool, error)
}

// RefreshTokenStore stores refresh-token records keyed by token digest.
// Rows are never deleted; revocation is a one-way transition.
type RefreshTokenStore interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	// GetByHash returns nil when no row matches.
	GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error)
	// Revoke marks the matching non-revoked row revoked. Reports whether a
	// row transitioned; false for unknown or already-revoked hashes. Under
	// concurrent calls with the same hash at most one caller observes true.
	Revoke(ctx context.Context, tokenHash string) (bool, error)
	// RevokeAllForUser bulk-revokes every non-revoked row for a user and
	// returns the number of rows affected.
	RevokeAllForUser(ctx context.Context, userID string) (int64, error)
}

// FieldRepository persists farm fields.
type FieldRepository interface {
	Create(ctx context.Context, field *domain.FarmField) error
	List(ctx context.Context) ([]*domain.FarmField, error)
}
