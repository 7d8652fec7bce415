package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
)

// TokenStore persists refresh-token records keyed by token digest. Rows are
// never deleted; revocation is an audit-preserving one-way transition.
type TokenStore struct {
	db *sql.DB
}

func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

func (s *TokenStore) Create(ctx context.Context, token *domain.RefreshToken) error {
	query := `INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt, token.Revoked, token.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert refresh token: %w", err)
	}
	return nil
}

func (s *TokenStore) GetByHash(ctx context.Context, tokenHash string) (*domain.RefreshToken, error) {
	query := `SELECT id, user_id, token_hash, expires_at, revoked, created_at, last_used_at
		FROM refresh_tokens WHERE token_hash = ?`
	var t domain.RefreshToken
	var lastUsedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.Revoked, &t.CreatedAt, &lastUsedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	if lastUsedAt.Valid {
		lu := lastUsedAt.Time
		t.LastUsedAt = &lu
	}
	return &t, nil
}

// Revoke marks the matching non-revoked row revoked. The conditional UPDATE
// makes rotation race-safe: of N concurrent callers presenting the same
// hash, exactly one observes an affected row and may go on to issue a new
// pair; the rest fail closed.
func (s *TokenStore) Revoke(ctx context.Context, tokenHash string) (bool, error) {
	query := `UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ? AND revoked = 0`
	res, err := s.db.ExecContext(ctx, query, tokenHash)
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *TokenStore) RevokeAllForUser(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`
	res, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("revoke user refresh tokens: %w", err)
	}
	return res.RowsAffected()
}

var _ ports.RefreshTokenStore = (*TokenStore)(nil)
