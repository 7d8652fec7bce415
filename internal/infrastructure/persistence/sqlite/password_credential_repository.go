package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/carbonbits/farmdb/internal/application/ports"
)

type PasswordCredentialRepository struct {
	db *sql.DB
}

func NewPasswordCredentialRepository(db *sql.DB) *PasswordCredentialRepository {
	return &PasswordCredentialRepository{db: db}
}

// Upsert sets the password hash for a user. The user_id unique constraint
// guarantees at most one row per user.
func (r *PasswordCredentialRepository) Upsert(ctx context.Context, userID, passwordHash string) error {
	now := time.Now().UTC()
	query := `INSERT INTO password_credentials (id, user_id, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET password_hash = excluded.password_hash, updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query, uuid.NewString(), userID, passwordHash, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert password credential: %w", err)
	}
	return nil
}

func (r *PasswordCredentialRepository) GetHash(ctx context.Context, userID string) (string, error) {
	query := `SELECT password_hash FROM password_credentials WHERE user_id = ?`
	var hash string
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("scan password hash: %w", err)
	}
	return hash, nil
}

var _ ports.PasswordCredentialRepository = (*PasswordCredentialRepository)(nil)
