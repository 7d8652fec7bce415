package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carbonbits/farmdb/internal/application/ports"
	"github.com/carbonbits/farmdb/internal/domain"
)

type PasskeyCredentialRepository struct {
	db *sql.DB
}

func NewPasskeyCredentialRepository(db *sql.DB) *PasskeyCredentialRepository {
	return &PasskeyCredentialRepository{db: db}
}

const selectPasskeyColumns = `id, user_id, credential_id, public_key, sign_count,
	device_type, backed_up, transports, aaguid, friendly_name, created_at, last_used_at`

func (r *PasskeyCredentialRepository) Create(ctx context.Context, cred *domain.PasskeyCredential) error {
	transports, err := json.Marshal(cred.Transports)
	if err != nil {
		return fmt.Errorf("marshal transports: %w", err)
	}
	query := `INSERT INTO passkey_credentials
		(id, user_id, credential_id, public_key, sign_count, device_type, backed_up, transports, aaguid, friendly_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		cred.ID,
		cred.UserID,
		cred.CredentialID,
		cred.PublicKey,
		cred.SignCount,
		nullString(cred.DeviceType),
		cred.BackedUp,
		string(transports),
		nullString(cred.AAGUID),
		nullString(cred.FriendlyName),
		cred.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert passkey credential: %w", err)
	}
	return nil
}

func (r *PasskeyCredentialRepository) GetByCredentialID(ctx context.Context, credentialID []byte) (*domain.PasskeyCredential, error) {
	query := `SELECT ` + selectPasskeyColumns + ` FROM passkey_credentials WHERE credential_id = ?`
	rows, err := r.db.QueryContext(ctx, query, credentialID)
	if err != nil {
		return nil, fmt.Errorf("query passkey credential: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanPasskey(rows)
}

func (r *PasskeyCredentialRepository) ListByUser(ctx context.Context, userID string) ([]*domain.PasskeyCredential, error) {
	query := `SELECT ` + selectPasskeyColumns + ` FROM passkey_credentials WHERE user_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query passkey credentials: %w", err)
	}
	defer rows.Close()

	var out []*domain.PasskeyCredential
	for rows.Next() {
		cred, err := scanPasskey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, cred)
	}
	return out, rows.Err()
}

func (r *PasskeyCredentialRepository) UpdateSignCount(ctx context.Context, id string, signCount uint32) error {
	query := `UPDATE passkey_credentials SET sign_count = ?, last_used_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, signCount, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update sign count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *PasskeyCredentialRepository) Delete(ctx context.Context, userID, passkeyID string) (bool, error) {
	query := `DELETE FROM passkey_credentials WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(ctx, query, passkeyID, userID)
	if err != nil {
		return false, fmt.Errorf("delete passkey credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func scanPasskey(rows *sql.Rows) (*domain.PasskeyCredential, error) {
	var c domain.PasskeyCredential
	var deviceType, transports, aaguid, friendlyName sql.NullString
	var lastUsedAt sql.NullTime
	err := rows.Scan(
		&c.ID, &c.UserID, &c.CredentialID, &c.PublicKey, &c.SignCount,
		&deviceType, &c.BackedUp, &transports, &aaguid, &friendlyName,
		&c.CreatedAt, &lastUsedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan passkey credential: %w", err)
	}
	c.DeviceType = deviceType.String
	c.AAGUID = aaguid.String
	c.FriendlyName = friendlyName.String
	if transports.Valid && transports.String != "" {
		if err := json.Unmarshal([]byte(transports.String), &c.Transports); err != nil {
			return nil, fmt.Errorf("unmarshal transports: %w", err)
		}
	}
	if lastUsedAt.Valid {
		t := lastUsedAt.Time
		c.LastUsedAt = &t
	}
	return &c, nil
}

var _ ports.PasskeyCredentialRepository = (*PasskeyCredentialRepository)(nil)
