package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carbonbits/farmdb/internal/domain"
	domerrors "github.com/carbonbits/farmdb/internal/domain/errors"
	"github.com/carbonbits/farmdb/internal/infrastructure/persistence/sqlite"
)

func setupService(t *testing.T, accessTTL, refreshTTL time.Duration) (*TokenService, *domain.User) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.RunMigrations(context.Background(), db))

	users := sqlite.NewUserRepository(db)
	now := time.Now().UTC()
	user := &domain.User{
		ID:        uuid.NewString(),
		Email:     "alice@example.com",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, users.Create(context.Background(), user))

	svc := NewTokenService([]byte("test-secret"), accessTTL, refreshTTL, sqlite.NewTokenStore(db), users)
	return svc, user
}

func TestIssueAndVerifyAccess(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, 30*24*time.Hour)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "bearer", pair.TokenType)
	assert.Equal(t, int64(900), pair.ExpiresIn)

	claims, err := svc.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
}

func TestVerifyAccessRejectsRefreshToken(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestVerifyAccessRejectsTampered(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	other := NewTokenService([]byte("other-secret"), 15*time.Minute, time.Hour, nil, nil)
	_, err = other.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)

	_, err = svc.VerifyAccess("not.a.jwt")
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestVerifyAccessRejectsExpired(t *testing.T) {
	svc, user := setupService(t, -time.Minute, time.Hour)
	pair, err := svc.Issue(context.Background(), user)
	require.NoError(t, err)

	_, err = svc.VerifyAccess(pair.AccessToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestRotateBurnsOldToken(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	ctx := context.Background()

	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	fresh, err := svc.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, fresh.RefreshToken)

	claims, err := svc.VerifyAccess(fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)

	// Replay of the burned token fails.
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)

	// The newest token still rotates.
	_, err = svc.Rotate(ctx, fresh.RefreshToken)
	require.NoError(t, err)
}

func TestRotateRejectsAccessToken(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestRotateRejectsUnknownToken(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	ctx := context.Background()

	// Same claims shape, same secret, but never persisted.
	other := NewTokenService([]byte("test-secret"), 15*time.Minute, time.Hour, discardStore{}, nil)
	pair, err := other.Issue(ctx, user)
	require.NoError(t, err)

	_, err = svc.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestRevokeIdempotent(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	ctx := context.Background()
	pair, err := svc.Issue(ctx, user)
	require.NoError(t, err)

	ok, err := svc.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Revoke(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Revoke(ctx, "unknown-token")
	require.NoError(t, err)
	assert.False(t, ok)

	// Revoked tokens never rotate.
	_, err = svc.Rotate(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, domerrors.ErrInvalidToken)
}

func TestRevokeAll(t *testing.T) {
	svc, user := setupService(t, 15*time.Minute, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Issue(ctx, user)
		require.NoError(t, err)
	}
	count, err := svc.RevokeAll(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

// discardStore accepts writes and remembers nothing, for issuing tokens
// that the system under test has never seen.
type discardStore struct{}

func (discardStore) Create(context.Context, *domain.RefreshToken) error { return nil }
func (discardStore) GetByHash(context.Context, string) (*domain.RefreshToken, error) {
	return nil, nil
}
func (discardStore) Revoke(context.Context, string) (bool, error)         { return false, nil }
func (discardStore) RevokeAllForUser(context.Context, string) (int64, error) { return 0, nil }
